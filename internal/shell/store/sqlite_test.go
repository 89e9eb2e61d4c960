package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

func setupTestStore(t *testing.T) Store {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func createTestRun(t *testing.T, store Store, project string) *Run {
	t.Helper()
	run := &Run{
		ID:           uuid.NewString(),
		Project:      project,
		ManifestPath: "/srv/mathesar/devstack.yaml",
		Status:       RunStatusStarting,
	}
	require.NoError(t, store.CreateRun(context.Background(), run))
	return run
}

// =============================================================================
// Run CRUD Tests
// =============================================================================

func TestCreateRun_AndGet(t *testing.T) {
	store := setupTestStore(t)
	run := createTestRun(t, store, "mathesar")

	got, err := store.GetRun(context.Background(), run.ID)
	require.NoError(t, err)

	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "mathesar", got.Project)
	assert.Equal(t, "/srv/mathesar/devstack.yaml", got.ManifestPath)
	assert.Equal(t, RunStatusStarting, got.Status)
	assert.False(t, got.CreatedAt.IsZero())
	assert.Nil(t, got.StartedAt)
	assert.Nil(t, got.StoppedAt)
}

func TestCreateRun_DuplicateID(t *testing.T) {
	store := setupTestStore(t)
	run := createTestRun(t, store, "mathesar")

	err := store.CreateRun(context.Background(), &Run{
		ID:      run.ID,
		Project: "mathesar",
		Status:  RunStatusStarting,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestCreateRun_InvalidStatus(t *testing.T) {
	store := setupTestStore(t)

	err := store.CreateRun(context.Background(), &Run{
		ID:      uuid.NewString(),
		Project: "mathesar",
		Status:  RunStatus("bogus"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestGetRun_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)

	var storeErr *StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "GetRun", storeErr.Op)
}

func TestUpdateRunStatus_RunningSetsStartedAt(t *testing.T) {
	store := setupTestStore(t)
	run := createTestRun(t, store, "mathesar")

	err := store.UpdateRunStatus(context.Background(), run.ID, RunStatusRunning, "")
	require.NoError(t, err)

	got, err := store.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusRunning, got.Status)
	require.NotNil(t, got.StartedAt)
	assert.WithinDuration(t, time.Now().UTC(), *got.StartedAt, 5*time.Second)
	assert.Nil(t, got.StoppedAt)
}

func TestUpdateRunStatus_FailedRecordsErrorAndStoppedAt(t *testing.T) {
	store := setupTestStore(t)
	run := createTestRun(t, store, "mathesar")

	err := store.UpdateRunStatus(context.Background(), run.ID, RunStatusFailed, "image pull failed")
	require.NoError(t, err)

	got, err := store.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, got.Status)
	assert.Equal(t, "image pull failed", got.ErrorMessage)
	require.NotNil(t, got.StoppedAt)
}

func TestUpdateRunStatus_NotFound(t *testing.T) {
	store := setupTestStore(t)

	err := store.UpdateRunStatus(context.Background(), "missing", RunStatusStopped, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetLatestRun_ReturnsNewest(t *testing.T) {
	store := setupTestStore(t)

	older := &Run{
		ID:           uuid.NewString(),
		Project:      "mathesar",
		ManifestPath: "/srv/mathesar/devstack.yaml",
		Status:       RunStatusStopped,
		CreatedAt:    time.Now().UTC().Add(-2 * time.Hour),
	}
	require.NoError(t, store.CreateRun(context.Background(), older))
	newest := createTestRun(t, store, "mathesar")

	got, err := store.GetLatestRun(context.Background(), "mathesar")
	require.NoError(t, err)
	assert.Equal(t, newest.ID, got.ID)
}

func TestGetLatestRun_SubSecondOrdering(t *testing.T) {
	store := setupTestStore(t)

	// A whole-second timestamp must still sort before a fractional one in
	// the same second.
	base := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	older := &Run{
		ID:        uuid.NewString(),
		Project:   "mathesar",
		Status:    RunStatusStopped,
		CreatedAt: base,
	}
	require.NoError(t, store.CreateRun(context.Background(), older))

	newest := &Run{
		ID:        uuid.NewString(),
		Project:   "mathesar",
		Status:    RunStatusStarting,
		CreatedAt: base.Add(500 * time.Millisecond),
	}
	require.NoError(t, store.CreateRun(context.Background(), newest))

	got, err := store.GetLatestRun(context.Background(), "mathesar")
	require.NoError(t, err)
	assert.Equal(t, newest.ID, got.ID)
}

func TestGetLatestRun_NoRuns(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetLatestRun(context.Background(), "mathesar")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRuns_FiltersByProject(t *testing.T) {
	store := setupTestStore(t)
	createTestRun(t, store, "mathesar")
	createTestRun(t, store, "mathesar")
	createTestRun(t, store, "other")

	runs, err := store.ListRuns(context.Background(), "mathesar", ListOptions{})
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	all, err := store.ListRuns(context.Background(), "", ListOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestListRuns_Pagination(t *testing.T) {
	store := setupTestStore(t)
	for i := 0; i < 5; i++ {
		createTestRun(t, store, "mathesar")
	}

	runs, err := store.ListRuns(context.Background(), "mathesar", ListOptions{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	rest, err := store.ListRuns(context.Background(), "mathesar", ListOptions{Limit: 10, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, rest, 3)
}

// =============================================================================
// Run Container Tests
// =============================================================================

func TestAddRunContainer_AndList(t *testing.T) {
	store := setupTestStore(t)
	run := createTestRun(t, store, "mathesar")

	rc := &RunContainer{
		RunID:         run.ID,
		ServiceName:   "dev-db",
		ContainerID:   "abc123",
		ContainerName: "mathesar_dev-db",
		Image:         "postgres:13",
		State:         "running",
	}
	require.NoError(t, store.AddRunContainer(context.Background(), rc))
	assert.NotZero(t, rc.ID)

	containers, err := store.ListRunContainers(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, containers, 1)
	assert.Equal(t, "dev-db", containers[0].ServiceName)
	assert.Equal(t, "mathesar_dev-db", containers[0].ContainerName)
	assert.Equal(t, "postgres:13", containers[0].Image)
}

func TestAddRunContainer_UnknownRun(t *testing.T) {
	store := setupTestStore(t)

	err := store.AddRunContainer(context.Background(), &RunContainer{
		RunID:       "missing",
		ServiceName: "dev-db",
		ContainerID: "abc123",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRunContainers_OrderedByInsertion(t *testing.T) {
	store := setupTestStore(t)
	run := createTestRun(t, store, "mathesar")

	for _, svc := range []string{"dev-db", "dev-service", "test-service"} {
		require.NoError(t, store.AddRunContainer(context.Background(), &RunContainer{
			RunID:       run.ID,
			ServiceName: svc,
			ContainerID: "id-" + svc,
		}))
	}

	containers, err := store.ListRunContainers(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, containers, 3)
	assert.Equal(t, "dev-db", containers[0].ServiceName)
	assert.Equal(t, "dev-service", containers[1].ServiceName)
	assert.Equal(t, "test-service", containers[2].ServiceName)
}

// =============================================================================
// Transaction Tests
// =============================================================================

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	store := setupTestStore(t)

	runID := uuid.NewString()
	err := store.WithTx(context.Background(), func(s Store) error {
		if err := s.CreateRun(context.Background(), &Run{
			ID:      runID,
			Project: "mathesar",
			Status:  RunStatusStarting,
		}); err != nil {
			return err
		}
		return s.AddRunContainer(context.Background(), &RunContainer{
			RunID:       runID,
			ServiceName: "dev-db",
			ContainerID: "abc",
		})
	})
	require.NoError(t, err)

	got, err := store.GetRun(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, "mathesar", got.Project)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	store := setupTestStore(t)

	runID := uuid.NewString()
	sentinel := errors.New("boom")
	err := store.WithTx(context.Background(), func(s Store) error {
		if err := s.CreateRun(context.Background(), &Run{
			ID:      runID,
			Project: "mathesar",
			Status:  RunStatusStarting,
		}); err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	_, err = store.GetRun(context.Background(), runID)
	assert.ErrorIs(t, err, ErrNotFound)
}
