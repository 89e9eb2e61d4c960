package store

import (
	"context"
	"time"
)

// =============================================================================
// Run Types
// =============================================================================

// RunStatus represents the lifecycle state of a stack run.
type RunStatus string

const (
	RunStatusStarting RunStatus = "starting"
	RunStatusRunning  RunStatus = "running"
	RunStatusStopped  RunStatus = "stopped"
	RunStatusFailed   RunStatus = "failed"
)

// Valid reports whether the status is a known lifecycle state.
func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusStarting, RunStatusRunning, RunStatusStopped, RunStatusFailed:
		return true
	}
	return false
}

// Run records one invocation of bringing a project up.
type Run struct {
	ID           string
	Project      string
	ManifestPath string
	Status       RunStatus
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	StartedAt    *time.Time
	StoppedAt    *time.Time
}

// RunContainer records one container started as part of a run.
type RunContainer struct {
	ID            int64
	RunID         string
	ServiceName   string
	ContainerID   string
	ContainerName string
	Image         string
	State         string
	CreatedAt     time.Time
}

// =============================================================================
// Store Interface
// =============================================================================

// Store defines the persistence interface for run history.
type Store interface {
	// Run operations
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	GetLatestRun(ctx context.Context, project string) (*Run, error)
	UpdateRunStatus(ctx context.Context, id string, status RunStatus, errorMessage string) error
	ListRuns(ctx context.Context, project string, opts ListOptions) ([]Run, error)

	// Run container operations
	AddRunContainer(ctx context.Context, rc *RunContainer) error
	ListRunContainers(ctx context.Context, runID string) ([]RunContainer, error)

	// Transaction support
	WithTx(ctx context.Context, fn func(Store) error) error

	// Lifecycle
	Close() error
}

// =============================================================================
// Options
// =============================================================================

// ListOptions defines pagination options.
type ListOptions struct {
	Limit  int
	Offset int
}

// DefaultListOptions returns default list options.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Limit:  100,
		Offset: 0,
	}
}

// Normalize ensures list options have valid values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 100
	}
	if o.Limit > 1000 {
		o.Limit = 1000
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
