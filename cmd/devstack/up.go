package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mathesar-foundation/devstack/internal/core/manifest"
	"github.com/mathesar-foundation/devstack/internal/shell/docker"
	"github.com/mathesar-foundation/devstack/internal/shell/store"
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Build, create, and start the development stack",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		m, err := loadManifest()
		if err != nil {
			return err
		}
		if errs := manifest.Validate(m); len(errs) > 0 {
			for _, e := range errs {
				logger.Error("manifest validation failed", "error", e)
			}
			return errors.Join(errs...)
		}

		d, err := newDockerClient()
		if err != nil {
			return err
		}
		defer d.Close()

		s, err := newStore()
		if err != nil {
			return err
		}
		defer s.Close()

		run := &store.Run{
			ID:           uuid.NewString(),
			Project:      cfg.Project,
			ManifestPath: cfg.Manifest,
			Status:       store.RunStatusStarting,
		}
		if err := s.CreateRun(ctx, run); err != nil {
			return err
		}

		orch := docker.NewOrchestrator(d, logger)
		started, upErr := orch.Up(ctx, cfg.Project, m, hostVariables())

		for _, sc := range started {
			if err := s.AddRunContainer(ctx, &store.RunContainer{
				RunID:         run.ID,
				ServiceName:   sc.ServiceName,
				ContainerID:   sc.ContainerID,
				ContainerName: sc.Name,
				Image:         sc.Image,
				State:         "running",
			}); err != nil {
				logger.Warn("failed to record container", "service", sc.ServiceName, "error", err)
			}
		}

		if upErr != nil {
			if err := s.UpdateRunStatus(ctx, run.ID, store.RunStatusFailed, upErr.Error()); err != nil {
				logger.Warn("failed to record run failure", "error", err)
			}
			return upErr
		}

		if err := s.UpdateRunStatus(ctx, run.ID, store.RunStatusRunning, ""); err != nil {
			logger.Warn("failed to record run status", "error", err)
		}

		fmt.Printf("Started %d service(s) for project %q\n", len(started), cfg.Project)
		for _, sc := range started {
			fmt.Printf("  %s -> %s\n", sc.ServiceName, sc.Name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(upCmd)
}
