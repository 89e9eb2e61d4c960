package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mathesar-foundation/devstack/internal/shell/docker"
	"github.com/mathesar-foundation/devstack/internal/shell/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the development stack",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		d, err := newDockerClient()
		if err != nil {
			return err
		}
		defer d.Close()

		orch := docker.NewOrchestrator(d, logger)
		containers, err := orch.Status(ctx, cfg.Project)
		if err != nil {
			return err
		}

		s, err := newStore()
		if err != nil {
			return err
		}
		defer s.Close()

		if run, err := s.GetLatestRun(ctx, cfg.Project); err == nil {
			fmt.Printf("Project: %s\nLast run: %s (%s)\n\n", cfg.Project, run.ID, run.Status)
		} else if errors.Is(err, store.ErrNotFound) {
			fmt.Printf("Project: %s\nLast run: none\n\n", cfg.Project)
		} else {
			return err
		}

		if len(containers) == 0 {
			fmt.Println("No containers")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SERVICE\tCONTAINER\tIMAGE\tSTATE\tHEALTH")
		for _, c := range containers {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.Service(), c.Name, c.Image, c.State, c.Health)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
