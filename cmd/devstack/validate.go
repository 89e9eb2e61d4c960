package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mathesar-foundation/devstack/internal/core/manifest"
	"github.com/mathesar-foundation/devstack/internal/shell/docker"
)

var flagValidateStrict bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the stack manifest",
	Long: `Validate parses the manifest, resolves service inheritance, and checks
container name uniqueness, host port conflicts, environment variable
declarations, and volume and dependency references. With --strict it also
verifies that every build context and Dockerfile exists on disk.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := loadManifest()
		if err != nil {
			return err
		}

		errs := manifest.Validate(m)
		if flagValidateStrict {
			if err := docker.CheckBuildContexts(m); err != nil {
				errs = append(errs, err)
			}
		}

		if len(errs) > 0 {
			for _, e := range errs {
				fmt.Printf("FAIL: %v\n", e)
			}
			return errors.Join(errs...)
		}

		fmt.Printf("%s: OK (%d services, %d volumes)\n", cfg.Manifest, len(m.Services), len(m.Volumes))
		return nil
	},
}

func init() {
	validateCmd.Flags().BoolVar(&flagValidateStrict, "strict", false, "also verify build contexts on disk")
	rootCmd.AddCommand(validateCmd)
}
