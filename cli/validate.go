// Package cli implements the toolflow command-line interface.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/petal-labs/toolflow/config"
)

// NewValidateCmd creates the "validate" subcommand.
func NewValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config>",
		Short: "Validate a server config file",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args[0])
	if err != nil {
		return err
	}

	diags := config.Validate(cfg)
	if len(diags) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: OK (%d tool(s))\n", args[0], len(cfg.Tools))
		return nil
	}

	for _, d := range diags {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", d)
	}
	return exitError(exitValidation, "validation failed with %d error(s)", len(diags))
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, exitError(exitFileNotFound, "file not found: %s", path)
		}
		return nil, exitError(exitValidation, "loading config: %v", err)
	}
	return cfg, nil
}
