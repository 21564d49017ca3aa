package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/petal-labs/toolflow/config"
	"github.com/petal-labs/toolflow/hydrate"
)

// NewToolsCmd creates the "tools" subcommand.
func NewToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools <config>",
		Short: "List the tools a config exposes",
		Args:  cobra.ExactArgs(1),
		RunE:  runTools,
	}
}

func runTools(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args[0])
	if err != nil {
		return err
	}
	if diags := config.Validate(cfg); len(diags) > 0 {
		return exitError(exitValidation, "config is invalid, run validate for details")
	}

	rt, err := hydrate.Build(cfg, hydrate.Options{})
	if err != nil {
		return exitError(exitRuntime, "building runtime: %v", err)
	}
	defer rt.Close()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDESCRIPTION")
	for _, name := range rt.Dispatcher.Tools() {
		fmt.Fprintf(w, "%s\t%s\n", name, rt.Dispatcher.Describe(name))
	}
	return w.Flush()
}
