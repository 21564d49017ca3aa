package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/petal-labs/toolflow"
	"github.com/petal-labs/toolflow/config"
	"github.com/petal-labs/toolflow/hydrate"
)

// NewCallCmd creates the "call" subcommand: a one-shot dispatch without a
// running server.
func NewCallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call <config> <tool> [json]",
		Short: "Dispatch a tool once and print the response",
		Args:  cobra.RangeArgs(2, 3),
		RunE:  runCall,
	}
	cmd.Flags().StringP("input-file", "f", "", "Read the request from a JSON file")
	cmd.Flags().Duration("timeout", time.Minute, "Dispatch timeout")
	return cmd
}

func runCall(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args[0])
	if err != nil {
		return err
	}
	if diags := config.Validate(cfg); len(diags) > 0 {
		return exitError(exitValidation, "config is invalid, run validate for details")
	}

	req, err := resolveCallInput(cmd, args)
	if err != nil {
		return err
	}

	rt, err := hydrate.Build(cfg, hydrate.Options{})
	if err != nil {
		return exitError(exitRuntime, "building runtime: %v", err)
	}
	defer rt.Close()

	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := contextWithTimeout(cmd, timeout)
	defer cancel()

	resp, err := rt.Dispatcher.Dispatch(ctx, args[1], req)
	if err != nil {
		return exitError(exitDispatch, "%s", err)
	}

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return exitError(exitRuntime, "encoding response: %v", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func resolveCallInput(cmd *cobra.Command, args []string) (toolflow.Request, error) {
	inputFile, _ := cmd.Flags().GetString("input-file")

	var raw []byte
	switch {
	case inputFile != "":
		data, err := os.ReadFile(inputFile)
		if err != nil {
			return nil, exitError(exitFileNotFound, "reading input file: %v", err)
		}
		raw = data
	case len(args) == 3:
		raw = []byte(args[2])
	default:
		return toolflow.Request{}, nil
	}

	var req toolflow.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, exitError(exitInputParse, "input must be a JSON object: %v", err)
	}
	return req, nil
}
