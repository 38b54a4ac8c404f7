package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hutchstack/bunny-go/cli/internal/ui"
	"github.com/hutchstack/bunny-go/rquest"
)

// NewRunCommand creates the run command: solve a single task payload from a
// file or stdin and print the result, optionally submitting it upstream.
func NewRunCommand() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run [task-file]",
		Short: "Solve one task payload and print the result",
		Long:  "Read an RQuest task payload from a file (or stdin when omitted), run it against the configured database and print the result envelope as JSON.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd, args, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.submit, "submit", false, "submit the result to the task API instead of only printing it")
	cmd.Flags().IntVar(&opts.threshold, "suppression-threshold", -1, "override the low number suppression threshold (0 disables)")
	cmd.Flags().IntVar(&opts.rounding, "rounding-target", -1, "override the rounding target (0 disables)")
	return cmd
}

type runOptions struct {
	submit    bool
	threshold int
	rounding  int
}

func runOnce(cmd *cobra.Command, args []string, opts runOptions) error {
	payload, err := readTaskPayload(args)
	if err != nil {
		return err
	}
	task, err := rquest.DecodeTask(payload)
	if err != nil {
		return err
	}

	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.close()

	pipeline := pipelineFrom(app.cfg)
	if opts.threshold >= 0 {
		pipeline.Threshold = opts.threshold
	}
	if opts.rounding >= 0 {
		pipeline.Nearest = opts.rounding
	}
	app.solver.SetObfuscation(pipeline)

	result, err := app.solver.Solve(cmd.Context(), task)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "status: %s\n%s\n", ui.Status(result.Status), out)

	if opts.submit {
		client, err := app.client()
		if err != nil {
			return err
		}
		if err := client.Submit(cmd.Context(), result); err != nil {
			return fmt.Errorf("submit result: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "result submitted")
	}
	return nil
}

func readTaskPayload(args []string) ([]byte, error) {
	if len(args) == 0 {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(args[0])
}
