package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hutchstack/bunny-go/cli/internal/ui"
)

// NewCheckCommand creates the check command: validate configuration and
// connectivity before deploying the worker.
func NewCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate configuration and connectivity",
		RunE:  runCheck,
	}
}

func runCheck(cmd *cobra.Command, args []string) error {
	ui.PrintHeader("bunny check", "configuration and connectivity")

	app, err := newApp()
	if err != nil {
		ui.PrintError("configuration: %v", err)
		return err
	}
	defer app.close()
	ui.PrintSuccess("configuration loaded")

	red := app.cfg.Redacted()
	ui.PrintTable(
		[]string{"Setting", "Value"},
		[][]string{
			{"db.dialect", red.Database.Dialect},
			{"db.dsn", red.Database.DSN},
			{"db.query_timeout", red.Database.QueryTimeout.String()},
			{"task_api.base_url", red.TaskAPI.BaseURL},
			{"task_api.collection_id", red.TaskAPI.CollectionID},
			{"task_api.enforce_https", fmt.Sprintf("%t", red.TaskAPI.EnforceHTTPS)},
			{"obfuscation.low_number_threshold", fmt.Sprintf("%d", red.Obfuscation.LowNumberThreshold)},
			{"obfuscation.rounding_target", fmt.Sprintf("%d", red.Obfuscation.RoundingTarget)},
			{"polling.interval", red.Polling.Interval.String()},
		},
	)

	ctx := cmd.Context()
	start := time.Now()
	if err := app.exec.Ping(ctx); err != nil {
		ui.PrintError("database: %v", err)
		return err
	}
	ui.PrintSuccess("database reachable (%s, %s)", app.cfg.Database.Dialect, time.Since(start).Round(time.Millisecond))

	if version, ok, err := app.exec.VersionAdvisory(ctx); err != nil {
		ui.PrintWarning("database version check failed: %v", err)
	} else if !ok {
		ui.PrintWarning("database server version %s is below the advised minimum", version)
	} else {
		ui.PrintSuccess("database version supported")
	}

	if _, err := app.client(); err != nil {
		ui.PrintError("task api: %v", err)
		return err
	}
	ui.PrintSuccess("task api endpoint accepted")

	return nil
}
