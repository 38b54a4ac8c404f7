package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/hutchstack/bunny-go/cli/internal/ui"
	"github.com/hutchstack/bunny-go/query/sqlgen"
)

// NewInitCommand creates the init command: an interactive wizard that writes
// a .env file for the worker.
func NewInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Interactively create a worker .env file",
		RunE:  runInit,
	}
}

type initAnswers struct {
	Dialect      string
	DSN          string
	BaseURL      string
	Username     string
	Password     string
	CollectionID string
	Threshold    int
	Rounding     int
}

func runInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(".env"); err == nil {
		overwrite := false
		prompt := &survey.Confirm{Message: ".env already exists, overwrite?"}
		if err := survey.AskOne(prompt, &overwrite); err != nil {
			return err
		}
		if !overwrite {
			ui.PrintInfo("keeping existing .env")
			return nil
		}
	}

	questions := []*survey.Question{
		{
			Name: "dialect",
			Prompt: &survey.Select{
				Message: "Database dialect:",
				Options: sqlgen.Names(),
				Default: "postgres",
			},
		},
		{
			Name:     "dsn",
			Prompt:   &survey.Input{Message: "Database DSN:"},
			Validate: survey.Required,
		},
		{
			Name:     "baseurl",
			Prompt:   &survey.Input{Message: "Task API base URL:", Default: "https://"},
			Validate: survey.Required,
		},
		{
			Name:   "username",
			Prompt: &survey.Input{Message: "Task API username:"},
		},
		{
			Name:   "password",
			Prompt: &survey.Password{Message: "Task API password:"},
		},
		{
			Name:     "collectionid",
			Prompt:   &survey.Input{Message: "Collection ID:"},
			Validate: survey.Required,
		},
		{
			Name:   "threshold",
			Prompt: &survey.Input{Message: "Low number suppression threshold:", Default: "10"},
		},
		{
			Name:   "rounding",
			Prompt: &survey.Input{Message: "Rounding target:", Default: "10"},
		},
	}

	var answers initAnswers
	if err := survey.Ask(questions, &answers); err != nil {
		return err
	}

	if err := os.WriteFile(".env", []byte(renderEnv(answers)), 0600); err != nil {
		return fmt.Errorf("write .env: %w", err)
	}
	ui.PrintSuccess("wrote .env")

	return ui.PrintMarkdown(`## Next steps

1. Run ` + "`bunny check`" + ` to verify database and task API connectivity.
2. Start the worker with ` + "`bunny daemon`" + `.
3. Tune obfuscation by editing .env; the daemon reloads it live.
`)
}

func renderEnv(a initAnswers) string {
	var b strings.Builder
	b.WriteString("# bunny worker configuration\n")
	fmt.Fprintf(&b, "BUNNY_DB_DIALECT=%s\n", a.Dialect)
	fmt.Fprintf(&b, "BUNNY_DB_DSN=%q\n", a.DSN)
	fmt.Fprintf(&b, "BUNNY_TASK_API_BASE_URL=%q\n", a.BaseURL)
	fmt.Fprintf(&b, "BUNNY_TASK_API_USERNAME=%q\n", a.Username)
	fmt.Fprintf(&b, "BUNNY_TASK_API_PASSWORD=%q\n", a.Password)
	fmt.Fprintf(&b, "BUNNY_TASK_API_COLLECTION_ID=%q\n", a.CollectionID)
	fmt.Fprintf(&b, "BUNNY_OBFUSCATION_LOW_NUMBER_THRESHOLD=%d\n", a.Threshold)
	fmt.Fprintf(&b, "BUNNY_OBFUSCATION_ROUNDING_TARGET=%d\n", a.Rounding)
	return b.String()
}
