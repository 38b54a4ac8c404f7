package commands

import (
	"github.com/spf13/cobra"

	"github.com/hutchstack/bunny-go/cli/internal/ui"
)

const usageDoc = `# bunny

Bunny sits next to an OMOP CDM database and answers federated cohort
discovery queries from an RQuest task API. Every count it returns passes
through disclosure control (low number suppression, then rounding) before
leaving the site.

## Commands

- ` + "`bunny init`" + ` - interactive wizard that writes a .env file.
- ` + "`bunny check`" + ` - validate configuration, database and task API
  connectivity.
- ` + "`bunny daemon`" + ` - poll the task API and answer queries until
  interrupted. Edits to .env retune obfuscation live.
- ` + "`bunny run [task-file]`" + ` - solve a single task payload from a file
  or stdin and print the result envelope; ` + "`--submit`" + ` posts it upstream.

## Configuration

All settings are environment variables with the BUNNY_ prefix (or a
.bunny.yaml file). The required keys:

| Key | Meaning |
| --- | --- |
| BUNNY_DB_DIALECT | postgres, sqlserver, trino, mysql or sqlite |
| BUNNY_DB_DSN | driver connection string (read-only account) |
| BUNNY_TASK_API_BASE_URL | RQuest task API endpoint |
| BUNNY_TASK_API_COLLECTION_ID | collection this worker serves |

Obfuscation is tuned with BUNNY_OBFUSCATION_LOW_NUMBER_THRESHOLD and
BUNNY_OBFUSCATION_ROUNDING_TARGET; zero disables the respective stage.
`

// NewDocsCommand creates the docs command: rendered usage documentation.
func NewDocsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "docs",
		Short: "Show usage documentation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ui.PrintMarkdown(usageDoc)
		},
	}
}
