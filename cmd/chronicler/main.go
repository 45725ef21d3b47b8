// Command chronicler works with project documentation: DOCX custom
// properties, Jira epics and requirements, Redmine issues, and Redmine
// CSV exports.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chronicler-tools/chronicler/pkg/config"
	"github.com/chronicler-tools/chronicler/pkg/logging"
)

var version = "dev"

var (
	flagVerbose bool

	cfg *config.Config
	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:          "chronicler",
	Short:        "Document property and issue tracker toolbox",
	Long:         "chronicler reads and writes DOCX custom properties and pulls\nepics, requirements, and issues from Jira and Redmine.",
	Version:      version,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
		level := cfg.LogLevel
		if flagVerbose {
			level = "debug"
		}
		log = logging.New(level)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = log.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false,
		"enable debug logging")
	rootCmd.AddCommand(docxCmd, jiraCmd, redmineCmd, csvCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
