package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chronicler-tools/chronicler/cmd/chronicler/ui"
	"github.com/chronicler-tools/chronicler/pkg/jira"
)

var flagJiraFormat string

var jiraCmd = &cobra.Command{
	Use:   "jira",
	Short: "Query Jira epics and requirements",
}

func jiraClient() (*jira.Client, error) {
	if !cfg.HasJira() {
		return nil, fmt.Errorf("jira not configured, set JIRA_URL, JIRA_USER and JIRA_API_TOKEN")
	}
	return jira.NewClient(cfg.JiraURL, cfg.JiraUser, cfg.JiraToken, jira.WithLogger(log)), nil
}

var jiraMeCmd = &cobra.Command{
	Use:   "me",
	Short: "Verify the Jira credentials",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := jiraClient()
		if err != nil {
			return err
		}
		user, err := client.Myself(cmd.Context())
		if err != nil {
			return err
		}
		cmd.Println(ui.OK(fmt.Sprintf("authenticated as %s <%s>", user.DisplayName, user.EmailAddress)))
		return nil
	},
}

var jiraEpicsCmd = &cobra.Command{
	Use:   "epics PROJECT",
	Short: "List the epics of a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := jiraClient()
		if err != nil {
			return err
		}
		epics, err := client.ProjectEpics(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if flagJiraFormat == "json" {
			return printJSON(cmd, epics)
		}
		rows := make([][]string, 0, len(epics))
		for _, e := range epics {
			rows = append(rows, []string{e.Key, e.Name, e.Type, e.Status})
		}
		cmd.Print(ui.Table{
			Title:   fmt.Sprintf("Epics in %s (%d)", args[0], len(epics)),
			Headers: []string{"Key", "Name", "Type", "Status"},
			Rows:    rows,
		}.Render())
		return nil
	},
}

var jiraRequirementsCmd = &cobra.Command{
	Use:     "requirements EPIC-KEY",
	Aliases: []string{"reqs"},
	Short:   "List the requirements linked to an epic",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := jiraClient()
		if err != nil {
			return err
		}
		reqs, err := client.EpicRequirements(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if flagJiraFormat == "json" {
			return printJSON(cmd, reqs)
		}
		rows := make([][]string, 0, len(reqs))
		for _, r := range reqs {
			rows = append(rows, []string{r.Key, r.Summary, r.Type, r.Status})
		}
		cmd.Print(ui.Table{
			Title:   fmt.Sprintf("Requirements under %s (%d)", args[0], len(reqs)),
			Headers: []string{"Key", "Summary", "Type", "Status"},
			Rows:    rows,
		}.Render())
		return nil
	},
}

func init() {
	jiraCmd.PersistentFlags().StringVar(&flagJiraFormat, "format", "table", "output format (table|json)")
	jiraCmd.AddCommand(jiraMeCmd, jiraEpicsCmd, jiraRequirementsCmd)
}
