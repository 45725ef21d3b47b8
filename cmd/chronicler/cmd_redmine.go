package main

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/chronicler-tools/chronicler/cmd/chronicler/ui"
	"github.com/chronicler-tools/chronicler/pkg/redmine"
)

var (
	flagRedmineProject      string
	flagRedmineStatus       string
	flagRedmineAll          bool
	flagRedmineFormat       string
	flagRedmineProbeProject string
)

var redmineCmd = &cobra.Command{
	Use:   "redmine",
	Short: "Query Redmine issues",
}

// redmineClient builds a client from the configuration, preferring the
// API key over basic auth.
func redmineClient() (*redmine.Client, error) {
	if cfg.RedmineURL == "" {
		return nil, fmt.Errorf("redmine not configured, set redmine_url in ~/.env")
	}
	opts := []redmine.Option{redmine.WithLogger(log)}
	switch {
	case cfg.HasRedmineAPIKey():
		opts = append(opts, redmine.WithAPIKey(cfg.RedmineAPIKey, "X-Redmine-API-Key"))
	case cfg.HasRedmineBasicAuth():
		opts = append(opts, redmine.WithBasicAuth(cfg.RedmineUser, cfg.RedminePassword))
	}
	return redmine.NewClient(cfg.RedmineURL, opts...), nil
}

var redmineUserCmd = &cobra.Command{
	Use:   "user",
	Short: "Verify the Redmine credentials",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := redmineClient()
		if err != nil {
			return err
		}
		user, err := client.CurrentUser(cmd.Context())
		if err != nil {
			return err
		}
		cmd.Println(ui.OK(fmt.Sprintf("authenticated as %s %s (%s)",
			user.Firstname, user.Lastname, user.Login)))
		return nil
	},
}

var redmineIssuesCmd = &cobra.Command{
	Use:   "issues",
	Short: "List issues, optionally filtered by project and status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := redmineClient()
		if err != nil {
			return err
		}
		params := url.Values{}
		params.Set("sort", "id:desc")
		params.Set("status_id", "*")
		project := flagRedmineProject
		if project == "" {
			project = cfg.RedmineProjectID
		}
		if project != "" {
			params.Set("project_id", project)
		}
		if flagRedmineStatus != "" {
			params.Set("status_id", flagRedmineStatus)
		}

		var issues []redmine.Issue
		if flagRedmineAll {
			issues, err = client.AllIssues(cmd.Context(), params)
		} else {
			issues, _, err = client.Issues(cmd.Context(), params, 0, 100)
		}
		if err != nil {
			return err
		}
		if flagRedmineFormat == "json" {
			return printJSON(cmd, issues)
		}
		rows := make([][]string, 0, len(issues))
		for _, issue := range issues {
			rows = append(rows, []string{
				strconv.Itoa(issue.ID),
				issue.Project.Name,
				issue.Tracker.Name,
				issue.Status.Name,
				issue.Subject,
			})
		}
		cmd.Print(ui.Table{
			Title:   fmt.Sprintf("Issues (%d)", len(issues)),
			Headers: []string{"#", "Project", "Tracker", "Status", "Subject"},
			Rows:    rows,
		}.Render())
		return nil
	},
}

var redmineProbeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Try every known way of reaching the Redmine API",
	Long: "probe walks through API-key placements, basic auth, alternative\n" +
		"endpoints and user agents, and reports what each attempt got back.\n" +
		"Useful when a gateway sits between you and Redmine.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.RedmineURL == "" {
			return fmt.Errorf("redmine not configured, set redmine_url in ~/.env")
		}
		prober := redmine.NewProber(cfg.RedmineURL, cfg.RedmineDirectURL,
			redmine.Credentials{
				APIKey:   cfg.RedmineAPIKey,
				User:     cfg.RedmineUser,
				Password: cfg.RedminePassword,
			}, log)
		prober.ProjectID = flagRedmineProbeProject
		if prober.ProjectID == "" {
			prober.ProjectID = cfg.RedmineProjectID
		}

		if kind, err := prober.DetectGateway(cmd.Context()); err == nil && kind != redmine.GatewayNone {
			cmd.Println(ui.Fail(fmt.Sprintf("gateway detected in front of the API: %s", kind)))
		}
		results := prober.Run(cmd.Context())

		rows := make([][]string, 0, len(results))
		working := 0
		for _, r := range results {
			status := "-"
			if r.StatusCode > 0 {
				status = strconv.Itoa(r.StatusCode)
			}
			verdict := ui.Fail(string(r.Kind))
			if r.OK {
				verdict = ui.OK("api reached")
				working++
			}
			rows = append(rows, []string{r.Method, r.URL, status, verdict})
		}
		cmd.Print(ui.Table{
			Title:   "Probe results",
			Headers: []string{"Method", "URL", "Status", "Result"},
			Rows:    rows,
		}.Render())

		if working == 0 {
			return fmt.Errorf("no attempt reached the Redmine API")
		}
		cmd.Println(ui.OK(fmt.Sprintf("%d of %d attempts reached the API", working, len(results))))
		return nil
	},
}

func init() {
	redmineIssuesCmd.Flags().StringVar(&flagRedmineProject, "project", "", "filter by project id")
	redmineIssuesCmd.Flags().StringVar(&flagRedmineStatus, "status", "", "filter by status id")
	redmineIssuesCmd.Flags().BoolVar(&flagRedmineAll, "all", false, "page through all matching issues")
	redmineIssuesCmd.Flags().StringVar(&flagRedmineFormat, "format", "table", "output format (table|json)")
	redmineProbeCmd.Flags().StringVar(&flagRedmineProbeProject, "project", "", "scope probe queries to a project id")
	redmineCmd.AddCommand(redmineUserCmd, redmineIssuesCmd, redmineProbeCmd)
}
