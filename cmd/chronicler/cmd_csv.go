package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chronicler-tools/chronicler/cmd/chronicler/ui"
	"github.com/chronicler-tools/chronicler/pkg/csvview"
)

var (
	flagCSVFilter   []string
	flagCSVStatus   string
	flagCSVAssignee string
	flagCSVOrder    string
	flagCSVLimit    int
	flagCSVColumns  string
	flagCSVGroup    bool
	flagCSVSummary  bool
)

var csvCmd = &cobra.Command{
	Use:   "csv",
	Short: "View Redmine CSV exports",
}

var csvShowCmd = &cobra.Command{
	Use:     "view FILE",
	Aliases: []string{"show"},
	Short:   "Display a CSV export as a table",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := csvview.Load(args[0])
		if err != nil {
			return err
		}

		rows := table.Rows
		if flagCSVStatus != "" {
			rows = filterRows(table, rows, "Status", flagCSVStatus)
		}
		if flagCSVAssignee != "" {
			rows = filterRows(table, rows, "Zugewiesen an", flagCSVAssignee)
		}
		if flagCSVOrder != "" {
			rows = filterByOrder(table, rows, flagCSVOrder)
		}
		for _, f := range flagCSVFilter {
			column, value, found := strings.Cut(f, "=")
			if !found {
				return fmt.Errorf("invalid --filter %q, expected COLUMN=VALUE", f)
			}
			rows = filterRows(table, rows, column, value)
		}

		if flagCSVSummary {
			return printCSVSummary(cmd, table, rows)
		}
		if flagCSVGroup {
			return printCSVGroups(cmd, table, rows)
		}
		if flagCSVLimit > 0 && len(rows) > flagCSVLimit {
			rows = rows[:flagCSVLimit]
		}

		headers, project := selectColumns(table)
		out := make([][]string, 0, len(rows))
		for _, row := range rows {
			out = append(out, project(row))
		}
		cmd.Print(ui.Table{
			Title:   fmt.Sprintf("%s (%d rows)", args[0], len(out)),
			Headers: headers,
			Rows:    out,
		}.Render())
		return nil
	},
}

func filterRows(t *csvview.Table, rows [][]string, column, value string) [][]string {
	needle := strings.ToLower(value)
	var out [][]string
	for _, row := range rows {
		if strings.Contains(strings.ToLower(t.Value(row, column)), needle) {
			out = append(out, row)
		}
	}
	return out
}

func filterByOrder(t *csvview.Table, rows [][]string, value string) [][]string {
	needle := strings.ToLower(value)
	var out [][]string
	for _, row := range rows {
		if strings.Contains(strings.ToLower(t.CombinedOrder(row)), needle) {
			out = append(out, row)
		}
	}
	return out
}

// selectColumns honors --columns and returns the headers to print plus a
// row projection.
func selectColumns(t *csvview.Table) ([]string, func([]string) []string) {
	if flagCSVColumns == "" {
		return t.Headers, func(row []string) []string { return row }
	}
	var names []string
	for _, name := range strings.Split(flagCSVColumns, ",") {
		names = append(names, strings.TrimSpace(name))
	}
	return names, func(row []string) []string {
		out := make([]string, len(names))
		for i, name := range names {
			out[i] = t.Value(row, name)
		}
		return out
	}
}

func printCSVGroups(cmd *cobra.Command, t *csvview.Table, rows [][]string) error {
	groups := t.WithRows(rows).GroupByOrder()
	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		out := make([][]string, 0, len(groups[key]))
		for _, row := range groups[key] {
			out = append(out, []string{
				t.Value(row, "#"),
				t.Value(row, "Status"),
				t.Value(row, "Thema"),
			})
		}
		cmd.Print(ui.Table{
			Title:   fmt.Sprintf("Auftrag %s (%d)", key, len(out)),
			Headers: []string{"#", "Status", "Thema"},
			Rows:    out,
		}.Render())
	}
	return nil
}

func printCSVSummary(cmd *cobra.Command, t *csvview.Table, rows [][]string) error {
	s := t.WithRows(rows).Summarize()

	out := make([][]string, 0, len(s.ByStatus))
	for _, status := range sortedKeys(s.ByStatus) {
		out = append(out, []string{status,
			fmt.Sprintf("%d", s.ByStatus[status]),
			fmt.Sprintf("%.1f%%", s.Percent(s.ByStatus[status]))})
	}
	cmd.Print(ui.Table{
		Title:   fmt.Sprintf("Status (%d rows)", s.Total),
		Headers: []string{"Status", "Count", "Share"},
		Rows:    out,
	}.Render())

	if len(s.ByPriority) > 0 {
		out = out[:0]
		for _, prio := range sortedKeys(s.ByPriority) {
			out = append(out, []string{prio,
				fmt.Sprintf("%d", s.ByPriority[prio]),
				fmt.Sprintf("%.1f%%", s.Percent(s.ByPriority[prio]))})
		}
		cmd.Print(ui.Table{
			Title:   "Priority",
			Headers: []string{"Priority", "Count", "Share"},
			Rows:    out,
		}.Render())
	}

	cmd.Println(ui.Dim(fmt.Sprintf("%d distinct assignee(s)", s.Assignees)))
	return nil
}

func init() {
	csvShowCmd.Flags().StringArrayVar(&flagCSVFilter, "filter", nil, "filter rows by COLUMN=VALUE (repeatable, substring match)")
	csvShowCmd.Flags().StringVar(&flagCSVColumns, "columns", "", "comma-separated columns to display")
	csvShowCmd.Flags().BoolVar(&flagCSVGroup, "group-by-order", false, "group rows by their order number")
	csvShowCmd.Flags().BoolVar(&flagCSVSummary, "summary", false, "show row counts by status")
	csvShowCmd.Flags().StringVar(&flagCSVStatus, "status", "", "only rows whose status matches")
	csvShowCmd.Flags().StringVar(&flagCSVAssignee, "assignee", "", "only rows assigned to the given person")
	csvShowCmd.Flags().StringVar(&flagCSVOrder, "order", "", "only rows whose order number matches")
	csvShowCmd.Flags().IntVar(&flagCSVLimit, "limit", 0, "show at most N rows (0 = all)")
	csvCmd.AddCommand(csvShowCmd)
}
