package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chronicler-tools/chronicler/cmd/chronicler/ui"
	"github.com/chronicler-tools/chronicler/pkg/docprops"
)

// requiredVariables are the document variables every released document
// must carry.
var requiredVariables = []string{
	"ID",
	"Revision",
	"Dokumententyp",
	"Projekt",
	"Freigeber",
	"Freigabedatum",
	"Status",
	"Klassifizierung",
}

var (
	flagDocxFormat      string
	flagDocxVarsOnly    bool
	flagDocxNamesOnly   bool
	flagDocxSet         []string
	flagDocxOutput      string
	flagDocxInteractive bool
	flagDocxBatch       bool
	flagDocxForce       bool
	flagDocxReviewAll   bool
)

var docxCmd = &cobra.Command{
	Use:   "docx",
	Short: "Read and write DOCX document properties",
}

var docxPropsCmd = &cobra.Command{
	Use:   "props FILE",
	Short: "Show built-in and custom document properties",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		props, err := readDocument(args[0])
		if err != nil {
			return err
		}
		if flagDocxFormat == "json" {
			if flagDocxVarsOnly {
				return printJSON(cmd, props.Custom)
			}
			return printJSON(cmd, map[string]any{
				"built_in": builtInMap(props.BuiltIn),
				"custom":   props.Custom,
			})
		}

		var rows [][]string
		if !flagDocxVarsOnly {
			builtIn := builtInMap(props.BuiltIn)
			for _, name := range sortedKeys(builtIn) {
				rows = append(rows, []string{name, builtIn[name]})
			}
			cmd.Print(ui.Table{
				Title:   "Built-in properties",
				Headers: []string{"Property", "Value"},
				Rows:    rows,
			}.Render())
		}

		rows = nil
		for _, name := range sortedKeys(props.Custom) {
			rows = append(rows, []string{name, formatValue(props.Custom[name])})
		}
		cmd.Print(ui.Table{
			Title:   "Custom properties",
			Headers: []string{"Property", "Value"},
			Rows:    rows,
		}.Render())
		return nil
	},
}

var docxVarsCmd = &cobra.Command{
	Use:   "vars FILE",
	Short: "Show the custom document variables",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		props, err := readDocument(args[0])
		if err != nil {
			return err
		}
		names := sortedKeys(props.Custom)
		switch {
		case flagDocxFormat == "json" && flagDocxNamesOnly:
			return printJSON(cmd, names)
		case flagDocxFormat == "json":
			return printJSON(cmd, props.Custom)
		case flagDocxNamesOnly:
			for _, name := range names {
				cmd.Println(name)
			}
			return nil
		default:
			var rows [][]string
			for _, name := range names {
				rows = append(rows, []string{name, formatValue(props.Custom[name])})
			}
			cmd.Print(ui.Table{
				Title:   fmt.Sprintf("Document variables (%d)", len(names)),
				Headers: []string{"Name", "Value"},
				Rows:    rows,
			}.Render())
			return nil
		}
	},
}

var docxCheckCmd = &cobra.Command{
	Use:   "check FILE",
	Short: "Check that all required document variables are set",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		props, err := readDocument(args[0])
		if err != nil {
			return err
		}
		present, missing := checkRequired(props.Custom)

		if flagDocxFormat == "json" {
			if err := printJSON(cmd, map[string]any{
				"present": present,
				"missing": missing,
			}); err != nil {
				return err
			}
			if len(missing) > 0 {
				return fmt.Errorf("%d required variable(s) missing", len(missing))
			}
			return nil
		}

		var rows [][]string
		for _, name := range present {
			rows = append(rows, []string{name, formatValue(props.Custom[name]), ui.OK("vorhanden")})
		}
		for _, name := range missing {
			rows = append(rows, []string{name, "", ui.Fail("fehlt")})
		}
		cmd.Print(ui.Table{
			Title:   "Required document variables",
			Headers: []string{"Variable", "Value", "Status"},
			Rows:    rows,
		}.Render())

		if len(missing) > 0 {
			return fmt.Errorf("%d required variable(s) missing: %s",
				len(missing), strings.Join(missing, ", "))
		}
		cmd.Println(ui.OK("all required variables present"))
		return nil
	},
}

var docxAddVarsCmd = &cobra.Command{
	Use:   "add-vars FILE",
	Short: "Add missing document variables, prompting for values",
	Long: "add-vars checks the required document variables and fills in the\n" +
		"missing ones: interactively on a terminal, or from --set NAME=VALUE\n" +
		"pairs in batch mode. --review-all walks every required variable,\n" +
		"--force re-prompts for variables that are already set.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := docprops.Open(args[0], docprops.WithLogger(log))
		if err != nil {
			return err
		}
		current, err := store.ReadProperties()
		if err != nil {
			return err
		}

		var newProps map[string]string
		switch {
		case len(flagDocxSet) > 0:
			newProps, err = parseSetFlags(flagDocxSet)
			if err != nil {
				return err
			}
		case flagDocxBatch || !flagDocxInteractive:
			return fmt.Errorf("batch mode needs --set NAME=VALUE pairs")
		default:
			newProps, err = promptForVariables(cmd, current.Custom)
			if err != nil {
				return err
			}
		}
		if len(newProps) == 0 {
			cmd.Println(ui.Dim("no values provided, nothing to change"))
			return nil
		}

		cmd.Print(reviewTable(current.Custom, newProps, flagDocxReviewAll).Render())

		if flagDocxInteractive && !flagDocxBatch && !flagDocxForce {
			ok, err := confirm(cmd, "Apply these changes?")
			if err != nil {
				return err
			}
			if !ok {
				cmd.Println(ui.Dim("aborted, nothing written"))
				return nil
			}
		}

		written, err := store.AddOrUpdateProperties(newProps, flagDocxOutput)
		if err != nil {
			return err
		}
		log.Debug("properties written", zap.String("path", written))
		cmd.Println(ui.OK(fmt.Sprintf("%d propert%s written to %s",
			len(newProps), pluralY(len(newProps)), written)))
		return nil
	},
}

func init() {
	docxPropsCmd.Flags().StringVar(&flagDocxFormat, "format", "table", "output format (table|json)")
	docxPropsCmd.Flags().BoolVar(&flagDocxVarsOnly, "variables-only", false, "show only the custom properties")
	docxVarsCmd.Flags().StringVar(&flagDocxFormat, "format", "table", "output format (table|json)")
	docxCheckCmd.Flags().StringVar(&flagDocxFormat, "format", "table", "output format (table|json)")
	docxVarsCmd.Flags().BoolVar(&flagDocxNamesOnly, "names-only", false, "print only the variable names")
	docxAddVarsCmd.Flags().StringArrayVar(&flagDocxSet, "set", nil, "property to set as NAME=VALUE (repeatable)")
	docxAddVarsCmd.Flags().StringVarP(&flagDocxOutput, "output", "o", "", "write to this path instead of in place")
	docxAddVarsCmd.Flags().BoolVar(&flagDocxInteractive, "interactive", true, "prompt for missing values")
	docxAddVarsCmd.Flags().BoolVar(&flagDocxBatch, "batch", false, "no prompts, take values from --set and apply immediately")
	docxAddVarsCmd.Flags().BoolVarP(&flagDocxForce, "force", "f", false, "skip the confirmation prompt")
	docxAddVarsCmd.Flags().BoolVar(&flagDocxReviewAll, "review-all", false, "show unchanged properties in the review table")
	docxCmd.AddCommand(docxPropsCmd, docxVarsCmd, docxCheckCmd, docxAddVarsCmd)
}

func readDocument(path string) (*docprops.DocumentProperties, error) {
	store, err := docprops.Open(path, docprops.WithLogger(log))
	if err != nil {
		return nil, err
	}
	return store.ReadProperties()
}

// parseSetFlags turns repeated NAME=VALUE flags into a property map.
func parseSetFlags(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, fmt.Errorf("nothing to set, use --set NAME=VALUE")
	}
	props := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, found := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !found || name == "" {
			return nil, fmt.Errorf("invalid --set %q, expected NAME=VALUE", pair)
		}
		props[name] = value
	}
	return props, nil
}

// promptForVariables asks the user for the required variables that are
// missing (all of them with --review-all or --force). An empty answer
// keeps the current value or skips the variable.
func promptForVariables(cmd *cobra.Command, current map[string]any) (map[string]string, error) {
	_, missing := checkRequired(current)
	names := missing
	if flagDocxReviewAll || flagDocxForce {
		names = requiredVariables
	}
	if len(names) == 0 {
		cmd.Println(ui.OK("all required variables are already set"))
		cmd.Println(ui.Dim("use --review-all to review and update them"))
		return nil, nil
	}

	cmd.Println("Provide values for the following variables (Enter to skip):")
	reader := bufio.NewReader(cmd.InOrStdin())
	props := make(map[string]string)
	for _, name := range names {
		prompt := name
		if old := formatValue(current[name]); old != "" {
			prompt = fmt.Sprintf("%s [current: %s]", name, old)
		}
		cmd.Printf("  %s: ", prompt)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			break
		}
		if value := strings.TrimSpace(line); value != "" {
			props[name] = value
		}
	}
	return props, nil
}

// checkRequired splits the required variable names into those present in
// props and those missing. A variable set to the empty string counts as
// missing.
func checkRequired(props map[string]any) (present, missing []string) {
	for _, name := range requiredVariables {
		if value, ok := props[name]; ok && formatValue(value) != "" {
			present = append(present, name)
		} else {
			missing = append(missing, name)
		}
	}
	return present, missing
}

// reviewTable shows what add-vars is about to do. With all set it also
// lists properties that stay untouched.
func reviewTable(current map[string]any, updates map[string]string, all bool) ui.Table {
	var rows [][]string
	for _, name := range sortedKeys(updates) {
		old := ""
		if v, ok := current[name]; ok {
			old = formatValue(v)
		}
		rows = append(rows, []string{name, old, updates[name]})
	}
	if all {
		for _, name := range sortedKeys(current) {
			if _, changed := updates[name]; !changed {
				value := formatValue(current[name])
				rows = append(rows, []string{name, value, ui.Dim(value)})
			}
		}
	}
	return ui.Table{
		Title:   "Pending changes",
		Headers: []string{"Property", "Current", "New"},
		Rows:    rows,
	}
}

func confirm(cmd *cobra.Command, question string) (bool, error) {
	cmd.Printf("%s [y/N] ", question)
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return false, nil
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes" || answer == "j" || answer == "ja", nil
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		return t.Format("2006-01-02")
	default:
		return fmt.Sprintf("%v", t)
	}
}

func builtInMap(b docprops.BuiltInProperties) map[string]string {
	m := map[string]string{
		"Title":            b.Title,
		"Subject":          b.Subject,
		"Author":           b.Author,
		"Keywords":         b.Keywords,
		"Comments":         b.Comments,
		"Last modified by": b.LastModifiedBy,
		"Revision":         b.Revision,
		"Category":         b.Category,
		"Content status":   b.ContentStatus,
		"Version":          b.Version,
		"Language":         b.Language,
		"Identifier":       b.Identifier,
	}
	if b.Created != nil {
		m["Created"] = b.Created.Format(time.RFC3339)
	}
	if b.Modified != nil {
		m["Modified"] = b.Modified.Format(time.RFC3339)
	}
	for k, v := range m {
		if v == "" {
			delete(m, k)
		}
	}
	return m
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(data))
	return nil
}

func pluralY(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}
