package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/praetorian-inc/vuescan/pkg/index"
	"github.com/praetorian-inc/vuescan/pkg/rule"
	"github.com/praetorian-inc/vuescan/pkg/types"
	"github.com/spf13/cobra"
)

var (
	rulesPath       string
	rulesCategories string
	outputFormat    string
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage detection rules",
	Long:  "Commands for listing and inspecting detection rules",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available rules",
	Long:  "Display detection rules with their severity, category, priority and target file types",
	RunE:  runRulesList,
}

func init() {
	rulesCmd.AddCommand(rulesListCmd)
	rulesListCmd.Flags().StringVar(&rulesPath, "rules", "", "Path to custom rules file or directory")
	rulesListCmd.Flags().StringVar(&rulesCategories, "category", "", "Only list these categories (comma-separated)")
	rulesListCmd.Flags().StringVar(&outputFormat, "format", "table", "Output format: table, json")
}

func runRulesList(cmd *cobra.Command, args []string) error {
	c, _ := settings()

	path := rulesPath
	if path == "" {
		path = c.Rules.Path
	}
	rules, err := loadRules(path, rule.FilterConfig{
		Include:    c.Rules.Include,
		Exclude:    c.Rules.Exclude,
		Categories: rule.ParsePatterns(rulesCategories),
	})
	if err != nil {
		return err
	}

	switch outputFormat {
	case "json":
		return outputRulesJSON(cmd, rules)
	case "table":
		return outputRulesTable(cmd, rules)
	default:
		return fmt.Errorf("unknown output format: %s", outputFormat)
	}
}

// loadRules loads builtin rules, or the rules under path, and filters them.
func loadRules(path string, filter rule.FilterConfig) ([]*types.Rule, error) {
	loader := rule.NewLoader()

	var rules []*types.Rule
	var err error
	if path != "" {
		rules, err = loader.LoadPath(path)
		if err != nil {
			return nil, fmt.Errorf("loading rules from %s: %w", path, err)
		}
	} else {
		rules, err = loader.LoadBuiltinRules()
		if err != nil {
			return nil, fmt.Errorf("loading builtin rules: %w", err)
		}
	}

	rules, err = rule.Filter(rules, filter)
	if err != nil {
		return nil, fmt.Errorf("filtering rules: %w", err)
	}
	return rules, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func outputRulesJSON(cmd *cobra.Command, rules []*types.Rule) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(rules)
}

func outputRulesTable(cmd *cobra.Command, rules []*types.Rule) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "ID\tName\tSeverity\tCategory\tPriority\tTargets\n")
	fmt.Fprintf(w, "--\t----\t--------\t--------\t--------\t-------\n")

	for _, r := range rules {
		targets := index.Categorize(r)
		exts := ""
		if len(targets.Extensions) > 0 {
			exts = targets.Extensions[0]
			if len(targets.Extensions) > 1 {
				exts += fmt.Sprintf(" (+%d)", len(targets.Extensions)-1)
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			r.ID, r.Name, r.Severity, r.Category, index.Priority(r), exts)
	}

	return nil
}
