package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	dec "github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/contaflux/asientos/internal/model"
	"github.com/contaflux/asientos/internal/tax"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect the classification rule table",
	Long: `Load and inspect the classification rule table.

Without a subcommand the table is listed. Use "check" to validate it:
schema violations and rules that can only produce review entries are
reported per rule, with a non-zero exit when any is an error.

Examples:
  asientos rules --rules reglas.csv
  asientos rules list --rules reglas.csv
  asientos rules check --rules reglas.csv`,
	RunE: runRulesList,
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Load and display the rule table",
	RunE:  runRulesList,
}

var rulesCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the rule table",
	RunE:  runRulesCheck,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesCheckCmd)
}

func runRulesList(cmd *cobra.Command, args []string) error {
	log := newLogger()
	store, err := newRuleStore(context.Background(), log)
	if err != nil {
		return err
	}
	snap := store.Snapshot()

	if outputFormat == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(snap.Rules())
	}

	fmt.Printf("%d rules (version %s)\n\n", snap.Len(), snap.Version())

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PRIORITY\tKEYWORDS\tACCOUNT\tCOUNTER\tTYPE\tVAT\tWITHHOLDING")
	fmt.Fprintln(tw, "--------\t--------\t-------\t-------\t----\t---\t-----------")
	for _, r := range snap.Rules() {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Priority,
			clip(strings.Join(r.Keywords, ", "), 40),
			r.Account,
			r.CounterAccount,
			r.OperationType,
			r.TaxType,
			r.SpecialTreatment,
		)
	}
	return tw.Flush()
}

func runRulesCheck(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	source, err := newRuleSource(ctx)
	if err != nil {
		return err
	}

	result := &RuleCheckResult{Source: source.Describe(), Valid: true}
	loaded, _, err := source.Load(ctx)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
	}
	result.Rules = len(loaded)

	for i, r := range loaded {
		name := fmt.Sprintf("rule %d", i+1)
		if len(r.Keywords) > 0 {
			name = fmt.Sprintf("rule %d (%s)", i+1, r.Keywords[0])
		}
		checkRule(result, name, r)
	}

	if outputFormat == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(result); err != nil {
			return err
		}
	} else {
		if result.Valid {
			fmt.Printf("✓ %s: VALID (%d rules)\n", result.Source, result.Rules)
		} else {
			fmt.Printf("✗ %s: INVALID\n", result.Source)
		}
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
		for _, w := range result.Warnings {
			fmt.Printf("  ⚠ %s\n", w)
		}
	}

	if !result.Valid {
		return fmt.Errorf("rule table failed validation")
	}
	return nil
}

// checkRule reports the conditions under which a rule can only produce
// review entries or no entries at all.
func checkRule(result *RuleCheckResult, name string, r model.Rule) {
	if len(r.Keywords) == 0 {
		result.Warnings = append(result.Warnings, name+": no keywords, never matches")
	}
	if r.Account == "" {
		result.Valid = false
		result.Errors = append(result.Errors, name+": missing account")
	}
	if r.CounterAccount == "" {
		result.Warnings = append(result.Warnings, name+": missing counter account, entries will be flagged for review")
	}
	if r.OperationType == "" {
		result.Valid = false
		result.Errors = append(result.Errors, name+": missing operation type")
	} else if !r.OperationType.ExpenseLike() && !r.OperationType.IncomeLike() {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("%s: unknown operation type %q", name, r.OperationType))
	}
	if _, err := tax.ComputeVAT(dec.NewFromInt(100), r.TaxType, nil, r.OperationType); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", name, err))
	}
	if r.SpecialTreatment != "" {
		if _, ok := tax.ComputeWithholding(dec.NewFromInt(100), r.SpecialTreatment, nil); !ok {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s: special treatment %q carries no percentage, no retention will be applied", name, r.SpecialTreatment))
		}
	}
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// RuleCheckResult holds the outcome of validating a rule table
type RuleCheckResult struct {
	Source   string   `json:"source"`
	Valid    bool     `json:"valid"`
	Rules    int      `json:"rules"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}
