package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/contaflux/asientos/internal/model"
	"github.com/contaflux/asientos/internal/processor"
	"github.com/contaflux/asientos/internal/tax"
)

var infoCmd = &cobra.Command{
	Use:   "info [files...]",
	Short: "Show document and chart information",
	Long: `Display information about invoice documents without processing them.

Shows the detected format, a content preview for text documents and,
when a rule table is configured, the classification rule the document
would match. Without arguments it prints the chart accounts and the
rule vocabulary the generator works with.

Examples:
  asientos info
  asientos info factura.pdf
  asientos info inbox/*.txt --rules reglas.csv`,
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		printChart()
		return nil
	}

	files, err := collectFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files found")
	}

	// Classification is shown when a rule source is configured, and
	// silently skipped otherwise.
	var pipe *processor.Pipeline
	if store, err := newRuleStore(context.Background(), newLogger()); err == nil {
		pipe = processor.NewPipeline(processor.WithStore(store))
	} else {
		printVerbose("rule classification unavailable: %v\n", err)
	}

	for _, file := range files {
		printFileInfo(pipe, file)
		fmt.Println()
	}

	return nil
}

func printFileInfo(pipe *processor.Pipeline, filePath string) {
	fmt.Printf("File: %s\n", filePath)

	info, err := os.Stat(filePath)
	if err != nil {
		fmt.Printf("  Error: %v\n", err)
		return
	}

	fmt.Printf("  Size: %d bytes\n", info.Size())
	fmt.Printf("  Modified: %s\n", info.ModTime().Format("2006-01-02 15:04:05"))

	data, err := os.ReadFile(filePath)
	if err != nil {
		fmt.Printf("  Error reading file: %v\n", err)
		return
	}

	format := processor.DetectFormat(data)
	fmt.Printf("  Format: %s\n", format)

	if format != processor.FormatText {
		return
	}

	if preview := getPreview(string(data), 200); preview != "" {
		fmt.Printf("  Preview: %s\n", preview)
	}
	if pipe != nil {
		if rule := pipe.Classify(string(data)); rule != nil {
			fmt.Printf("  Rule: %s (account %s, %s)\n",
				strings.Join(rule.Keywords, ", "), rule.Account, rule.OperationType)
		} else {
			fmt.Println("  Rule: no match")
		}
	}
}

func printChart() {
	accounts := tax.StandardAccounts()
	names := make([]string, 0, len(accounts))
	for name := range accounts {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("Chart accounts:")
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, name := range names {
		fmt.Fprintf(tw, "  %s\t%s\n", name, accounts[name])
	}
	tw.Flush()

	fmt.Println()
	fmt.Println("Tax types:")
	for _, t := range []string{
		model.TaxGeneral, model.TaxReduced, model.TaxSuperReduced,
		model.TaxExempt, model.TaxNotSubject, model.TaxReverseCharge,
	} {
		fmt.Printf("  %s\n", t)
	}

	fmt.Println()
	fmt.Println("Operation types:")
	for _, o := range []model.OperationType{
		model.OperationExpense, model.OperationIncome, model.OperationAssetPurchase,
	} {
		fmt.Printf("  %s\n", o)
	}
}

func getPreview(content string, maxLen int) string {
	content = strings.TrimSpace(content)
	content = strings.ReplaceAll(content, "\n", " ")
	content = strings.ReplaceAll(content, "\t", " ")

	for strings.Contains(content, "  ") {
		content = strings.ReplaceAll(content, "  ", " ")
	}

	if len(content) > maxLen {
		content = content[:maxLen] + "..."
	}

	return content
}
