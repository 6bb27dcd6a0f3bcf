package cmd

import (
	"context"
	"fmt"

	"bank-reconciliation-engine/internal/matcher"

	"github.com/spf13/cobra"
)

var matchLineID int64

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Show ranked candidates for one statement line",
	Long: `Match evaluates the reconcile models against a single statement line
and prints the candidate ledger entries, closest amount first, without
posting anything. Useful to inspect why a line did or did not
auto-reconcile.`,
	RunE: runMatch,
}

func init() {
	matchCmd.Flags().Int64Var(&matchLineID, "line", 0, "statement line ID (required)")
	matchCmd.MarkFlagRequired("line")

	rootCmd.AddCommand(matchCmd)
}

func runMatch(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()

	line, err := st.StatementLine(ctx, matchLineID)
	if err != nil {
		return err
	}

	rules, err := st.ModelsForCompany(ctx, line.CompanyID)
	if err != nil {
		return err
	}

	engine, err := matcher.NewEngine(st, matcher.DefaultConfig())
	if err != nil {
		return err
	}

	result, err := engine.Evaluate(ctx, line, rules)
	if err != nil {
		return err
	}

	fmt.Printf("%s\n", line)
	if result == nil {
		fmt.Println("no candidates found")
		return nil
	}

	fmt.Printf("model: %s (auto-reconcile permitted: %t)\n", result.Model.Name, result.AllowAutoReconcile)

	matcher.RankByAmountProximity(line, result.Entries)
	for _, entry := range result.Entries {
		fmt.Printf("  %s\n", entry)
	}
	for _, order := range result.Orders {
		fmt.Printf("  suggestion: sale order %s (%s)\n", order.Name, order.InvoiceStatus)
	}
	if result.Writeoff != nil {
		fmt.Printf("  write-off: %s -> account %s\n", result.Writeoff.Amount, result.Writeoff.Account)
	}

	return nil
}
