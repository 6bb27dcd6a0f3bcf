package cmd

import (
	"context"
	"fmt"

	"bank-reconciliation-engine/internal/importer"
	"bank-reconciliation-engine/pkg/logger"

	"github.com/spf13/cobra"
)

var importCompanyID int64

var importCmd = &cobra.Command{
	Use:   "import <statements.csv>",
	Short: "Import a bank statement CSV",
	Long: `Import parses a bank statement CSV file and creates unreconciled
statement lines for the given company. Rows that fail to parse are
reported and skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().Int64Var(&importCompanyID, "company", 0, "company ID owning the lines (required)")
	importCmd.MarkFlagRequired("company")

	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	imp := importer.NewImporter(st, nil)
	stats, err := imp.ImportFile(context.Background(), args[0], importCompanyID)
	if err != nil {
		return err
	}

	for _, rowErr := range stats.Errors {
		logger.WithComponent("import").WithError(rowErr).Warn("row skipped")
	}
	fmt.Printf("imported %d of %d rows (%d errors)\n",
		stats.RowsImported, stats.RowsRead, len(stats.Errors))

	return nil
}
