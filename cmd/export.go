package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leads-cli/internal/export"
	"github.com/sells-group/leads-cli/internal/leadcsv"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Build the XLSX sales pack from a lead CSV",
	Long: `Writes an XLSX workbook with three sheets: ALL (every lead), Qualified
(qualified yes or maybe) and No Email (leads without an email). Rows are
ordered by qualified, then score descending, then company name.

Examples:
  leads-cli export --in leads_scored.csv --out sales_pack.xlsx`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("export"); err != nil {
			return err
		}
		in, _ := cmd.Flags().GetString("in")
		out, _ := cmd.Flags().GetString("out")

		recs, extras, err := leadcsv.ReadLeads(in)
		if err != nil {
			return eris.Wrap(err, "export")
		}
		summary, err := export.SalesPack(out, recs, leadcsv.LeadColumns(extras))
		if err != nil {
			return eris.Wrap(err, "export")
		}
		zap.L().Info("export: sales pack written",
			zap.String("output", out),
			zap.Int("all", summary.All),
			zap.Int("qualified", summary.Qualified),
			zap.Int("no_email", summary.NoEmail),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("in", "", "input lead CSV (required)")
	exportCmd.Flags().String("out", "", "output XLSX path (required)")
	_ = exportCmd.MarkFlagRequired("in")
	_ = exportCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(exportCmd)
}
