package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/pr-audit/internal/domain"
	"github.com/naka-gawa/pr-audit/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Writes a PDF compliance report of merged pull requests",
	Long: `Runs the approval audit and writes a PDF with the number of compliant and violating
merged pull requests, their share, hours-to-merge statistics and the list of violations.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()

		logger := newLogger(cmd)
		cfg := loadConfig(cmd)
		out, _ := cmd.Flags().GetString("out")

		result := runAudit(ctx, cfg, logger)
		summary := report.Summarize(cfg.GitHub.FullName(), *result)
		if err := writePDFFile(out, summary, result.Violations()); err != nil {
			fail("Failed to generate report: %v", err)
		}

		fmt.Printf("Report generated: %s\n", out)
		fmt.Printf("Merged PRs: %d, compliant: %d (%.1f%%), violations: %d (%.1f%%)\n",
			summary.TotalMerged, summary.Compliant, summary.CompliantPercent, summary.Violations, summary.ViolationsPercent)
	},
}

// writePDFFile renders the compliance report into path.
func writePDFFile(path string, summary domain.ComplianceStats, violations []domain.Violation) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := report.WritePDF(f, summary, violations, time.Now()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().String("out", report.DefaultPDFPath, "Path of the PDF report")
}
