package cmd

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/pr-audit/internal/evidence"
	"github.com/naka-gawa/pr-audit/internal/report"
)

var evidenceCmd = &cobra.Command{
	Use:   "evidence",
	Short: "Uploads the compliance report and violation records to Eramba",
	Long: `Runs the approval audit, uploads the PDF compliance report as evidence for the
configured control, then submits one approval record per violation.
Requires ERAMBA_URL, ERAMBA_API_TOKEN and ERAMBA_CONTROL_ID (or the matching flags).`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()

		logger := newLogger(cmd)
		cfg := loadConfig(cmd)
		if err := cfg.ValidateEramba(); err != nil {
			fail("Invalid configuration: %v", err)
		}
		out, _ := cmd.Flags().GetString("out")

		result := runAudit(ctx, cfg, logger)
		violations := result.Violations()
		if err := writePDFFile(out, report.Summarize(cfg.GitHub.FullName(), *result), violations); err != nil {
			fail("Failed to generate report: %v", err)
		}

		uploader := evidence.NewUploader(cfg.Eramba.URL, cfg.Eramba.Token, &http.Client{Timeout: cfg.GitHub.Timeout}, logger)

		pdf, err := os.Open(out)
		if err != nil {
			fail("Failed to open report: %v", err)
		}
		err = uploader.SubmitPDF(ctx, cfg.Eramba.ControlID, out, pdf, "Automated PR compliance PDF report")
		pdf.Close()
		if err != nil {
			fail("Failed to submit PDF evidence: %v", err)
		}
		fmt.Printf("PDF evidence submitted for control %s\n", cfg.Eramba.ControlID)

		failed := 0
		for _, v := range violations {
			if err := uploader.SubmitEvidence(ctx, cfg.Eramba.ControlID, evidence.ViolationEvidence(v)); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to submit evidence for PR #%d: %v\n", v.PRNumber, err)
				failed++
			}
		}
		fmt.Printf("Submitted %d of %d violation records for control %s\n", len(violations)-failed, len(violations), cfg.Eramba.ControlID)
		if failed > 0 {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(evidenceCmd)
	evidenceCmd.Flags().String("out", report.DefaultPDFPath, "Path of the PDF report")
	evidenceCmd.Flags().String("eramba-url", "https://eramba.company.com", "Base URL of the Eramba instance (ERAMBA_URL)")
	evidenceCmd.Flags().String("control-id", "CTRL-1234", "Eramba control receiving the evidence (ERAMBA_CONTROL_ID)")
}
