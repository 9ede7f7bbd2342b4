package report

import (
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/naka-gawa/pr-audit/internal/domain"
)

// DefaultPDFPath is where the compliance report is written when no path is given.
const DefaultPDFPath = "pr_compliance_report.pdf"

const (
	pageMargin = 10.0
	barWidth   = 150.0
	barHeight  = 12.0
)

type rgb struct{ r, g, b int }

var (
	compliantColor = rgb{0x4C, 0xAF, 0x50}
	violationColor = rgb{0xF4, 0x43, 0x36}
)

// newDocument returns an A4 document and the translator that maps UTF-8 text
// to the cp1252 encoding of the core fonts.
func newDocument() (*fpdf.Fpdf, func(string) string) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	return pdf, pdf.UnicodeTranslatorFromDescriptor("")
}

// WritePDF renders the compliance report: a summary, a compliant/violation bar and the violation list.
func WritePDF(w io.Writer, summary domain.ComplianceStats, violations []domain.Violation, generatedAt time.Time) error {
	pdf, tr := newDocument()
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, "PR Approval Compliance Report", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 12)
	pdf.CellFormat(0, 10, tr("Repository: "+summary.Repository), "", 1, "", false, 0, "")
	pdf.CellFormat(0, 10, "Generated at: "+generatedAt.Format("2006-01-02 15:04:05"), "", 1, "", false, 0, "")
	pdf.Ln(5)

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, "Summary", "", 1, "", false, 0, "")
	pdf.SetFont("Arial", "", 12)
	pdf.CellFormat(0, 8, fmt.Sprintf("Total merged PRs: %d", summary.TotalMerged), "", 1, "", false, 0, "")
	pdf.CellFormat(0, 8, fmt.Sprintf("Compliant PRs: %d (%.1f%%)", summary.Compliant, summary.CompliantPercent), "", 1, "", false, 0, "")
	pdf.CellFormat(0, 8, fmt.Sprintf("Violations: %d (%.1f%%)", summary.Violations, summary.ViolationsPercent), "", 1, "", false, 0, "")
	pdf.CellFormat(0, 8, fmt.Sprintf("Hours to merge: mean %.1f, median %.1f, p90 %.1f",
		summary.MeanHoursToMerge, summary.MedianHoursToMerge, summary.P90HoursToMerge), "", 1, "", false, 0, "")
	pdf.CellFormat(0, 8, fmt.Sprintf("Median hours to merge for violations: %.1f", summary.ViolationMedianHoursToMerge), "", 1, "", false, 0, "")
	pdf.Ln(5)

	drawComplianceBar(pdf, summary)

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, "Violations", "", 1, "", false, 0, "")
	pdf.SetFont("Arial", "", 12)
	if len(violations) == 0 {
		pdf.CellFormat(0, 8, "None", "", 1, "", false, 0, "")
	}
	for _, v := range violations {
		pdf.MultiCell(0, 8, tr(fmt.Sprintf("PR #%d (%s) by %s merged at %s",
			v.PRNumber, v.Title, authorOrUnknown(v.Author), v.MergedAt.UTC().Format(time.RFC3339))), "", "", false)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to render PDF report: %w", err)
	}
	return nil
}

// drawComplianceBar draws a stacked bar split by the compliant and violation shares, with a legend.
func drawComplianceBar(pdf *fpdf.Fpdf, summary domain.ComplianceStats) {
	x, y := pdf.GetX(), pdf.GetY()
	compliantWidth := 0.0
	if summary.TotalMerged > 0 {
		compliantWidth = barWidth * float64(summary.Compliant) / float64(summary.TotalMerged)
	}

	if compliantWidth > 0 {
		pdf.SetFillColor(compliantColor.r, compliantColor.g, compliantColor.b)
		pdf.Rect(x, y, compliantWidth, barHeight, "F")
	}
	if compliantWidth < barWidth && summary.TotalMerged > 0 {
		pdf.SetFillColor(violationColor.r, violationColor.g, violationColor.b)
		pdf.Rect(x+compliantWidth, y, barWidth-compliantWidth, barHeight, "F")
	}
	pdf.SetDrawColor(0, 0, 0)
	pdf.Rect(x, y, barWidth, barHeight, "D")

	pdf.SetXY(x, y+barHeight+2)
	pdf.SetFont("Arial", "", 10)
	legend := func(c rgb, label string) {
		lx, ly := pdf.GetX(), pdf.GetY()
		pdf.SetFillColor(c.r, c.g, c.b)
		pdf.Rect(lx, ly+1.5, 4, 4, "F")
		pdf.SetX(lx + 6)
		pdf.CellFormat(50, 7, label, "", 0, "", false, 0, "")
	}
	legend(compliantColor, "Compliant PRs")
	legend(violationColor, "Violations")
	pdf.Ln(12)
}
