// Package report renders audit results as text, JSON and PDF.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/naka-gawa/pr-audit/internal/domain"
)

const (
	successMessage = "All merged PRs had proper approvals."
	headerMessage  = "Violations found:"
	unknownAuthor  = "unknown"
)

// WriteText prints the human-readable audit report.
func WriteText(w io.Writer, violations []domain.Violation) error {
	if len(violations) == 0 {
		_, err := fmt.Fprintln(w, successMessage)
		return err
	}
	if _, err := fmt.Fprintln(w, headerMessage); err != nil {
		return err
	}
	for _, v := range violations {
		if _, err := fmt.Fprintln(w, violationLine(v)); err != nil {
			return err
		}
	}
	return nil
}

func violationLine(v domain.Violation) string {
	return fmt.Sprintf(" - PR #%d (%s) by %s merged at %s with no external approval",
		v.PRNumber, v.Title, authorOrUnknown(v.Author), v.MergedAt.UTC().Format(time.RFC3339))
}

func authorOrUnknown(author string) string {
	if author == "" {
		return unknownAuthor
	}
	return author
}

// jsonReport is the machine-readable form of an audit run.
type jsonReport struct {
	Repository string             `json:"repository"`
	Violations []domain.Violation `json:"violations"`
}

// WriteJSON prints the violations as pretty-printed JSON.
func WriteJSON(w io.Writer, repository string, violations []domain.Violation) error {
	if violations == nil {
		violations = []domain.Violation{}
	}
	jsonData, err := json.MarshalIndent(jsonReport{Repository: repository, Violations: violations}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results to JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(jsonData))
	return err
}
