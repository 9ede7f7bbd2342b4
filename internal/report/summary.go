package report

import (
	"github.com/montanaflynn/stats"

	"github.com/naka-gawa/pr-audit/internal/domain"
)

// Summarize computes the compliance figures for one audit run.
func Summarize(repository string, result domain.AuditResult) domain.ComplianceStats {
	s := domain.ComplianceStats{
		Repository:  repository,
		TotalMerged: result.Total(),
		Compliant:   len(result.Compliant),
		Violations:  len(result.Violating),
	}
	if s.TotalMerged > 0 {
		s.CompliantPercent = float64(s.Compliant) / float64(s.TotalMerged) * 100
		s.ViolationsPercent = float64(s.Violations) / float64(s.TotalMerged) * 100
	}

	all := hoursToMerge(append(append([]domain.PullRequest{}, result.Compliant...), result.Violating...))
	s.MeanHoursToMerge = orZero(stats.Mean(all))
	s.MedianHoursToMerge = orZero(stats.Median(all))
	s.P90HoursToMerge = orZero(stats.Percentile(all, 90))
	s.ViolationMedianHoursToMerge = orZero(stats.Median(hoursToMerge(result.Violating)))
	return s
}

// hoursToMerge collects creation-to-merge durations, skipping PRs without both timestamps.
func hoursToMerge(prs []domain.PullRequest) stats.Float64Data {
	var data stats.Float64Data
	for _, pr := range prs {
		if pr.MergedAt == nil || pr.CreatedAt.IsZero() {
			continue
		}
		data = append(data, pr.MergedAt.Sub(pr.CreatedAt).Hours())
	}
	return data
}

// orZero maps the empty-input error of the stats package to zero.
func orZero(v float64, err error) float64 {
	if err != nil {
		return 0
	}
	return v
}
