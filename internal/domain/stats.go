package domain

// ComplianceStats holds the aggregate figures of one audit run.
// It backs the compliance report and the JSON summary.
type ComplianceStats struct {
	Repository        string  `json:"repository"`
	TotalMerged       int     `json:"total_merged"`
	Compliant         int     `json:"compliant"`
	Violations        int     `json:"violations"`
	CompliantPercent  float64 `json:"compliant_percent"`
	ViolationsPercent float64 `json:"violations_percent"`

	// Hours from creation to merge across all merged PRs.
	// Zero when no PR carried a creation time.
	MeanHoursToMerge   float64 `json:"mean_hours_to_merge"`
	MedianHoursToMerge float64 `json:"median_hours_to_merge"`
	P90HoursToMerge    float64 `json:"p90_hours_to_merge"`

	// Median hours to merge for the violating PRs only.
	ViolationMedianHoursToMerge float64 `json:"violation_median_hours_to_merge"`
}
