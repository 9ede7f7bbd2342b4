// Package domain contains the core data structures and domain logic for the application.
package domain

import (
	"strings"
	"time"
)

// ReviewState is the state of a pull request review as reported by GitHub.
type ReviewState string

// ReviewState values.
const (
	ReviewStateApproved         ReviewState = "APPROVED"
	ReviewStateChangesRequested ReviewState = "CHANGES_REQUESTED"
	ReviewStateCommented        ReviewState = "COMMENTED"
	ReviewStatePending          ReviewState = "PENDING"
	ReviewStateDismissed        ReviewState = "DISMISSED"
)

// IsApproval reports whether the state is APPROVED, ignoring case.
func (s ReviewState) IsApproval() bool {
	return strings.EqualFold(string(s), string(ReviewStateApproved))
}

// PullRequest is a closed pull request as returned by the list call.
// An empty Author means GitHub returned no user (e.g. a deleted account).
type PullRequest struct {
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	Author    string     `json:"author,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	MergedAt  *time.Time `json:"merged_at"`
}

// IsMerged reports whether the pull request carries a merge timestamp.
func (pr PullRequest) IsMerged() bool {
	return pr.MergedAt != nil
}

// Review is a single review left on a pull request.
type Review struct {
	State  ReviewState `json:"state"`
	Author string      `json:"author,omitempty"`
}

// Violation records a merged pull request that had no approval from anyone but its author.
type Violation struct {
	PRNumber int       `json:"pr_number"`
	Title    string    `json:"title"`
	Author   string    `json:"author"`
	MergedAt time.Time `json:"merged_at"`
}

// NewViolation builds a Violation from a merged pull request.
func NewViolation(pr PullRequest) Violation {
	v := Violation{
		PRNumber: pr.Number,
		Title:    pr.Title,
		Author:   pr.Author,
	}
	if pr.MergedAt != nil {
		v.MergedAt = *pr.MergedAt
	}
	return v
}

// AuditResult splits the merged pull requests of one run into compliant and violating ones.
// Both lists keep the order in which the pull requests were listed.
type AuditResult struct {
	Compliant []PullRequest `json:"compliant"`
	Violating []PullRequest `json:"violating"`
}

// Total returns the number of merged pull requests that were evaluated.
func (r AuditResult) Total() int {
	return len(r.Compliant) + len(r.Violating)
}

// Violations returns a Violation record for every violating pull request, in list order.
func (r AuditResult) Violations() []Violation {
	violations := make([]Violation, 0, len(r.Violating))
	for _, pr := range r.Violating {
		violations = append(violations, NewViolation(pr))
	}
	return violations
}

// IsQualifyingApproval reports whether review counts as an approval of pr.
// A review without an author is never treated as the PR author approving their own change.
func IsQualifyingApproval(pr PullRequest, review Review) bool {
	if !review.State.IsApproval() {
		return false
	}
	return review.Author == "" || review.Author != pr.Author
}

// QualifyingApprovals counts the reviews that approve pr on behalf of someone other than its author.
func QualifyingApprovals(pr PullRequest, reviews []Review) int {
	n := 0
	for _, r := range reviews {
		if IsQualifyingApproval(pr, r) {
			n++
		}
	}
	return n
}

// IsViolation reports whether pr was merged without a qualifying approval.
func IsViolation(pr PullRequest, reviews []Review) bool {
	return QualifyingApprovals(pr, reviews) == 0
}
