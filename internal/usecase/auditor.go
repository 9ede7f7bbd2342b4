// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/naka-gawa/pr-audit/internal/domain"
	"github.com/naka-gawa/pr-audit/internal/gateway"
)

// Auditor is the use case for checking merged pull requests for external approval.
// It orchestrates fetching pull requests and their reviews and applies the approval rule.
type Auditor struct {
	fetcher     gateway.Fetcher
	logger      *log.Logger
	concurrency int
}

// NewAuditor creates a new Auditor instance.
// concurrency bounds how many review fetches run at once; 1 or less means strictly sequential.
func NewAuditor(fetcher gateway.Fetcher, logger *log.Logger, concurrency int) *Auditor {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Auditor{
		fetcher:     fetcher,
		logger:      logger,
		concurrency: concurrency,
	}
}

// FetchMergedPullRequests returns the closed pull requests that carry a merge timestamp,
// in the order the gateway listed them.
func (a *Auditor) FetchMergedPullRequests(ctx context.Context) ([]domain.PullRequest, error) {
	prs, err := a.fetcher.FetchClosedPullRequests(ctx)
	if err != nil {
		return nil, err
	}
	merged := make([]domain.PullRequest, 0, len(prs))
	for _, pr := range prs {
		if pr.IsMerged() {
			merged = append(merged, pr)
		}
	}
	a.logger.Printf("Usecase: %d of %d closed pull requests were merged.", len(merged), len(prs))
	return merged, nil
}

// FetchReviews returns the reviews of a previously listed pull request.
func (a *Auditor) FetchReviews(ctx context.Context, number int) ([]domain.Review, error) {
	return a.fetcher.FetchReviews(ctx, number)
}

// Audit evaluates every merged pull request and splits them into compliant and violating ones.
// Nothing is returned when any fetch fails.
func (a *Auditor) Audit(ctx context.Context) (*domain.AuditResult, error) {
	a.logger.Println("Usecase: Starting approval audit...")

	prs, err := a.FetchMergedPullRequests(ctx)
	if err != nil {
		return nil, err
	}

	// Each goroutine writes only its own index, so the list order survives the fan-out.
	violating := make([]bool, len(prs))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(a.concurrency)
	for i, pr := range prs {
		// Stop dispatching once a fetch has failed.
		if egCtx.Err() != nil {
			break
		}
		i, pr := i, pr
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			reviews, err := a.FetchReviews(egCtx, pr.Number)
			if err != nil {
				return err
			}
			violating[i] = domain.IsViolation(pr, reviews)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	result := &domain.AuditResult{
		Compliant: []domain.PullRequest{},
		Violating: []domain.PullRequest{},
	}
	for i, pr := range prs {
		if violating[i] {
			result.Violating = append(result.Violating, pr)
		} else {
			result.Compliant = append(result.Compliant, pr)
		}
	}
	a.logger.Printf("Usecase: Audit complete. %d compliant, %d violations.", len(result.Compliant), len(result.Violating))
	return result, nil
}

// CheckPRs returns one Violation per merged pull request without an approval
// from someone other than its author, in merged-PR list order.
func (a *Auditor) CheckPRs(ctx context.Context) ([]domain.Violation, error) {
	result, err := a.Audit(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit failed: %w", err)
	}
	return result.Violations(), nil
}
