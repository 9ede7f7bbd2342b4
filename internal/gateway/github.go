// Package gateway provides a gateway to the GitHub API,
// abstracting away the underlying REST and GraphQL clients.
package gateway

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/go-github/v62/github"

	"github.com/naka-gawa/pr-audit/internal/domain"
)

// reviewsPerPage is the page size used when listing reviews, GitHub's maximum.
const reviewsPerPage = 100

// Fetcher defines the behavior of a gateway for fetching pull request data from GitHub.
type Fetcher interface {
	// FetchClosedPullRequests lists closed pull requests of the configured repository,
	// merged or not, in the order GitHub returns them.
	FetchClosedPullRequests(ctx context.Context) ([]domain.PullRequest, error)
	// FetchReviews lists the reviews of one pull request.
	FetchReviews(ctx context.Context, number int) ([]domain.Review, error)
}

// Options selects the repository and the fetching behavior shared by both gateways.
type Options struct {
	Owner   string
	Repo    string
	PerPage int
	// Paginate follows every page. When false only the first page is read.
	Paginate bool
	// Timeout bounds each single request. Zero disables it.
	Timeout time.Duration
	// Retries is the number of extra attempts after a transient failure.
	Retries int
}

// GitHubGateway is the REST implementation of the Fetcher interface.
type GitHubGateway struct {
	restClient *github.Client
	opts       Options
	call       caller
	logger     *log.Logger
}

// NewGitHubGateway is a constructor that creates a REST gateway.
// baseURL selects a GitHub Enterprise Server API root; empty means api.github.com.
func NewGitHubGateway(token, baseURL string, opts Options, logger *log.Logger) (Fetcher, error) {
	httpClient, err := newHTTPClient(token)
	if err != nil {
		return nil, err
	}
	restClient := github.NewClient(httpClient)
	if baseURL != "" {
		restClient, err = restClient.WithEnterpriseURLs(baseURL, baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub base URL %q: %w", baseURL, err)
		}
	}
	return newGitHubGateway(restClient, opts, logger), nil
}

func newGitHubGateway(restClient *github.Client, opts Options, logger *log.Logger) *GitHubGateway {
	return &GitHubGateway{
		restClient: restClient,
		opts:       opts,
		call:       newCaller(opts, logger),
		logger:     logger,
	}
}

func (g *GitHubGateway) FetchClosedPullRequests(ctx context.Context) ([]domain.PullRequest, error) {
	g.logger.Printf("Fetching closed pull requests of %s/%s using REST API...", g.opts.Owner, g.opts.Repo)
	opts := &github.PullRequestListOptions{
		State:       "closed",
		ListOptions: github.ListOptions{PerPage: g.opts.PerPage},
	}
	var prs []domain.PullRequest
	for {
		var (
			page []*github.PullRequest
			resp *github.Response
		)
		err := g.call.do(ctx, "list pull requests", func(ctx context.Context) error {
			var err error
			page, resp, err = g.restClient.PullRequests.List(ctx, g.opts.Owner, g.opts.Repo, opts)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list pull requests with REST API: %w", err)
		}
		for _, pr := range page {
			prs = append(prs, toPullRequest(pr))
		}
		if !g.opts.Paginate || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
		g.logger.Println("  Fetching next page of pull requests...")
	}
	g.logger.Printf("Completed fetching %d closed pull requests.", len(prs))
	return prs, nil
}

func (g *GitHubGateway) FetchReviews(ctx context.Context, number int) ([]domain.Review, error) {
	g.logger.Printf("  Fetching reviews of PR #%d...", number)
	opts := &github.ListOptions{PerPage: reviewsPerPage}
	var reviews []domain.Review
	for {
		var (
			page []*github.PullRequestReview
			resp *github.Response
		)
		err := g.call.do(ctx, fmt.Sprintf("list reviews of PR #%d", number), func(ctx context.Context) error {
			var err error
			page, resp, err = g.restClient.PullRequests.ListReviews(ctx, g.opts.Owner, g.opts.Repo, number, opts)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list reviews of PR #%d with REST API: %w", number, err)
		}
		for _, r := range page {
			reviews = append(reviews, domain.Review{
				State:  domain.ReviewState(r.GetState()),
				Author: r.GetUser().GetLogin(),
			})
		}
		if !g.opts.Paginate || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return reviews, nil
}

func toPullRequest(pr *github.PullRequest) domain.PullRequest {
	out := domain.PullRequest{
		Number:    pr.GetNumber(),
		Title:     pr.GetTitle(),
		Author:    pr.GetUser().GetLogin(),
		CreatedAt: pr.GetCreatedAt().Time,
	}
	if pr.MergedAt != nil {
		mergedAt := pr.MergedAt.Time
		out.MergedAt = &mergedAt
	}
	return out
}
