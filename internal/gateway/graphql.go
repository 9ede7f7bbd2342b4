package gateway

import (
	"context"
	"fmt"
	"log"

	"github.com/shurcooL/githubv4"

	"github.com/naka-gawa/pr-audit/internal/domain"
)

// GraphQLGateway is the GraphQL implementation of the Fetcher interface.
type GraphQLGateway struct {
	graphqlClient *githubv4.Client
	opts          Options
	call          caller
	logger        *log.Logger
}

// closedPullRequestsQuery mirrors the REST "state=closed" listing:
// closed and merged PRs, newest first.
type closedPullRequestsQuery struct {
	Repository struct {
		PullRequests struct {
			PageInfo struct {
				HasNextPage bool
				EndCursor   githubv4.String
			}
			Nodes []struct {
				Number githubv4.Int
				Title  githubv4.String
				Author struct {
					Login githubv4.String
				}
				CreatedAt githubv4.DateTime
				MergedAt  *githubv4.DateTime
			}
		} `graphql:"pullRequests(states: [CLOSED, MERGED], first: $perPage, after: $cursor, orderBy: {field: CREATED_AT, direction: DESC})"`
	} `graphql:"repository(owner: $owner, name: $name)"`
}

// reviewsQuery fetches the reviews of a single pull request.
type reviewsQuery struct {
	Repository struct {
		PullRequest struct {
			Reviews struct {
				PageInfo struct {
					HasNextPage bool
					EndCursor   githubv4.String
				}
				Nodes []struct {
					State  githubv4.PullRequestReviewState
					Author struct {
						Login githubv4.String
					}
				}
			} `graphql:"reviews(first: $perPage, after: $cursor)"`
		} `graphql:"pullRequest(number: $number)"`
	} `graphql:"repository(owner: $owner, name: $name)"`
}

// NewGraphQLGateway creates a GraphQL gateway.
// endpoint selects a GitHub Enterprise Server GraphQL URL; empty means api.github.com.
func NewGraphQLGateway(token, endpoint string, opts Options, logger *log.Logger) (Fetcher, error) {
	httpClient, err := newHTTPClient(token)
	if err != nil {
		return nil, err
	}
	httpClient = withServerErrors(httpClient)
	client := githubv4.NewClient(httpClient)
	if endpoint != "" {
		client = githubv4.NewEnterpriseClient(endpoint, httpClient)
	}
	return newGraphQLGateway(client, opts, logger), nil
}

func newGraphQLGateway(client *githubv4.Client, opts Options, logger *log.Logger) *GraphQLGateway {
	return &GraphQLGateway{
		graphqlClient: client,
		opts:          opts,
		call:          newCaller(opts, logger),
		logger:        logger,
	}
}

func (g *GraphQLGateway) FetchClosedPullRequests(ctx context.Context) ([]domain.PullRequest, error) {
	g.logger.Printf("Fetching closed pull requests of %s/%s using GraphQL API...", g.opts.Owner, g.opts.Repo)
	variables := map[string]interface{}{
		"owner":   githubv4.String(g.opts.Owner),
		"name":    githubv4.String(g.opts.Repo),
		"perPage": githubv4.Int(g.opts.PerPage),
		"cursor":  (*githubv4.String)(nil),
	}
	var prs []domain.PullRequest
	for {
		var q closedPullRequestsQuery
		err := g.call.do(ctx, "query pull requests", func(ctx context.Context) error {
			q = closedPullRequestsQuery{}
			return g.graphqlClient.Query(ctx, &q, variables)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to execute GraphQL query for pull requests: %w", err)
		}
		for _, node := range q.Repository.PullRequests.Nodes {
			pr := domain.PullRequest{
				Number:    int(node.Number),
				Title:     string(node.Title),
				Author:    string(node.Author.Login),
				CreatedAt: node.CreatedAt.Time,
			}
			if node.MergedAt != nil {
				mergedAt := node.MergedAt.Time
				pr.MergedAt = &mergedAt
			}
			prs = append(prs, pr)
		}
		if !g.opts.Paginate || !q.Repository.PullRequests.PageInfo.HasNextPage {
			break
		}
		variables["cursor"] = githubv4.NewString(q.Repository.PullRequests.PageInfo.EndCursor)
		g.logger.Println("  Fetching next page of pull requests...")
	}
	g.logger.Printf("Completed fetching %d closed pull requests.", len(prs))
	return prs, nil
}

func (g *GraphQLGateway) FetchReviews(ctx context.Context, number int) ([]domain.Review, error) {
	g.logger.Printf("  Fetching reviews of PR #%d...", number)
	variables := map[string]interface{}{
		"owner":   githubv4.String(g.opts.Owner),
		"name":    githubv4.String(g.opts.Repo),
		"number":  githubv4.Int(number),
		"perPage": githubv4.Int(reviewsPerPage),
		"cursor":  (*githubv4.String)(nil),
	}
	var reviews []domain.Review
	for {
		var q reviewsQuery
		err := g.call.do(ctx, fmt.Sprintf("query reviews of PR #%d", number), func(ctx context.Context) error {
			q = reviewsQuery{}
			return g.graphqlClient.Query(ctx, &q, variables)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to execute GraphQL query for reviews of PR #%d: %w", number, err)
		}
		for _, node := range q.Repository.PullRequest.Reviews.Nodes {
			reviews = append(reviews, domain.Review{
				State:  domain.ReviewState(node.State),
				Author: string(node.Author.Login),
			})
		}
		if !g.opts.Paginate || !q.Repository.PullRequest.Reviews.PageInfo.HasNextPage {
			break
		}
		variables["cursor"] = githubv4.NewString(q.Repository.PullRequest.Reviews.PageInfo.EndCursor)
	}
	return reviews, nil
}
