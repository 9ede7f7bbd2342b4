package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shurcooL/githubv4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/pr-audit/internal/domain"
)

// graphqlRequest is the body githubv4 posts to the endpoint.
type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

func setupTestGraphQLGateway(t *testing.T, handler http.Handler, opts Options) (*GraphQLGateway, *httptest.Server) {
	server := httptest.NewServer(handler)
	// Use NewEnterpriseClient to point the GraphQL client to our mock server's URL.
	client := githubv4.NewEnterpriseClient(server.URL, withServerErrors(server.Client()))
	logger := log.New(io.Discard, "", 0)
	gateway := newGraphQLGateway(client, opts, logger)
	gateway.call.wait = time.Millisecond
	return gateway, server
}

func decodeGraphQLRequest(t *testing.T, r *http.Request) graphqlRequest {
	body, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	var req graphqlRequest
	require.NoError(t, json.Unmarshal(body, &req))
	return req
}

func TestGraphQLGateway_FetchClosedPullRequests(t *testing.T) {
	createdAt := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	mergedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	testCases := []struct {
		name           string
		responseBody   string
		expected       []domain.PullRequest
		expectError    bool
		expectedErrMsg string
	}{
		{
			name: "happy path",
			responseBody: `{"data":{"repository":{"pullRequests":{"pageInfo":{"hasNextPage":false,"endCursor":"c1"},"nodes":[
				{"number":1,"title":"Add feature","author":{"login":"alice"},"createdAt":"2024-05-01T10:00:00Z","mergedAt":"2024-05-01T12:00:00Z"},
				{"number":2,"title":"Abandoned","author":{"login":"bob"},"createdAt":"2024-05-01T10:00:00Z","mergedAt":null}
			]}}}}`,
			expected: []domain.PullRequest{
				{Number: 1, Title: "Add feature", Author: "alice", CreatedAt: createdAt, MergedAt: &mergedAt},
				{Number: 2, Title: "Abandoned", Author: "bob", CreatedAt: createdAt},
			},
		},
		{
			name:           "error case",
			responseBody:   `{"errors":[{"message":"Something went wrong"}]}`,
			expectError:    true,
			expectedErrMsg: "failed to execute GraphQL query for pull requests",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			handler := func(w http.ResponseWriter, r *http.Request) {
				req := decodeGraphQLRequest(t, r)
				assert.Contains(t, req.Query, "pullRequests(states: [CLOSED, MERGED]")
				assert.Equal(t, "acme", req.Variables["owner"])
				assert.Equal(t, "widgets", req.Variables["name"])
				assert.EqualValues(t, 50, req.Variables["perPage"])

				w.WriteHeader(http.StatusOK)
				fmt.Fprint(w, tc.responseBody)
			}
			gateway, server := setupTestGraphQLGateway(t, http.HandlerFunc(handler), testOptions)
			defer server.Close()

			prs, err := gateway.FetchClosedPullRequests(context.Background())

			if tc.expectError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tc.expectedErrMsg)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expected, prs)
			}
		})
	}
}

func TestGraphQLGateway_FetchClosedPullRequests_Pagination(t *testing.T) {
	var calls int32
	handler := func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		req := decodeGraphQLRequest(t, r)
		if req.Variables["cursor"] == nil {
			fmt.Fprint(w, `{"data":{"repository":{"pullRequests":{"pageInfo":{"hasNextPage":true,"endCursor":"c1"},"nodes":[
				{"number":1,"title":"first","author":{"login":"alice"},"createdAt":"2024-05-01T10:00:00Z","mergedAt":null}
			]}}}}`)
			return
		}
		assert.Equal(t, "c1", req.Variables["cursor"])
		fmt.Fprint(w, `{"data":{"repository":{"pullRequests":{"pageInfo":{"hasNextPage":false,"endCursor":"c2"},"nodes":[
			{"number":2,"title":"second","author":{"login":"bob"},"createdAt":"2024-05-01T10:00:00Z","mergedAt":null}
		]}}}}`)
	}
	opts := testOptions
	opts.Paginate = true
	gateway, server := setupTestGraphQLGateway(t, http.HandlerFunc(handler), opts)
	defer server.Close()

	prs, err := gateway.FetchClosedPullRequests(context.Background())

	require.NoError(t, err)
	require.Len(t, prs, 2)
	assert.Equal(t, 1, prs[0].Number)
	assert.Equal(t, 2, prs[1].Number)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGraphQLGateway_FetchReviews(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		req := decodeGraphQLRequest(t, r)
		assert.Contains(t, req.Query, "pullRequest(number: $number)")
		assert.EqualValues(t, 10, req.Variables["number"])

		fmt.Fprint(w, `{"data":{"repository":{"pullRequest":{"reviews":{"pageInfo":{"hasNextPage":false,"endCursor":""},"nodes":[
			{"state":"APPROVED","author":{"login":"bob"}},
			{"state":"CHANGES_REQUESTED","author":{"login":"carol"}}
		]}}}}}`)
	}
	gateway, server := setupTestGraphQLGateway(t, http.HandlerFunc(handler), testOptions)
	defer server.Close()

	reviews, err := gateway.FetchReviews(context.Background(), 10)

	require.NoError(t, err)
	assert.Equal(t, []domain.Review{
		{State: domain.ReviewStateApproved, Author: "bob"},
		{State: domain.ReviewStateChangesRequested, Author: "carol"},
	}, reviews)
}

func TestGraphQLGateway_Retry(t *testing.T) {
	testCases := []struct {
		name          string
		statuses      []int
		retries       int
		expectError   bool
		expectedCalls int32
	}{
		{name: "server error then success", statuses: []int{http.StatusInternalServerError, http.StatusOK}, retries: 1, expectedCalls: 2},
		{name: "server errors exhaust the retry", statuses: []int{http.StatusBadGateway, http.StatusBadGateway, http.StatusBadGateway}, retries: 1, expectError: true, expectedCalls: 2},
		{name: "no retry configured", statuses: []int{http.StatusServiceUnavailable, http.StatusOK}, retries: 0, expectError: true, expectedCalls: 1},
		{name: "unauthorized is not retried", statuses: []int{http.StatusUnauthorized, http.StatusOK}, retries: 1, expectError: true, expectedCalls: 1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var calls int32
			handler := func(w http.ResponseWriter, r *http.Request) {
				n := atomic.AddInt32(&calls, 1)
				status := tc.statuses[n-1]
				if status != http.StatusOK {
					w.WriteHeader(status)
					fmt.Fprint(w, `{"message":"unavailable"}`)
					return
				}
				fmt.Fprint(w, `{"data":{"repository":{"pullRequests":{"pageInfo":{"hasNextPage":false,"endCursor":""},"nodes":[
					{"number":1,"title":"One","author":{"login":"alice"},"createdAt":"2024-05-01T10:00:00Z","mergedAt":null}
				]}}}}`)
			}
			opts := testOptions
			opts.Retries = tc.retries
			gateway, server := setupTestGraphQLGateway(t, http.HandlerFunc(handler), opts)
			defer server.Close()

			prs, err := gateway.FetchClosedPullRequests(context.Background())

			if tc.expectError {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Len(t, prs, 1)
			}
			assert.Equal(t, tc.expectedCalls, atomic.LoadInt32(&calls))
		})
	}
}

func TestGraphQLGateway_ServerErrorIsTyped(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}
	opts := testOptions
	opts.Retries = 0
	gateway, server := setupTestGraphQLGateway(t, http.HandlerFunc(handler), opts)
	defer server.Close()

	_, err := gateway.FetchReviews(context.Background(), 7)

	var serverErr *ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, http.StatusBadGateway, serverErr.StatusCode)
}
