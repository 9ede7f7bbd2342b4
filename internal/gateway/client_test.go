package gateway

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"syscall"
	"testing"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTransient(t *testing.T) {
	responseError := func(status int) error {
		return &github.ErrorResponse{Response: &http.Response{StatusCode: status, Request: &http.Request{}}}
	}

	testCases := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "deadline exceeded", err: context.DeadlineExceeded, expected: true},
		{name: "wrapped deadline", err: fmt.Errorf("call: %w", context.DeadlineExceeded), expected: true},
		{name: "server error", err: responseError(http.StatusServiceUnavailable), expected: true},
		{name: "client error", err: responseError(http.StatusNotFound), expected: false},
		{name: "graphql server error", err: &url.Error{Op: "Post", URL: "https://api.github.com/graphql", Err: &ServerError{StatusCode: http.StatusBadGateway, Status: "502 Bad Gateway"}}, expected: true},
		{name: "connection reset", err: &url.Error{Op: "Get", URL: "https://api.github.com", Err: &net.OpError{Op: "read", Net: "tcp", Err: syscall.ECONNRESET}}, expected: true},
		{name: "unexpected eof", err: &url.Error{Op: "Get", URL: "https://api.github.com", Err: io.ErrUnexpectedEOF}, expected: true},
		{name: "dial timeout", err: &url.Error{Op: "Get", URL: "https://api.github.com", Err: timeoutError{}}, expected: true},
		{name: "certificate rejected", err: &url.Error{Op: "Get", URL: "https://api.github.com", Err: &tls.CertificateVerificationError{Err: x509.UnknownAuthorityError{}}}, expected: false},
		{name: "malformed url", err: &url.Error{Op: "parse", URL: "://bad", Err: errors.New("missing protocol scheme")}, expected: false},
		{name: "canceled", err: context.Canceled, expected: false},
		{name: "plain error", err: errors.New("boom"), expected: false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, isTransient(tc.err))
		})
	}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestServerErrorTransport(t *testing.T) {
	testCases := []struct {
		name        string
		status      int
		expectError bool
	}{
		{name: "ok passes through", status: http.StatusOK},
		{name: "client error passes through", status: http.StatusNotFound},
		{name: "server error becomes typed", status: http.StatusServiceUnavailable, expectError: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer server.Close()

			resp, err := withServerErrors(server.Client()).Get(server.URL)

			if tc.expectError {
				var serverErr *ServerError
				require.ErrorAs(t, err, &serverErr)
				assert.Equal(t, tc.status, serverErr.StatusCode)
				assert.True(t, isTransient(err))
				return
			}
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestCaller_StopsWhenParentCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := caller{retries: 3, wait: time.Millisecond, logger: log.New(io.Discard, "", 0)}
	calls := 0

	err := c.do(ctx, "canceled call", func(ctx context.Context) error {
		calls++
		cancel()
		return context.DeadlineExceeded
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestNewGateways(t *testing.T) {
	opts := Options{Owner: "acme", Repo: "widgets", PerPage: 50}
	logger := log.New(io.Discard, "", 0)

	rest, err := NewGitHubGateway("token", "", opts, logger)
	assert.NoError(t, err)
	assert.IsType(t, &GitHubGateway{}, rest)

	enterprise, err := NewGitHubGateway("", "https://github.example.com/api/v3/", opts, logger)
	assert.NoError(t, err)
	assert.Equal(t, "https://github.example.com/api/v3/", enterprise.(*GitHubGateway).restClient.BaseURL.String())

	gql, err := NewGraphQLGateway("token", "https://github.example.com/api/graphql", opts, logger)
	assert.NoError(t, err)
	assert.IsType(t, &GraphQLGateway{}, gql)
}
