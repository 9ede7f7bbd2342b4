package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"
)

// newHTTPClient builds the client shared by the REST and GraphQL gateways.
// Requests wait out GitHub rate limits; a non-empty token is sent as a bearer token.
func newHTTPClient(token string) (*http.Client, error) {
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(1*time.Hour, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}
	if token == "" {
		return &http.Client{Transport: rateLimitWaiter}, nil
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return &http.Client{
		Transport: &oauth2.Transport{
			Base:   rateLimitWaiter,
			Source: ts,
		},
	}, nil
}

// defaultRetryWait is the first back-off interval between attempts.
const defaultRetryWait = 500 * time.Millisecond

// ServerError is returned by the GraphQL transport for 5xx responses,
// which githubv4 would otherwise report as an untyped error.
type ServerError struct {
	StatusCode int
	Status     string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("GitHub server error: %s", e.Status)
}

// serverErrorTransport turns 5xx responses into *ServerError.
type serverErrorTransport struct {
	base http.RoundTripper
}

func (t *serverErrorTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &ServerError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	return resp, nil
}

// withServerErrors returns a copy of client whose 5xx responses surface as *ServerError.
func withServerErrors(client *http.Client) *http.Client {
	wrapped := *client
	wrapped.Transport = &serverErrorTransport{base: client.Transport}
	return &wrapped
}

// caller runs remote calls under a per-attempt timeout and retries transient failures
// with exponential back-off.
type caller struct {
	timeout time.Duration
	retries int
	wait    time.Duration
	logger  *log.Logger
}

func newCaller(opts Options, logger *log.Logger) caller {
	return caller{timeout: opts.Timeout, retries: opts.Retries, wait: defaultRetryWait, logger: logger}
}

// do runs fn at most retries+1 times. Only transient errors are retried,
// and never after the parent context is done.
func (c caller) do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.wait
	b.MaxElapsedTime = 0
	b.Reset()
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.retries)), ctx)

	operation := func() error {
		err := c.attempt(ctx, fn)
		if err != nil && (ctx.Err() != nil || !isTransient(err)) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		c.logger.Printf("  Retrying %s in %s after: %v", name, next, err)
	}
	return backoff.RetryNotify(operation, policy, notify)
}

func (c caller) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	if c.timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return fn(callCtx)
}

// isTransient reports whether err is worth one more attempt:
// timeouts, dropped or refused connections and 5xx responses.
// TLS failures and malformed requests are not retried.
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return true
	}
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) {
		return ghErr.Response != nil && ghErr.Response.StatusCode >= http.StatusInternalServerError
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
