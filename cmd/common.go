package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/pr-audit/internal/config"
	"github.com/naka-gawa/pr-audit/internal/domain"
	"github.com/naka-gawa/pr-audit/internal/gateway"
	"github.com/naka-gawa/pr-audit/internal/usecase"
)

// newLogger returns a logger that discards everything unless --verbose is set.
func newLogger(cmd *cobra.Command) *log.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	logger := log.New(io.Discard, "", log.LstdFlags) // Default: discard all logs.
	if verbose {
		logger.SetOutput(os.Stderr) // If verbose, log to standard error.
	}
	return logger
}

// fail prints a message to stderr and exits with status 1.
func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// signalContext is cancelled on interrupt so in-flight requests stop.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// loadConfig builds the run configuration from the command's flags and the environment.
func loadConfig(cmd *cobra.Command) config.Config {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		fail("Invalid configuration: %v", err)
	}
	if cfg.GitHub.Token == "" {
		fmt.Fprintln(os.Stderr, "Warning: GITHUB_TOKEN is not set; requests are unauthenticated and subject to lower rate limits.")
	}
	return cfg
}

// newFetcher creates the gateway selected by github.api.
func newFetcher(cfg config.Config, logger *log.Logger) (gateway.Fetcher, error) {
	opts := gateway.Options{
		Owner:    cfg.GitHub.Owner,
		Repo:     cfg.GitHub.Repo,
		PerPage:  cfg.GitHub.PerPage,
		Paginate: cfg.GitHub.Paginate,
		Timeout:  cfg.GitHub.Timeout,
		Retries:  cfg.GitHub.Retries,
	}
	if cfg.GitHub.API == config.APIGraphQL {
		return gateway.NewGraphQLGateway(cfg.GitHub.Token, cfg.GitHub.GraphQLURL, opts, logger)
	}
	return gateway.NewGitHubGateway(cfg.GitHub.Token, cfg.GitHub.BaseURL, opts, logger)
}

// newAuditor wires the gateway selected by the configuration into an Auditor.
func newAuditor(cfg config.Config, logger *log.Logger) *usecase.Auditor {
	fetcher, err := newFetcher(cfg, logger)
	if err != nil {
		fail("Failed to create GitHub gateway: %v", err)
	}
	return usecase.NewAuditor(fetcher, logger, cfg.Audit.Concurrency)
}

// runAudit runs a full audit and exits on failure.
func runAudit(ctx context.Context, cfg config.Config, logger *log.Logger) *domain.AuditResult {
	result, err := newAuditor(cfg, logger).Audit(ctx)
	if err != nil {
		fail("Failed to audit pull requests: %v", err)
	}
	return result
}
