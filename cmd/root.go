// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pr-audit",
	Short: "A CLI tool to audit merged pull requests for external approval.",
	Long: `pr-audit checks the recently closed pull requests of a GitHub repository
and reports every merged one that was not approved by someone other than its author.
Settings come from flags, environment variables (GITHUB_TOKEN, GITHUB_OWNER,
GITHUB_REPO, GITHUB_PER_PAGE, ...) or a .env file in the working directory.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// Add a persistent flag for verbose output, available to all commands.
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging")

	flags := rootCmd.PersistentFlags()
	flags.StringP("owner", "o", "", "Repository owner (GITHUB_OWNER)")
	flags.StringP("repo", "r", "", "Repository name (GITHUB_REPO)")
	flags.Int("per-page", 50, "Number of closed pull requests to request per page, 1-100 (GITHUB_PER_PAGE)")
	flags.String("api", "rest", "GitHub API to use: rest or graphql (GITHUB_API)")
	flags.String("base-url", "", "GitHub Enterprise Server REST API URL (GITHUB_BASE_URL)")
	flags.Duration("timeout", 30*time.Second, "Timeout for each GitHub request, 0 to disable (GITHUB_TIMEOUT)")
	flags.Int("retries", 1, "Extra attempts after a transient GitHub failure (GITHUB_RETRIES)")
	flags.Bool("paginate", false, "Read every page of pull requests and reviews instead of the first only (GITHUB_PAGINATE)")
	flags.Int("concurrency", 1, "Number of pull requests whose reviews are fetched at once (AUDIT_CONCURRENCY)")
}
