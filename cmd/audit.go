package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/pr-audit/internal/config"
	"github.com/naka-gawa/pr-audit/internal/report"
)

// exitViolations is the exit status of `audit --fail-on-violation` when violations were found.
const exitViolations = 2

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Reports merged pull requests without an approval from someone other than the author",
	Long: `Lists the closed pull requests of the repository, keeps the merged ones, and checks
that each has at least one APPROVED review from a user other than its author.
Violations are printed to standard output.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signalContext()
		defer cancel()

		logger := newLogger(cmd)
		cfg := loadConfig(cmd)

		violations, err := newAuditor(cfg, logger).CheckPRs(ctx)
		if err != nil {
			fail("Failed to check pull requests: %v", err)
		}

		if cfg.Audit.Output == config.OutputJSON {
			err = report.WriteJSON(os.Stdout, cfg.GitHub.FullName(), violations)
		} else {
			err = report.WriteText(os.Stdout, violations)
		}
		if err != nil {
			fail("Failed to write report: %v", err)
		}

		if cfg.Audit.FailOnViolation && len(violations) > 0 {
			fmt.Fprintf(os.Stderr, "%d merged pull request(s) lack external approval.\n", len(violations))
			os.Exit(exitViolations)
		}
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.Flags().String("output", "text", "Output format: text or json (AUDIT_OUTPUT)")
	auditCmd.Flags().Bool("fail-on-violation", false, "Exit with status 2 when violations are found (AUDIT_FAIL_ON_VIOLATION)")
}
