// Package config builds the immutable run configuration from a .env file,
// the process environment and command-line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envFile = ".env"

// Supported values for GitHubConfig.API.
const (
	APIREST    = "rest"
	APIGraphQL = "graphql"
)

// Supported values for AuditConfig.Output.
const (
	OutputText = "text"
	OutputJSON = "json"
)

var (
	ErrMissingOwner     = errors.New("github.owner is required (GITHUB_OWNER or --owner)")
	ErrMissingRepo      = errors.New("github.repo is required (GITHUB_REPO or --repo)")
	ErrInvalidPerPage   = errors.New("github.per_page must be between 1 and 100")
	ErrInvalidAPI       = errors.New("github.api must be one of: rest, graphql")
	ErrInvalidRetries   = errors.New("github.retries must not be negative")
	ErrInvalidTimeout   = errors.New("github.timeout must not be negative")
	ErrInvalidOutput    = errors.New("audit.output must be one of: text, json")
	ErrInvalidWorkers   = errors.New("audit.concurrency must be at least 1")
	ErrMissingEramba    = errors.New("eramba.url is required (ERAMBA_URL or --eramba-url)")
	ErrMissingControlID = errors.New("eramba.control_id is required (ERAMBA_CONTROL_ID or --control-id)")
)

// Config holds the whole run configuration. It is built once by Load and passed by value.
type Config struct {
	GitHub GitHubConfig `mapstructure:"github"`
	Audit  AuditConfig  `mapstructure:"audit"`
	Eramba ErambaConfig `mapstructure:"eramba"`
}

// GitHubConfig describes the audited repository and how to reach it.
type GitHubConfig struct {
	Token      string        `mapstructure:"token"`
	Owner      string        `mapstructure:"owner"`
	Repo       string        `mapstructure:"repo"`
	PerPage    int           `mapstructure:"per_page"`
	API        string        `mapstructure:"api"`
	BaseURL    string        `mapstructure:"base_url"`
	GraphQLURL string        `mapstructure:"graphql_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Retries    int           `mapstructure:"retries"`
	Paginate   bool          `mapstructure:"paginate"`
}

// FullName returns owner/repo.
func (g GitHubConfig) FullName() string {
	return g.Owner + "/" + g.Repo
}

// AuditConfig controls how the audit runs and reports.
type AuditConfig struct {
	Concurrency     int    `mapstructure:"concurrency"`
	FailOnViolation bool   `mapstructure:"fail_on_violation"`
	Output          string `mapstructure:"output"`
}

// ErambaConfig points at the GRC tool that receives evidence.
type ErambaConfig struct {
	URL       string `mapstructure:"url"`
	Token     string `mapstructure:"token"`
	ControlID string `mapstructure:"control_id"`
}

// envBindings maps config keys to the environment variables that set them.
var envBindings = map[string]string{
	"github.token":            "GITHUB_TOKEN",
	"github.owner":            "GITHUB_OWNER",
	"github.repo":             "GITHUB_REPO",
	"github.per_page":         "GITHUB_PER_PAGE",
	"github.api":              "GITHUB_API",
	"github.base_url":         "GITHUB_BASE_URL",
	"github.graphql_url":      "GITHUB_GRAPHQL_URL",
	"github.timeout":          "GITHUB_TIMEOUT",
	"github.retries":          "GITHUB_RETRIES",
	"github.paginate":         "GITHUB_PAGINATE",
	"audit.concurrency":       "AUDIT_CONCURRENCY",
	"audit.fail_on_violation": "AUDIT_FAIL_ON_VIOLATION",
	"audit.output":            "AUDIT_OUTPUT",
	"eramba.url":              "ERAMBA_URL",
	"eramba.token":            "ERAMBA_API_TOKEN",
	"eramba.control_id":       "ERAMBA_CONTROL_ID",
}

// flagBindings maps config keys to command-line flag names.
var flagBindings = map[string]string{
	"github.owner":            "owner",
	"github.repo":             "repo",
	"github.per_page":         "per-page",
	"github.api":              "api",
	"github.base_url":         "base-url",
	"github.timeout":          "timeout",
	"github.retries":          "retries",
	"github.paginate":         "paginate",
	"audit.concurrency":       "concurrency",
	"audit.fail_on_violation": "fail-on-violation",
	"audit.output":            "output",
	"eramba.url":              "eramba-url",
	"eramba.control_id":       "control-id",
}

// Load reads .env (if present), the environment and the given flags, in increasing priority.
// Only flags that were set on the command line override the environment.
// flags may be nil.
func Load(flags *pflag.FlagSet) (Config, error) {
	if err := loadEnvFile(envFile); err != nil {
		return Config{}, err
	}

	v := viper.New()
	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", env, err)
		}
	}
	if flags != nil {
		for key, name := range flagBindings {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return Config{}, fmt.Errorf("bind flag --%s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("github.token", "")
	v.SetDefault("github.owner", "")
	v.SetDefault("github.repo", "")
	v.SetDefault("github.per_page", 50)
	v.SetDefault("github.api", APIREST)
	v.SetDefault("github.base_url", "")
	v.SetDefault("github.graphql_url", "")
	v.SetDefault("github.timeout", 30*time.Second)
	v.SetDefault("github.retries", 1)
	v.SetDefault("github.paginate", false)

	v.SetDefault("audit.concurrency", 1)
	v.SetDefault("audit.fail_on_violation", false)
	v.SetDefault("audit.output", OutputText)

	v.SetDefault("eramba.url", "https://eramba.company.com")
	v.SetDefault("eramba.token", "")
	v.SetDefault("eramba.control_id", "CTRL-1234")
}

// loadEnvFile copies variables from path into the environment without overriding existing ones.
func loadEnvFile(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

// Validate checks the settings every command needs.
func (c Config) Validate() error {
	switch {
	case c.GitHub.Owner == "":
		return ErrMissingOwner
	case c.GitHub.Repo == "":
		return ErrMissingRepo
	case c.GitHub.PerPage < 1 || c.GitHub.PerPage > 100:
		return ErrInvalidPerPage
	case c.GitHub.API != APIREST && c.GitHub.API != APIGraphQL:
		return ErrInvalidAPI
	case c.GitHub.Retries < 0:
		return ErrInvalidRetries
	case c.GitHub.Timeout < 0:
		return ErrInvalidTimeout
	case c.Audit.Concurrency < 1:
		return ErrInvalidWorkers
	case c.Audit.Output != OutputText && c.Audit.Output != OutputJSON:
		return ErrInvalidOutput
	}
	return nil
}

// ValidateEramba checks the settings the evidence upload needs on top of Validate.
func (c Config) ValidateEramba() error {
	if c.Eramba.URL == "" {
		return ErrMissingEramba
	}
	if c.Eramba.ControlID == "" {
		return ErrMissingControlID
	}
	return nil
}
