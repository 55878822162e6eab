// Package config loads repolens settings from repolens.toml, the environment
// and command-line flags, in that order of precedence (lowest first).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/repolens/repolens/internal/adapter"
	"github.com/repolens/repolens/internal/github"
	"github.com/repolens/repolens/internal/tokens"
)

// DefaultPath is the config file picked up from the working directory.
const DefaultPath = "repolens.toml"

// Config is the full process configuration.
type Config struct {
	GitHub    GitHubConfig    `toml:"github"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Crawl     CrawlConfig     `toml:"crawl"`
	Log       LogConfig       `toml:"log"`
}

type GitHubConfig struct {
	Token          string        `toml:"token"`
	GraphQLURL     string        `toml:"graphql_url"`
	APIURL         string        `toml:"api_url"`
	Branch         string        `toml:"branch"`
	PageDelay      time.Duration `toml:"page_delay"`
	LookupDelay    time.Duration `toml:"lookup_delay"`
	RequestTimeout time.Duration `toml:"request_timeout"`
	// RESTRate is the steady request rate for diff downloads, per second.
	RESTRate float64 `toml:"rest_rate"`
}

type EmbeddingConfig struct {
	Provider      string `toml:"provider"`
	Model         string `toml:"model"`
	APIKey        string `toml:"api_key"`
	BaseURL       string `toml:"base_url"`
	MaxTokens     int    `toml:"max_tokens"`
	BatchSize     int    `toml:"batch_size"`
	IncludePRDiff bool   `toml:"include_pr_diff"`
}

type CrawlConfig struct {
	Owner    string `toml:"owner"`
	Repo     string `toml:"repo"`
	Entity   string `toml:"entity"`
	FromYear int    `toml:"from_year"`
	ToYear   int    `toml:"to_year"`
	OutDir   string `toml:"out_dir"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		GitHub: GitHubConfig{
			GraphQLURL:  github.DefaultGraphQLURL,
			Branch:      github.DefaultBranch,
			PageDelay:   github.DefaultPageDelay,
			LookupDelay: github.DefaultLookupDelay,
			RESTRate:    github.DefaultRESTRate,
		},
		Embedding: EmbeddingConfig{
			Provider:  adapter.ProviderOpenAI,
			Model:     tokens.DefaultModel,
			MaxTokens: tokens.DefaultMaxTokens,
			BatchSize: 16,
		},
		Crawl: CrawlConfig{
			Entity: string(github.EntityIssues),
			OutDir: "data",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds the effective config. An explicit path must exist; with an
// empty path DefaultPath is read when present. Environment overrides follow.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultPath); err == nil {
			path = DefaultPath
		}
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment variables read via lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set("GITHUB_TOKEN", &c.GitHub.Token)
	set("OPENAI_API_KEY", &c.Embedding.APIKey)
	set("REPOLENS_OWNER", &c.Crawl.Owner)
	set("REPOLENS_REPO", &c.Crawl.Repo)
	set("REPOLENS_ENTITY", &c.Crawl.Entity)
	set("REPOLENS_BRANCH", &c.GitHub.Branch)
	set("REPOLENS_OUT", &c.Crawl.OutDir)
	set("REPOLENS_LOG_LEVEL", &c.Log.Level)

	if v, ok := lookup("REPOLENS_YEARS"); ok && v != "" {
		from, to, err := ParseYearRange(v)
		if err != nil {
			return fmt.Errorf("config: REPOLENS_YEARS: %w", err)
		}
		c.Crawl.FromYear, c.Crawl.ToYear = from, to
	}
	return nil
}

// ParseYearRange accepts "2021" or "2019-2023".
func ParseYearRange(s string) (from, to int, err error) {
	s = strings.TrimSpace(s)
	lo, hi, isRange := strings.Cut(s, "-")
	from, err = strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid year range %q", s)
	}
	to = from
	if isRange {
		to, err = strconv.Atoi(strings.TrimSpace(hi))
		if err != nil {
			return 0, 0, fmt.Errorf("invalid year range %q", s)
		}
	}
	if to < from {
		return 0, 0, fmt.Errorf("invalid year range %q: end before start", s)
	}
	return from, to, nil
}

// Years returns the configured crawl years in order.
func (c Config) Years() []int {
	return github.Years(c.Crawl.FromYear, c.Crawl.ToYear)
}

// Repo returns the configured repository.
func (c Config) Repo() github.Repo {
	return github.Repo{Owner: c.Crawl.Owner, Name: c.Crawl.Repo}
}

// Validate checks settings every command relies on.
func (c Config) Validate() error {
	var errs []error
	if c.Crawl.Entity != "" {
		if _, err := github.ParseEntity(c.Crawl.Entity); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Crawl.FromYear != 0 || c.Crawl.ToYear != 0 {
		if c.Crawl.ToYear < c.Crawl.FromYear {
			errs = append(errs, fmt.Errorf("year range %d-%d is inverted", c.Crawl.FromYear, c.Crawl.ToYear))
		}
	}
	if c.Embedding.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("embedding.max_tokens must not be negative, got %d", c.Embedding.MaxTokens))
	}
	if c.GitHub.PageDelay < 0 || c.GitHub.LookupDelay < 0 {
		errs = append(errs, errors.New("github delays must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// ValidateRepo additionally requires a repository and a GitHub token.
func (c Config) ValidateRepo() error {
	var errs []error
	if err := c.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Crawl.Owner == "" || c.Crawl.Repo == "" {
		errs = append(errs, errors.New("config: repository owner and name are required (--repo owner/name or REPOLENS_OWNER/REPOLENS_REPO)"))
	}
	if c.GitHub.Token == "" {
		errs = append(errs, errors.New("config: GITHUB_TOKEN is required"))
	}
	return errors.Join(errs...)
}

// ValidateCrawl additionally requires an entity and a year range.
func (c Config) ValidateCrawl() error {
	var errs []error
	if err := c.ValidateRepo(); err != nil {
		errs = append(errs, err)
	}
	if c.Crawl.Entity == "" {
		errs = append(errs, errors.New("config: entity is required (issues, prs or commit)"))
	}
	if c.Crawl.FromYear == 0 || c.Crawl.ToYear == 0 {
		errs = append(errs, errors.New("config: year range is required (--years or REPOLENS_YEARS)"))
	}
	return errors.Join(errs...)
}

// Save writes cfg as TOML to path, creating parent directories.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: mkdir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("config: create %s: %w", path, err)
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
