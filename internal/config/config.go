package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Repository RepositoryConfig `yaml:"repository"`
	Releases   ReleasesConfig   `yaml:"releases"`
	Builder    BuilderConfig    `yaml:"builder"`
	Output     OutputConfig     `yaml:"output"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    *MetricsConfig   `yaml:"metrics,omitempty"`
	Events     *EventsConfig    `yaml:"events,omitempty"`
	History    *HistoryConfig   `yaml:"history,omitempty"`
	Daemon     *DaemonConfig    `yaml:"daemon,omitempty"`
	Harness    *HarnessConfig   `yaml:"harness,omitempty"`
}

// RepositoryConfig identifies the repository whose documentation is versioned.
type RepositoryConfig struct {
	Owner         string `yaml:"owner"`
	Name          string `yaml:"name"`
	Path          string `yaml:"path"` // local clone the versions are materialized from
	DefaultBranch string `yaml:"default_branch,omitempty"`
	Token         string `yaml:"token,omitempty"` // GitHub API token, usually ${GITHUB_TOKEN}
}

// FullName returns "owner/name".
func (r RepositoryConfig) FullName() string { return r.Owner + "/" + r.Name }

// ReleasesConfig controls how many releases are considered and which one
// counts as "latest".
type ReleasesConfig struct {
	Count  int           `yaml:"count,omitempty"`
	Policy ReleasePolicy `yaml:"policy,omitempty"`
}

// BuilderConfig describes the external per-version documentation generator.
type BuilderConfig struct {
	Command      string   `yaml:"command,omitempty"` // executable, e.g. "bash"
	Args         []string `yaml:"args,omitempty"`    // e.g. ["makedoc.sh"]
	DocsDir      string   `yaml:"docs_dir,omitempty"`
	BuildDir     string   `yaml:"build_dir,omitempty"`     // generator output, relative to docs_dir
	WorkspaceDir string   `yaml:"workspace_dir,omitempty"` // persistent checkout workspace; a temp dir per run when empty
}

// OutputConfig represents output configuration.
type OutputConfig struct {
	Directory string `yaml:"directory"`
	Clean     *bool  `yaml:"clean,omitempty"`       // Clean output directory before build; defaults to true
	APIDocDir string `yaml:"api_doc_dir,omitempty"` // generated API doc dir removed before rebuild
}

// CleanEnabled reports whether the output directory is removed before a build.
// Unset means true: a fresh tree per run is the default contract.
func (o OutputConfig) CleanEnabled() bool {
	return o.Clean == nil || *o.Clean
}

// LoggingConfig controls slog setup.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level,omitempty"`
	Format LogFormat `yaml:"format,omitempty"`
}

// MetricsConfig enables the Prometheus recorder and, in daemon mode, the
// /metrics listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen,omitempty"`
}

// EventsConfig enables publishing build lifecycle events to NATS JetStream.
type EventsConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
	Stream  string `yaml:"stream,omitempty"`
}

// HistoryConfig enables the SQLite build history store.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}

// DaemonConfig controls periodic rebuilds.
type DaemonConfig struct {
	Interval    time.Duration `yaml:"interval,omitempty"`
	Development bool          `yaml:"development,omitempty"`
}

// HarnessConfig describes the two-instance distributed test harness.
type HarnessConfig struct {
	Token       string   `yaml:"token,omitempty"` // hcloud API token, usually ${HCLOUD_TOKEN}
	ServerType  string   `yaml:"server_type,omitempty"`
	Image       string   `yaml:"image,omitempty"`
	Location    string   `yaml:"location,omitempty"`
	Port        int      `yaml:"port,omitempty"`
	VolumeSize  int      `yaml:"volume_size_gb,omitempty"`
	SetupScript string   `yaml:"setup_script,omitempty"`
	SSHKeys     []string `yaml:"ssh_keys,omitempty"`
}

// Load loads configuration from the specified file.
func Load(configPath string) (*Config, error) {
	// Load .env if present; missing files are fine.
	_ = godotenv.Load()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Repository.DefaultBranch == "" {
		c.Repository.DefaultBranch = "master"
	}
	if c.Releases.Count <= 0 {
		c.Releases.Count = 3
	}
	c.Releases.Policy = NormalizeReleasePolicy(string(c.Releases.Policy))
	if c.Builder.Command == "" {
		c.Builder.Command = "bash"
		c.Builder.Args = []string{"makedoc.sh"}
	}
	if c.Builder.DocsDir == "" {
		c.Builder.DocsDir = "docs"
	}
	if c.Builder.BuildDir == "" {
		c.Builder.BuildDir = "_build/dirhtml"
	}
	if c.Output.Directory == "" {
		c.Output.Directory = "./site"
	}
	if c.Output.Clean == nil {
		clean := true
		c.Output.Clean = &clean
	}
	c.Logging.Level = NormalizeLogLevel(string(c.Logging.Level))
	c.Logging.Format = NormalizeLogFormat(string(c.Logging.Format))
	if c.Metrics != nil && c.Metrics.Listen == "" {
		c.Metrics.Listen = ":9090"
	}
	if c.Events != nil {
		if c.Events.URL == "" {
			c.Events.URL = "nats://127.0.0.1:4222"
		}
		if c.Events.Subject == "" {
			c.Events.Subject = "docver.builds"
		}
		if c.Events.Stream == "" {
			c.Events.Stream = "DOCVER"
		}
	}
	if c.History != nil && c.History.Path == "" {
		c.History.Path = "docver.db"
	}
	if c.Daemon != nil && c.Daemon.Interval <= 0 {
		c.Daemon.Interval = time.Hour
	}
	if c.Harness != nil {
		if c.Harness.ServerType == "" {
			c.Harness.ServerType = "cx32"
		}
		if c.Harness.Image == "" {
			c.Harness.Image = "ubuntu-22.04"
		}
		if c.Harness.VolumeSize <= 0 {
			c.Harness.VolumeSize = 10
		}
	}
}

// Validate checks the fields every command depends on.
func (c *Config) Validate() error {
	if c.Repository.Owner == "" || c.Repository.Name == "" {
		return fmt.Errorf("repository.owner and repository.name are required")
	}
	return nil
}

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := Config{
		Repository: RepositoryConfig{
			Owner:         "example",
			Name:          "project",
			Path:          "../project",
			DefaultBranch: "master",
			Token:         "${GITHUB_TOKEN}",
		},
		Releases: ReleasesConfig{Count: 3, Policy: PolicyStable},
		Builder: BuilderConfig{
			Command:  "bash",
			Args:     []string{"makedoc.sh"},
			DocsDir:  "docs",
			BuildDir: "_build/dirhtml",
		},
		Output: OutputConfig{Directory: "./site", APIDocDir: "docs/api"},
		Logging: LoggingConfig{
			Level:  LogLevelInfo,
			Format: LogFormatText,
		},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
