// Package config resolves kwgraph settings from a YAML file, KWGRAPH_*
// environment variables and command-line flags, in that order of
// precedence, and records where each value came from.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

// Storage backends.
const (
	BackendSQLite = "sqlite"
	BackendNATS   = "nats"
	BackendMemory = "memory"
)

// Built-in defaults.
const (
	DefaultBackend   = BackendSQLite
	DefaultNamespace = "kwgraph"
	DefaultNATSURL   = "nats://127.0.0.1:4222"
	DefaultBucket    = "KWGRAPH"
	DefaultHTTPPort  = 8090
	DefaultWidth     = 960
	DefaultHeight    = 640
	DefaultPoll      = time.Second
	DefaultLogLevel  = "info"
)

type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

// Int parses the value, returning fallback when it is empty or malformed.
func (v ResolvedValue) Int(fallback int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(v.Value)); err == nil {
		return n
	}
	return fallback
}

// Float parses the value, returning fallback when it is empty or malformed.
func (v ResolvedValue) Float(fallback float64) float64 {
	if f, err := strconv.ParseFloat(strings.TrimSpace(v.Value), 64); err == nil {
		return f
	}
	return fallback
}

// Duration parses the value as a Go duration, returning fallback when it is
// empty or malformed.
func (v ResolvedValue) Duration(fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(strings.TrimSpace(v.Value)); err == nil {
		return d
	}
	return fallback
}

type ResolveOptions struct {
	ConfigPath   string
	CLIDBPath    string
	CLIBackend   string
	CLINATSURL   string
	CLINamespace string
	CLIHost      string
	CLIPort      string
	CLILogLevel  string
}

type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	DBPath       ResolvedValue `json:"db_path"`
	Backend      ResolvedValue `json:"backend"`
	Namespace    ResolvedValue `json:"namespace"`
	PollInterval ResolvedValue `json:"poll_interval"`

	NATSURL    ResolvedValue `json:"nats_url"`
	NATSBucket ResolvedValue `json:"nats_bucket"`

	HTTPHost ResolvedValue `json:"http_host"`
	HTTPPort ResolvedValue `json:"http_port"`

	ViewportWidth  ResolvedValue `json:"viewport_width"`
	ViewportHeight ResolvedValue `json:"viewport_height"`

	LinkDistance ResolvedValue `json:"link_distance"`
	Charge       ResolvedValue `json:"charge"`

	LogLevel ResolvedValue `json:"log_level"`
}

type fileConfig struct {
	DBPath       string `yaml:"db_path"`
	Backend      string `yaml:"backend"`
	Namespace    string `yaml:"namespace"`
	PollInterval string `yaml:"poll_interval"`
	LogLevel     string `yaml:"log_level"`
	NATS         struct {
		URL    string `yaml:"url"`
		Bucket string `yaml:"bucket"`
	} `yaml:"nats"`
	HTTP struct {
		Host string `yaml:"host"`
		Port string `yaml:"port"`
	} `yaml:"http"`
	Viewport struct {
		Width  string `yaml:"width"`
		Height string `yaml:"height"`
	} `yaml:"viewport"`
	Layout struct {
		LinkDistance string `yaml:"link_distance"`
		Charge       string `yaml:"charge"`
	} `yaml:"layout"`
}

func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".kwgraph", "config.yaml")
}

func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	out := ResolvedConfig{ConfigPath: path}
	applyDefaults(&out)

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}

	if cfg != nil {
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		apply(&out.Backend, cfg.Backend, SourceConfig, path)
		apply(&out.Namespace, cfg.Namespace, SourceConfig, path)
		apply(&out.PollInterval, cfg.PollInterval, SourceConfig, path)
		apply(&out.LogLevel, cfg.LogLevel, SourceConfig, path)
		apply(&out.NATSURL, cfg.NATS.URL, SourceConfig, path)
		apply(&out.NATSBucket, cfg.NATS.Bucket, SourceConfig, path)
		apply(&out.HTTPHost, cfg.HTTP.Host, SourceConfig, path)
		apply(&out.HTTPPort, cfg.HTTP.Port, SourceConfig, path)
		apply(&out.ViewportWidth, cfg.Viewport.Width, SourceConfig, path)
		apply(&out.ViewportHeight, cfg.Viewport.Height, SourceConfig, path)
		apply(&out.LinkDistance, cfg.Layout.LinkDistance, SourceConfig, path)
		apply(&out.Charge, cfg.Layout.Charge, SourceConfig, path)
	}

	applyEnv(&out.DBPath, "KWGRAPH_DB")
	applyEnv(&out.DBPath, "KWGRAPH_DB_PATH")
	applyEnv(&out.Backend, "KWGRAPH_BACKEND")
	applyEnv(&out.Namespace, "KWGRAPH_NAMESPACE")
	applyEnv(&out.PollInterval, "KWGRAPH_POLL_INTERVAL")
	applyEnv(&out.LogLevel, "KWGRAPH_LOG_LEVEL")
	applyEnv(&out.NATSURL, "NATS_URL")
	applyEnv(&out.NATSURL, "KWGRAPH_NATS_URL")
	applyEnv(&out.NATSBucket, "KWGRAPH_NATS_BUCKET")
	applyEnv(&out.HTTPHost, "KWGRAPH_HTTP_HOST")
	applyEnv(&out.HTTPPort, "KWGRAPH_HTTP_PORT")
	applyEnv(&out.ViewportWidth, "KWGRAPH_VIEWPORT_WIDTH")
	applyEnv(&out.ViewportHeight, "KWGRAPH_VIEWPORT_HEIGHT")
	applyEnv(&out.LinkDistance, "KWGRAPH_LINK_DISTANCE")
	applyEnv(&out.Charge, "KWGRAPH_CHARGE")

	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")
	apply(&out.Backend, opts.CLIBackend, SourceCLI, "--backend")
	apply(&out.NATSURL, opts.CLINATSURL, SourceCLI, "--nats-url")
	apply(&out.Namespace, opts.CLINamespace, SourceCLI, "--namespace")
	apply(&out.HTTPHost, opts.CLIHost, SourceCLI, "--host")
	apply(&out.HTTPPort, opts.CLIPort, SourceCLI, "--port")
	apply(&out.LogLevel, opts.CLILogLevel, SourceCLI, "--log-level")

	if out.DBPath.Value != "" {
		out.DBPath.Value = expandUserPath(out.DBPath.Value)
	}
	out.Backend.Value = strings.ToLower(out.Backend.Value)

	return out, out.Validate()
}

func applyDefaults(out *ResolvedConfig) {
	def := func(dst *ResolvedValue, v string) {
		*dst = ResolvedValue{Value: v, Source: SourceDefault, From: "built-in default"}
	}
	def(&out.DBPath, "~/.kwgraph/kwgraph.db")
	def(&out.Backend, DefaultBackend)
	def(&out.Namespace, DefaultNamespace)
	def(&out.PollInterval, DefaultPoll.String())
	def(&out.LogLevel, DefaultLogLevel)
	def(&out.NATSURL, DefaultNATSURL)
	def(&out.NATSBucket, DefaultBucket)
	def(&out.HTTPPort, strconv.Itoa(DefaultHTTPPort))
	def(&out.ViewportWidth, strconv.Itoa(DefaultWidth))
	def(&out.ViewportHeight, strconv.Itoa(DefaultHeight))
}

// Validate rejects values that would fail later in a less obvious way.
func (r ResolvedConfig) Validate() error {
	switch r.Backend.Value {
	case BackendSQLite, BackendNATS, BackendMemory:
	default:
		return fmt.Errorf("unknown backend %q (from %s %s): want sqlite, nats or memory", r.Backend.Value, r.Backend.Source, r.Backend.From)
	}
	if p := r.HTTPPort.Int(-1); p < 0 || p > 65535 {
		return fmt.Errorf("invalid http port %q (from %s %s)", r.HTTPPort.Value, r.HTTPPort.Source, r.HTTPPort.From)
	}
	if _, err := ParseLogLevel(r.LogLevel.Value); err != nil {
		return err
	}
	return nil
}

// ParseLogLevel maps a level name onto slog.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyEnv(dst *ResolvedValue, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: envKey}
	}
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
