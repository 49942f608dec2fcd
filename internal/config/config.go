// Package config loads snipvault settings from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dshills/snipvault/internal/assistant"
	"github.com/dshills/snipvault/internal/embedder"
)

const (
	// ConfigDir is the directory name under XDG_CONFIG_HOME.
	ConfigDir = "snipvault"
	// ConfigFile is the config file name.
	ConfigFile = "config.yml"
	// EnvConfigPath overrides the config file location.
	EnvConfigPath = "SNIPVAULT_CONFIG"
)

// Database drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the complete runtime configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Completion CompletionConfig `yaml:"completion"`
	Search     SearchConfig     `yaml:"search"`
	Log        LogConfig        `yaml:"log"`
	MCP        MCPConfig        `yaml:"mcp"`
	Keys       APIKeys          `yaml:"api_keys"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	AllowedOrigins  []string      `yaml:"allowed_origins,omitempty"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path,omitempty"` // sqlite
	DSN    string `yaml:"dsn,omitempty"`  // postgres
}

type EmbeddingConfig struct {
	Provider    string        `yaml:"provider,omitempty"` // empty auto-detects
	Model       string        `yaml:"model,omitempty"`
	BaseURL     string        `yaml:"base_url,omitempty"`
	Timeout     time.Duration `yaml:"timeout"`
	RateLimit   float64       `yaml:"rate_limit"`
	Burst       int           `yaml:"burst"`
	MaxAttempts int           `yaml:"max_attempts"`
}

type CompletionConfig struct {
	Provider  string `yaml:"provider,omitempty"` // empty auto-detects
	Model     string `yaml:"model,omitempty"`
	CacheSize int    `yaml:"cache_size"`
}

type SearchConfig struct {
	Workers int `yaml:"workers,omitempty"` // 0 uses NumCPU
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// MCPConfig holds the identity the stdio server acts as.
type MCPConfig struct {
	UserID string `yaml:"user_id"`
}

// APIKeys are usually supplied through the environment rather than the file.
type APIKeys struct {
	OpenAI    string `yaml:"openai,omitempty"`
	Jina      string `yaml:"jina,omitempty"`
	Gemini    string `yaml:"gemini,omitempty"`
	Anthropic string `yaml:"anthropic,omitempty"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":5000",
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			Path:   filepath.Join("~", ".snipvault", "snipvault.db"),
		},
		Embedding: EmbeddingConfig{
			Timeout:     15 * time.Second,
			RateLimit:   10,
			Burst:       5,
			MaxAttempts: 1,
		},
		Completion: CompletionConfig{
			CacheSize: assistant.DefaultCacheSize,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		MCP: MCPConfig{
			UserID: "local",
		},
	}
}

// Path returns the config file location. An explicit path wins, then
// $SNIPVAULT_CONFIG, then $XDG_CONFIG_HOME/snipvault/config.yml.
func Path(explicit string) string {
	if explicit != "" {
		return ExpandTilde(explicit)
	}
	if p := os.Getenv(EnvConfigPath); p != "" {
		return ExpandTilde(p)
	}
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, ConfigDir, ConfigFile)
}

// Load reads the config file, applies environment overrides and validates
// the result. A missing file is not an error.
func Load(explicit string) (*Config, error) {
	cfg := Default()

	if path := Path(explicit); path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist) && explicit == "":
		default:
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.Database.Path = ExpandTilde(cfg.Database.Path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("SNIPVAULT_DB_DRIVER", &c.Database.Driver)
	str("SNIPVAULT_DB_PATH", &c.Database.Path)
	if v, ok := lookup("DATABASE_URL"); ok && v != "" {
		c.Database.DSN = v
		if _, set := lookup("SNIPVAULT_DB_DRIVER"); !set {
			c.Database.Driver = DriverPostgres
		}
	}

	if v, ok := lookup("PORT"); ok && v != "" {
		if _, err := strconv.Atoi(v); err != nil {
			return fmt.Errorf("invalid PORT %q", v)
		}
		c.Server.Addr = ":" + v
	}
	if v, ok := lookup("ALLOWED_ORIGINS"); ok && v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}

	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("SNIPVAULT_EMBEDDING_PROVIDER", &c.Embedding.Provider)
	str("SNIPVAULT_COMPLETION_PROVIDER", &c.Completion.Provider)
	str("SNIPVAULT_MCP_USER", &c.MCP.UserID)

	str("OPENAI_API_KEY", &c.Keys.OpenAI)
	str("JINA_API_KEY", &c.Keys.Jina)
	str("GEMINI_API_KEY", &c.Keys.Gemini)
	str("ANTHROPIC_API_KEY", &c.Keys.Anthropic)
	return nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	_, port, err := net.SplitHostPort(c.Server.Addr)
	if err != nil {
		return fmt.Errorf("invalid server addr %q: %w", c.Server.Addr, err)
	}
	if n, err := strconv.Atoi(port); err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("invalid port %q: must be 1-65535", port)
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("database path is required for sqlite")
		}
	case DriverPostgres:
		if !strings.HasPrefix(c.Database.DSN, "postgres://") && !strings.HasPrefix(c.Database.DSN, "postgresql://") {
			return errors.New("database dsn must start with postgres:// or postgresql://")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	switch strings.ToLower(c.Embedding.Provider) {
	case "", embedder.ProviderJina, embedder.ProviderOpenAI, embedder.ProviderGemini, embedder.ProviderLocal:
	default:
		return fmt.Errorf("unsupported embedding provider %q", c.Embedding.Provider)
	}
	if c.Embedding.Timeout <= 0 {
		return errors.New("embedding timeout must be positive")
	}
	if c.Embedding.RateLimit < 0 || c.Embedding.Burst < 0 || c.Embedding.MaxAttempts < 0 {
		return errors.New("embedding rate_limit, burst and max_attempts must not be negative")
	}

	switch strings.ToLower(c.Completion.Provider) {
	case "", assistant.ProviderOpenAI, assistant.ProviderAnthropic, assistant.ProviderGemini, assistant.ProviderNone:
	default:
		return fmt.Errorf("unsupported completion provider %q", c.Completion.Provider)
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported log format %q", c.Log.Format)
	}

	if strings.TrimSpace(c.MCP.UserID) == "" {
		return errors.New("mcp user_id must not be empty")
	}
	return nil
}

// EmbedderConfig converts the embedding section for embedder.New.
func (c *Config) EmbedderConfig() embedder.Config {
	return embedder.Config{
		Provider:    c.Embedding.Provider,
		Model:       c.Embedding.Model,
		BaseURL:     c.Embedding.BaseURL,
		OpenAIKey:   c.Keys.OpenAI,
		JinaKey:     c.Keys.Jina,
		GeminiKey:   c.Keys.Gemini,
		Timeout:     c.Embedding.Timeout,
		RateLimit:   c.Embedding.RateLimit,
		Burst:       c.Embedding.Burst,
		MaxAttempts: c.Embedding.MaxAttempts,
	}
}

// CompleterConfig converts the completion section for assistant.NewCompleter.
func (c *Config) CompleterConfig() assistant.CompleterConfig {
	return assistant.CompleterConfig{
		Provider:     c.Completion.Provider,
		Model:        c.Completion.Model,
		OpenAIKey:    c.Keys.OpenAI,
		AnthropicKey: c.Keys.Anthropic,
		GeminiKey:    c.Keys.Gemini,
	}
}

// NewLogger builds the process logger. Callers pass stderr; stdout belongs
// to the MCP transport.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// ExpandTilde replaces a leading ~ with the user's home directory.
func ExpandTilde(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
