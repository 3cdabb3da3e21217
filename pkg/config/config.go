package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	// DirName is the per-user configuration directory under $HOME.
	DirName = ".doc-reformatter"
	// EnvPrefix prefixes environment overrides, e.g. DOCREFORMAT_MODEL.
	EnvPrefix = "DOCREFORMAT"

	DefaultAPIURL      = "https://api.openai.com/v1"
	DefaultModel       = "gpt-4o"
	DefaultMaxTokens   = 3000
	DefaultTemperature = 0.7
	DefaultTimeout     = 30 * time.Second
	DefaultChunkSize   = 1000
	DefaultWorkers     = 6
	DefaultAttempts    = 3
	DefaultBaseDelay   = time.Second
	DefaultLogMode     = "dev"
	DefaultServerAddr  = ":8080"
)

// Config represents the application configuration.
type Config struct {
	APIKey       string        `mapstructure:"api_key"`
	APIURL       string        `mapstructure:"api_url"`
	Model        string        `mapstructure:"model"`
	MaxTokens    int64         `mapstructure:"max_tokens"`
	Temperature  float64       `mapstructure:"temperature"`
	Timeout      time.Duration `mapstructure:"timeout"`
	ChunkSize    int           `mapstructure:"chunk_size"`
	Workers      int           `mapstructure:"workers"`
	Retry        RetryConfig   `mapstructure:"retry"`
	DatabasePath string        `mapstructure:"database_path"`
	RedisAddr    string        `mapstructure:"redis_addr"`
	LogMode      string        `mapstructure:"log_mode"`
	Defaults     DefaultConfig `mapstructure:"defaults"`
	Server       ServerConfig  `mapstructure:"server"`
}

// RetryConfig holds the retry policy for model calls.
type RetryConfig struct {
	Attempts  uint          `mapstructure:"attempts"`
	BaseDelay time.Duration `mapstructure:"base_delay"`
}

// DefaultConfig holds default values for commands.
type DefaultConfig struct {
	OutputDir string `mapstructure:"output_dir"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// DefaultPath returns $HOME/.doc-reformatter/config.json.
func DefaultPath() (path string, err error) {
	var homeDir string
	homeDir, err = os.UserHomeDir()
	if err != nil {
		err = errors.Wrap(err, "failed to get user home directory")
		return path, err
	}
	path = filepath.Join(homeDir, DirName, "config.json")
	return path, err
}

func newViper() (v *viper.Viper) {
	v = viper.New()
	v.SetDefault("api_key", "")
	v.SetDefault("api_url", DefaultAPIURL)
	v.SetDefault("model", DefaultModel)
	v.SetDefault("max_tokens", DefaultMaxTokens)
	v.SetDefault("temperature", DefaultTemperature)
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("chunk_size", DefaultChunkSize)
	v.SetDefault("workers", DefaultWorkers)
	v.SetDefault("retry.attempts", DefaultAttempts)
	v.SetDefault("retry.base_delay", DefaultBaseDelay)
	v.SetDefault("database_path", "")
	v.SetDefault("redis_addr", "")
	v.SetDefault("log_mode", DefaultLogMode)
	v.SetDefault("defaults.output_dir", ".")
	v.SetDefault("server.addr", DefaultServerAddr)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The provider credential and endpoint also answer to their bare names.
	_ = v.BindEnv("api_key", EnvPrefix+"_API_KEY", "API_KEY")
	_ = v.BindEnv("api_url", EnvPrefix+"_API_URL", "AI_API_URL")
	return v
}

// Load reads configuration from file with environment variable overrides. An empty
// path reads the default location, which may be absent when the environment carries
// the configuration.
func Load(configPath string) (cfg Config, err error) {
	path := configPath
	if path == "" {
		path, err = DefaultPath()
		if err != nil {
			return cfg, err
		}
	}

	v := newViper()
	v.SetConfigFile(path)

	_, statErr := os.Stat(path)
	switch {
	case statErr == nil:
		err = v.ReadInConfig()
		if err != nil {
			err = errors.Wrapf(err, "failed to parse config file: %s", path)
			return cfg, err
		}
	case os.IsNotExist(statErr) && configPath != "":
		err = errors.Errorf("config file not found: %s (run 'doc-reformatter init' to create)", path)
		return cfg, err
	case !os.IsNotExist(statErr):
		err = errors.Wrapf(statErr, "failed to read config file: %s", path)
		return cfg, err
	}

	err = v.Unmarshal(&cfg)
	if err != nil {
		err = errors.Wrap(err, "failed to decode config")
		return cfg, err
	}

	err = cfg.Validate()
	if err != nil {
		err = errors.Wrap(err, "config validation failed")
		return cfg, err
	}

	return cfg, err
}

// Validate checks that all required configuration is present and fills defaults for
// unset values.
func (c *Config) Validate() (err error) {
	if c.APIKey == "" {
		err = errors.New("api_key is required (set in config or API_KEY env var)")
		return err
	}

	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		err = errors.Errorf("temperature must be between 0 and 2, got %g", c.Temperature)
		return err
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.Retry.Attempts == 0 {
		c.Retry.Attempts = DefaultAttempts
	}
	if c.Retry.BaseDelay < 0 {
		c.Retry.BaseDelay = DefaultBaseDelay
	}

	switch c.LogMode {
	case "":
		c.LogMode = DefaultLogMode
	case "dev", "prod":
	default:
		err = errors.Errorf("log_mode must be 'dev' or 'prod', got '%s'", c.LogMode)
		return err
	}

	if c.DatabasePath == "" {
		var homeDir string
		homeDir, err = os.UserHomeDir()
		if err != nil {
			err = errors.Wrap(err, "failed to get user home directory")
			return err
		}
		c.DatabasePath = filepath.Join(homeDir, DirName, "doc-reformatter.db")
	}

	if c.Defaults.OutputDir == "" {
		c.Defaults.OutputDir = "."
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}

	return err
}

// InitConfig creates a default configuration file.
func InitConfig(configPath string) (err error) {
	path := configPath
	if path == "" {
		path, err = DefaultPath()
		if err != nil {
			return err
		}
	}

	dir := filepath.Dir(path)
	err = os.MkdirAll(dir, 0750)
	if err != nil {
		err = errors.Wrapf(err, "failed to create config directory: %s", dir)
		return err
	}

	_, err = os.Stat(path)
	if err == nil {
		err = errors.Errorf("config file already exists: %s", path)
		return err
	}

	var homeDir string
	homeDir, err = os.UserHomeDir()
	if err != nil {
		err = errors.Wrap(err, "failed to get user home directory")
		return err
	}

	defaultConfig := map[string]interface{}{
		"api_key":       "sk-...",
		"api_url":       DefaultAPIURL,
		"model":         DefaultModel,
		"max_tokens":    DefaultMaxTokens,
		"temperature":   DefaultTemperature,
		"timeout":       DefaultTimeout.String(),
		"chunk_size":    DefaultChunkSize,
		"workers":       DefaultWorkers,
		"retry":         map[string]interface{}{"attempts": DefaultAttempts, "base_delay": DefaultBaseDelay.String()},
		"database_path": filepath.Join(homeDir, DirName, "doc-reformatter.db"),
		"redis_addr":    "",
		"log_mode":      DefaultLogMode,
		"defaults":      map[string]interface{}{"output_dir": filepath.Join(homeDir, "Documents", "Reformatted")},
		"server":        map[string]interface{}{"addr": DefaultServerAddr},
	}

	var data []byte
	data, err = json.MarshalIndent(defaultConfig, "", "  ")
	if err != nil {
		err = errors.Wrap(err, "failed to marshal default config")
		return err
	}

	err = os.WriteFile(path, data, 0600)
	if err != nil {
		err = errors.Wrapf(err, "failed to write config file: %s", path)
		return err
	}

	return err
}
