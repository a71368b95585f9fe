package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultBaseURL is the API root used when nothing else is configured.
// Release builds may override it:
//
//	go build -ldflags "-X taskboard-cli/internal/config.DefaultBaseURL=https://tasks.example.com"
var DefaultBaseURL = "http://127.0.0.1:3000"

const (
	EnvPrefix    = "TASKBOARD"
	EnvConfigDir = "TASKBOARD_CONFIG_DIR"

	dirName        = ".taskboard"
	configFileName = "config.yaml"
)

const (
	DefaultPollInterval   = 5 * time.Second
	DefaultRefreshGrace   = 1500 * time.Millisecond
	DefaultRequestTimeout = 15 * time.Second
)

type Config struct {
	BaseURL        string        `mapstructure:"base_url" yaml:"base_url"`
	PollInterval   time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	RefreshGrace   time.Duration `mapstructure:"refresh_grace" yaml:"refresh_grace"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`

	// StateDir holds state.sqlite (the persisted token). Defaults to the config dir.
	StateDir string `mapstructure:"state_dir" yaml:"state_dir,omitempty"`
	// DebugLog, when set, receives request and state-transition logs.
	DebugLog string `mapstructure:"debug_log" yaml:"debug_log,omitempty"`
	// Theme is one of: auto|light|dark|none
	Theme string `mapstructure:"theme" yaml:"theme"`
}

func Default() *Config {
	return &Config{
		BaseURL:        DefaultBaseURL,
		PollInterval:   DefaultPollInterval,
		RefreshGrace:   DefaultRefreshGrace,
		RequestTimeout: DefaultRequestTimeout,
		Theme:          "auto",
	}
}

// Dir returns the global config directory (~/.taskboard), overridable with
// TASKBOARD_CONFIG_DIR.
func Dir() (string, error) {
	if v := strings.TrimSpace(os.Getenv(EnvConfigDir)); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, dirName), nil
}

func GlobalPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// Sources names the files Load layers, lowest precedence first.
// Empty entries are skipped.
type Sources struct {
	GlobalFile  string
	ProjectFile string
	EnvFile     string
}

func DefaultSources() Sources {
	var src Sources
	if p, err := GlobalPath(); err == nil {
		src.GlobalFile = p
	}
	if cwd, err := os.Getwd(); err == nil {
		src.ProjectFile = filepath.Join(cwd, dirName, configFileName)
		src.EnvFile = filepath.Join(cwd, ".env")
	}
	return src
}

func Load() (*Config, error) {
	return LoadSources(DefaultSources())
}

// LoadSources merges defaults, the global file, the project file, .env values
// and TASKBOARD_* environment variables, in increasing precedence.
func LoadSources(src Sources) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	for _, path := range []string{src.GlobalFile, src.ProjectFile} {
		if err := mergeFile(v, path); err != nil {
			return nil, err
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := applyDotEnv(v, src.EnvFile); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("base_url", d.BaseURL)
	v.SetDefault("poll_interval", d.PollInterval)
	v.SetDefault("refresh_grace", d.RefreshGrace)
	v.SetDefault("request_timeout", d.RequestTimeout)
	v.SetDefault("state_dir", d.StateDir)
	v.SetDefault("debug_log", d.DebugLog)
	v.SetDefault("theme", d.Theme)
}

func mergeFile(v *viper.Viper, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.MergeInConfig(); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	return nil
}

// applyDotEnv feeds TASKBOARD_* entries of a .env file to v. Real environment
// variables win; the process environment is not modified.
func applyDotEnv(v *viper.Viper, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	vals, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("env file %s: %w", path, err)
	}
	prefix := EnvPrefix + "_"
	for k, val := range vals {
		if !strings.HasPrefix(k, prefix) || k == EnvConfigDir {
			continue
		}
		if _, set := os.LookupEnv(k); set {
			continue
		}
		v.Set(strings.ToLower(strings.TrimPrefix(k, prefix)), val)
	}
	return nil
}

func (c *Config) normalize() error {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: invalid base_url %q", c.BaseURL)
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.RefreshGrace < 0 {
		c.RefreshGrace = DefaultRefreshGrace
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if strings.TrimSpace(c.StateDir) == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		c.StateDir = dir
	}
	switch strings.ToLower(strings.TrimSpace(c.Theme)) {
	case "", "auto":
		c.Theme = "auto"
	case "light", "dark", "none":
		c.Theme = strings.ToLower(strings.TrimSpace(c.Theme))
	default:
		return fmt.Errorf("config: invalid theme %q (expected auto|light|dark|none)", c.Theme)
	}
	return nil
}
