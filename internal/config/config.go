// Package config loads the runtime configuration from ~/.gphotos/config.toml,
// GPHOTOS_* environment variables and built-in defaults, in increasing order
// of precedence: defaults, file, environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/custodia-labs/gphotos-cli/internal/connectors/google"
	"github.com/custodia-labs/gphotos-cli/internal/core/domain"
)

// EnvPrefix prefixes every environment override, e.g. GPHOTOS_IDENTITY.
const EnvPrefix = "GPHOTOS"

// HomeEnv overrides the configuration directory.
const HomeEnv = "GPHOTOS_HOME"

// Storage backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	// BackendMemory keeps credentials for the life of the process only.
	BackendMemory = "memory"
)

// Config is the runtime configuration.
type Config struct {
	// Identity selects which stored credential commands use.
	Identity string `mapstructure:"identity" validate:"required,identity"`
	// ClientSecrets is the path of the OAuth client file from the Cloud Console.
	ClientSecrets string `mapstructure:"client_secrets" validate:"required"`
	// Scopes requested at login.
	Scopes []string `mapstructure:"scopes" validate:"min=1,dive,url"`
	// LogFile, if set, receives a copy of every log line.
	LogFile string `mapstructure:"log_file"`

	Storage    StorageConfig    `mapstructure:"storage"`
	Token      TokenConfig      `mapstructure:"token"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Login      LoginConfig      `mapstructure:"login"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`

	// Path is the config file that was read, empty if none.
	Path string `mapstructure:"-"`
}

// StorageConfig selects where credentials are kept.
type StorageConfig struct {
	Backend string `mapstructure:"backend" validate:"oneof=file sqlite memory"`
	// Dir holds token files or the sqlite database.
	Dir string `mapstructure:"dir" validate:"required"`
}

// TokenConfig tunes the credential manager.
type TokenConfig struct {
	// Margin refreshes tokens expiring within this window.
	Margin time.Duration `mapstructure:"margin" validate:"gte=0"`
	// Watch drops cached credentials when their file is removed.
	Watch bool `mapstructure:"watch"`
}

// DispatcherConfig tunes retries and pagination.
type DispatcherConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts" validate:"gte=1,lte=20"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff" validate:"gte=0"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff" validate:"gtefield=InitialBackoff"`
	Multiplier     float64       `mapstructure:"multiplier" validate:"gte=1"`
	Jitter         float64       `mapstructure:"jitter" validate:"gte=0,lte=1"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout" validate:"gte=0"`
	MaxPages       int           `mapstructure:"max_pages" validate:"gte=0"`
}

// RateLimitConfig holds per-service limits.
type RateLimitConfig struct {
	Picker  google.RateLimitConfig `mapstructure:"picker"`
	Library google.RateLimitConfig `mapstructure:"library"`
	Media   google.RateLimitConfig `mapstructure:"media"`
}

// LoginConfig tunes the loopback login.
type LoginConfig struct {
	// CallbackPort is the loopback port; 0 picks a free one.
	CallbackPort int           `mapstructure:"callback_port" validate:"gte=0,lte=65535"`
	Timeout      time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// MetricsConfig exposes Prometheus metrics while a command runs.
type MetricsConfig struct {
	// Addr is the listen address, e.g. "127.0.0.1:9464". Empty disables.
	Addr string `mapstructure:"addr" validate:"omitempty,hostname_port"`
}

// Dir returns the configuration directory: $GPHOTOS_HOME or ~/.gphotos.
func Dir() (string, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".gphotos"), nil
}

// DispatcherFor returns the dispatcher configuration for service at baseURL.
func (c *Config) DispatcherFor(service google.ServiceType, baseURL string) google.Config {
	cfg := google.DefaultConfig(service, baseURL)
	cfg.MaxAttempts = c.Dispatcher.MaxAttempts
	cfg.InitialBackoff = c.Dispatcher.InitialBackoff
	cfg.MaxBackoff = c.Dispatcher.MaxBackoff
	cfg.Multiplier = c.Dispatcher.Multiplier
	cfg.Jitter = c.Dispatcher.Jitter
	cfg.AttemptTimeout = c.Dispatcher.AttemptTimeout
	cfg.MaxPages = c.Dispatcher.MaxPages

	var rl google.RateLimitConfig
	switch service {
	case google.ServicePicker:
		rl = c.RateLimit.Picker
	case google.ServiceLibrary:
		rl = c.RateLimit.Library
	case google.ServiceMedia:
		rl = c.RateLimit.Media
	}
	cfg.RateLimit = &rl
	return cfg
}

// ScopeSet returns the configured scopes.
func (c *Config) ScopeSet() domain.ScopeSet {
	return domain.NewScopeSet(c.Scopes...)
}

// Load reads the configuration. An empty path reads config.toml from Dir()
// if it exists; an explicit path must exist. A .env file in the working
// directory is loaded into the environment first.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	dir, err := Dir()
	if err != nil {
		return nil, fmt.Errorf("config directory: %w", err)
	}

	vip := viper.New()
	vip.SetConfigType("toml")
	if path != "" {
		vip.SetConfigFile(path)
	} else {
		vip.SetConfigName("config")
		vip.AddConfigPath(dir)
	}
	vip.SetEnvPrefix(EnvPrefix)
	vip.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vip.AutomaticEnv()
	setDefaults(vip, dir)

	if err := vip.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Path = vip.ConfigFileUsed()
	cfg.ClientSecrets = expandHome(cfg.ClientSecrets)
	cfg.Storage.Dir = expandHome(cfg.Storage.Dir)
	cfg.LogFile = expandHome(cfg.LogFile)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cfg against its constraints.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.RegisterValidation("identity", validIdentity); err != nil {
		return fmt.Errorf("failed to register validators: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// Default returns the configuration used when nothing is configured.
func Default() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	vip := viper.New()
	setDefaults(vip, dir)

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(vip *viper.Viper, dir string) {
	vip.SetDefault("identity", domain.DefaultIdentity)
	vip.SetDefault("client_secrets", filepath.Join(dir, "credentials.json"))
	vip.SetDefault("scopes", domain.DefaultScopes)
	vip.SetDefault("log_file", "")

	vip.SetDefault("storage.backend", BackendFile)
	vip.SetDefault("storage.dir", filepath.Join(dir, "tokens"))

	vip.SetDefault("token.margin", 60*time.Second)
	vip.SetDefault("token.watch", true)

	vip.SetDefault("dispatcher.max_attempts", google.DefaultMaxAttempts)
	vip.SetDefault("dispatcher.initial_backoff", google.DefaultInitialBackoff)
	vip.SetDefault("dispatcher.max_backoff", google.DefaultMaxBackoff)
	vip.SetDefault("dispatcher.multiplier", google.DefaultMultiplier)
	vip.SetDefault("dispatcher.jitter", google.DefaultJitter)
	vip.SetDefault("dispatcher.attempt_timeout", google.DefaultAttemptTimeout)
	vip.SetDefault("dispatcher.max_pages", google.DefaultMaxPages)

	for service, name := range map[google.ServiceType]string{
		google.ServicePicker:  "picker",
		google.ServiceLibrary: "library",
		google.ServiceMedia:   "media",
	} {
		rl := google.DefaultRateLimits[service]
		vip.SetDefault("rate_limit."+name+".requests_per_second", rl.RequestsPerSecond)
		vip.SetDefault("rate_limit."+name+".burst_size", rl.BurstSize)
	}

	vip.SetDefault("login.callback_port", 0)
	vip.SetDefault("login.timeout", 5*time.Minute)
	vip.SetDefault("metrics.addr", "")
}

var identityPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

func validIdentity(fl validator.FieldLevel) bool {
	return identityPattern.MatchString(fl.Field().String())
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
