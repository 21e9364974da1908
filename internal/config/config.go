package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rohmanhakim/nextmuni/internal/build"
	"github.com/rohmanhakim/nextmuni/internal/storage"
	"github.com/rohmanhakim/nextmuni/pkg/timeutil"
	"github.com/spf13/viper"
)

const (
	DefaultBaseURL    = "http://www.nextmuni.com"
	DefaultAgency     = "sf-muni"
	DefaultListenAddr = ":8080"
	envPrefix         = "NEXTMUNI"
)

type Config struct {
	//===============
	// Upstream
	//===============
	// Scheme and host of the scraped site. Paths are resolved against it.
	baseURL url.URL
	// Agency identifier sent as the `a` query parameter.
	agency string
	// User agent that will be used in the request header. In raw string
	userAgent string
	// Maximum time of a single upstream request
	timeout time.Duration

	//===============
	// Politeness
	//===============
	// Minimum, fixed waiting time enforced between two requests to the upstream host.
	baseDelay time.Duration
	// Randomized variation added on top of the base delay.
	jitter time.Duration
	// Controls the random number generator
	randomSeed int64

	//===============
	// Cache
	//===============
	// Location of the sqlite cache file
	dbPath string
	// Age after which a route's directions are refreshed in the background
	staleAfter time.Duration
	// Age after which a route's directions are refreshed before answering
	expireAfter time.Duration

	//===============
	// Serving
	//===============
	listenAddr     string
	metricsEnabled bool
	// Whether serve bootstraps the cookie and route list before accepting requests
	primeOnStart bool

	//===============
	// Logging
	//===============
	logLevel  string
	logFormat string
}

type configDTO struct {
	BaseURL        string        `mapstructure:"base_url" validate:"omitempty,url"`
	Agency         string        `mapstructure:"agency" validate:"omitempty,excludesall=/?&#"`
	UserAgent      string        `mapstructure:"user_agent"`
	Timeout        time.Duration `mapstructure:"timeout"`
	BaseDelay      time.Duration `mapstructure:"base_delay"`
	Jitter         time.Duration `mapstructure:"jitter"`
	RandomSeed     int64         `mapstructure:"random_seed"`
	DBPath         string        `mapstructure:"db_path"`
	StaleAfter     time.Duration `mapstructure:"stale_after"`
	ExpireAfter    time.Duration `mapstructure:"expire_after"`
	ListenAddr     string        `mapstructure:"listen_addr"`
	MetricsEnabled *bool         `mapstructure:"metrics_enabled"`
	PrimeOnStart   *bool         `mapstructure:"prime_on_start"`
	LogLevel       string        `mapstructure:"log_level" validate:"omitempty,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	LogFormat      string        `mapstructure:"log_format" validate:"omitempty,oneof=text json"`
}

var dtoKeys = []string{
	"base_url", "agency", "user_agent", "timeout", "base_delay", "jitter",
	"random_seed", "db_path", "stale_after", "expire_after", "listen_addr",
	"metrics_enabled", "prime_on_start", "log_level", "log_format",
}

var validate = validator.New()

func newConfigFromDTO(dto configDTO) (Config, error) {
	if err := validate.Struct(dto); err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrInvalidConfig, err.Error())
	}

	cfg := WithDefault()

	if dto.BaseURL != "" {
		u, err := url.Parse(dto.BaseURL)
		if err != nil {
			return Config{}, fmt.Errorf("%w: base_url: %s", ErrInvalidConfig, err.Error())
		}
		cfg.WithBaseURL(*u)
	}
	if dto.Agency != "" {
		cfg.WithAgency(dto.Agency)
	}
	if dto.UserAgent != "" {
		cfg.WithUserAgent(dto.UserAgent)
	}
	if dto.Timeout != 0 {
		cfg.WithTimeout(dto.Timeout)
	}
	if dto.BaseDelay != 0 {
		cfg.WithBaseDelay(dto.BaseDelay)
	}
	if dto.Jitter != 0 {
		cfg.WithJitter(dto.Jitter)
	}
	if dto.RandomSeed != 0 {
		cfg.WithRandomSeed(dto.RandomSeed)
	}
	if dto.DBPath != "" {
		cfg.WithDBPath(dto.DBPath)
	}
	if dto.StaleAfter != 0 {
		cfg.WithStaleAfter(dto.StaleAfter)
	}
	if dto.ExpireAfter != 0 {
		cfg.WithExpireAfter(dto.ExpireAfter)
	}
	if dto.ListenAddr != "" {
		cfg.WithListenAddr(dto.ListenAddr)
	}
	if dto.MetricsEnabled != nil {
		cfg.WithMetricsEnabled(*dto.MetricsEnabled)
	}
	if dto.PrimeOnStart != nil {
		cfg.WithPrimeOnStart(*dto.PrimeOnStart)
	}
	if dto.LogLevel != "" {
		cfg.WithLogLevel(dto.LogLevel)
	}
	if dto.LogFormat != "" {
		cfg.WithLogFormat(dto.LogFormat)
	}

	return cfg.Build()
}

// WithConfigFile reads a YAML, JSON or TOML file and overlays NEXTMUNI_*
// environment variables on top of it. Unset keys keep their defaults.
func WithConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, fmt.Errorf("%w: empty path", ErrFileDoesNotExist)
	}
	return Load(path)
}

// Load overlays NEXTMUNI_* environment variables on the defaults, and on
// the config file at path when path is not empty.
func Load(path string) (Config, error) {
	v, err := newViper()
	if err != nil {
		return Config{}, err
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("%w: %s", ErrFileDoesNotExist, path)
			}
			return Config{}, fmt.Errorf("%w: %s", ErrReadConfigFail, err.Error())
		}

		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var parseErr viper.ConfigParseError
			if errors.As(err, &parseErr) {
				return Config{}, fmt.Errorf("%w: %s", ErrConfigParsingFail, err.Error())
			}
			return Config{}, fmt.Errorf("%w: %s", ErrReadConfigFail, err.Error())
		}
	}

	cfgDTO := configDTO{}
	if err := v.Unmarshal(&cfgDTO); err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrConfigParsingFail, err.Error())
	}

	return newConfigFromDTO(cfgDTO)
}

func newViper() (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for _, key := range dtoKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrReadConfigFail, err.Error())
		}
	}
	return v, nil
}

// WithDefault creates a new Config pointed at the public NextMuni site.
func WithDefault() *Config {
	defaultConfig := Config{
		baseURL:        url.URL{Scheme: "http", Host: "www.nextmuni.com"},
		agency:         DefaultAgency,
		userAgent:      build.UserAgent(),
		timeout:        10 * time.Second,
		baseDelay:      0,
		jitter:         0,
		randomSeed:     time.Now().UnixNano(),
		dbPath:         storage.DefaultPath(),
		staleAfter:     timeutil.OneDay,
		expireAfter:    timeutil.OneMonth,
		listenAddr:     DefaultListenAddr,
		metricsEnabled: true,
		primeOnStart:   true,
		logLevel:       "INFO",
		logFormat:      "text",
	}
	return &defaultConfig
}

func (c *Config) WithBaseURL(u url.URL) *Config {
	c.baseURL = u
	return c
}

func (c *Config) WithAgency(agency string) *Config {
	c.agency = agency
	return c
}

func (c *Config) WithUserAgent(agent string) *Config {
	c.userAgent = agent
	return c
}

func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.timeout = timeout
	return c
}

func (c *Config) WithBaseDelay(delay time.Duration) *Config {
	c.baseDelay = delay
	return c
}

func (c *Config) WithJitter(jitter time.Duration) *Config {
	c.jitter = jitter
	return c
}

func (c *Config) WithRandomSeed(seed int64) *Config {
	c.randomSeed = seed
	return c
}

func (c *Config) WithDBPath(path string) *Config {
	c.dbPath = path
	return c
}

func (c *Config) WithStaleAfter(d time.Duration) *Config {
	c.staleAfter = d
	return c
}

func (c *Config) WithExpireAfter(d time.Duration) *Config {
	c.expireAfter = d
	return c
}

func (c *Config) WithListenAddr(addr string) *Config {
	c.listenAddr = addr
	return c
}

func (c *Config) WithMetricsEnabled(enabled bool) *Config {
	c.metricsEnabled = enabled
	return c
}

func (c *Config) WithPrimeOnStart(prime bool) *Config {
	c.primeOnStart = prime
	return c
}

func (c *Config) WithLogLevel(level string) *Config {
	c.logLevel = level
	return c
}

func (c *Config) WithLogFormat(format string) *Config {
	c.logFormat = format
	return c
}

func (c *Config) Build() (Config, error) {
	if c.baseURL.Scheme == "" || c.baseURL.Host == "" {
		return Config{}, fmt.Errorf("%w: baseURL must be absolute, got %q", ErrInvalidConfig, c.baseURL.String())
	}
	if c.agency == "" {
		return Config{}, fmt.Errorf("%w: agency cannot be empty", ErrInvalidConfig)
	}
	if c.timeout <= 0 {
		return Config{}, fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	}
	if c.baseDelay < 0 || c.jitter < 0 {
		return Config{}, fmt.Errorf("%w: baseDelay and jitter cannot be negative", ErrInvalidConfig)
	}
	if c.staleAfter <= 0 || c.expireAfter <= 0 {
		return Config{}, fmt.Errorf("%w: staleAfter and expireAfter must be positive", ErrInvalidConfig)
	}
	if c.staleAfter >= c.expireAfter {
		return Config{}, fmt.Errorf("%w: staleAfter (%s) must be shorter than expireAfter (%s)", ErrInvalidConfig, c.staleAfter, c.expireAfter)
	}
	if c.dbPath == "" {
		return Config{}, fmt.Errorf("%w: dbPath cannot be empty", ErrInvalidConfig)
	}
	if c.userAgent == "" {
		c.userAgent = build.UserAgent()
	}

	return *c, nil
}

func (c Config) BaseURL() url.URL {
	return c.baseURL
}

func (c Config) Agency() string {
	return c.agency
}

func (c Config) UserAgent() string {
	return c.userAgent
}

func (c Config) Timeout() time.Duration {
	return c.timeout
}

func (c Config) BaseDelay() time.Duration {
	return c.baseDelay
}

func (c Config) Jitter() time.Duration {
	return c.jitter
}

func (c Config) RandomSeed() int64 {
	return c.randomSeed
}

func (c Config) DBPath() string {
	return c.dbPath
}

func (c Config) StaleAfter() time.Duration {
	return c.staleAfter
}

func (c Config) ExpireAfter() time.Duration {
	return c.expireAfter
}

func (c Config) ListenAddr() string {
	return c.listenAddr
}

func (c Config) MetricsEnabled() bool {
	return c.metricsEnabled
}

func (c Config) PrimeOnStart() bool {
	return c.primeOnStart
}

func (c Config) LogLevel() string {
	return c.logLevel
}

func (c Config) LogFormat() string {
	return c.logFormat
}
