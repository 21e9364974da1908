package cmd

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/rohmanhakim/nextmuni/internal/config"
	"github.com/spf13/cobra"
)

var (
	cfgFile    string
	baseURL    string
	agency     string
	dbPath     string
	userAgent  string
	timeout    time.Duration
	baseDelay  time.Duration
	jitter     time.Duration
	randomSeed int64
	logLevel   string
	logFormat  string
	listenAddr string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "nextmuni",
	Short: "A caching client for NextMuni transit data.",
	Long: `nextmuni scrapes route, stop and arrival prediction data from the
NextMuni website and keeps the slow-changing parts in a local sqlite cache.

Route directions are served from the cache while fresh, refreshed in the
background once they are a day old, and refreshed before answering once
they are a month old. Predictions are always fetched live.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "config file path (e.g., /home/myuser/nextmuni.yaml)")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "upstream site, default "+config.DefaultBaseURL)
	rootCmd.PersistentFlags().StringVar(&agency, "agency", "", "agency identifier, default "+config.DefaultAgency)
	rootCmd.PersistentFlags().StringVar(&dbPath, "db-path", "", "sqlite cache file (default $XDG_CONFIG_HOME/nextmuni/cache.db)")
	rootCmd.PersistentFlags().StringVar(&userAgent, "user-agent", "", "user agent string for HTTP requests")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "timeout for HTTP requests")
	rootCmd.PersistentFlags().DurationVar(&baseDelay, "base-delay", 0, "minimum delay between upstream requests")
	rootCmd.PersistentFlags().DurationVar(&jitter, "jitter", 0, "random jitter added to base delay")
	rootCmd.PersistentFlags().Int64Var(&randomSeed, "random-seed", 0, "seed for jitter generation (0 for current time)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "DEBUG, INFO, WARN or ERROR")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "text or json")

	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "address the HTTP server listens on, default "+config.DefaultListenAddr)

	rootCmd.AddCommand(routesCmd, directionsCmd, stopsCmd, predictionsCmd, serveCmd, versionCmd)
}

// InitConfig reads in config file and ENV variables if set.
func InitConfig() config.Config {
	cfg, err := InitConfigWithError()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	return cfg
}

// InitConfigWithError builds the config from the defaults, the config file
// if any, and NEXTMUNI_* environment variables, then applies flag values on
// top. Flags left at their zero value do not override anything.
func InitConfigWithError() (config.Config, error) {
	fileCfg, err := config.Load(cfgFile)
	if err != nil {
		if cfgFile != "" {
			return config.Config{}, fmt.Errorf("error initializing config from file: %w", err)
		}
		return config.Config{}, fmt.Errorf("error initializing config from environment: %w", err)
	}
	configBuilder := &fileCfg

	if baseURL != "" {
		parsed, err := url.Parse(baseURL)
		if err != nil {
			return config.Config{}, fmt.Errorf("%w: error parsing base URL %s: %s", config.ErrInvalidConfig, baseURL, err.Error())
		}
		configBuilder = configBuilder.WithBaseURL(*parsed)
	}

	if agency != "" {
		configBuilder = configBuilder.WithAgency(agency)
	}

	if dbPath != "" {
		configBuilder = configBuilder.WithDBPath(dbPath)
	}

	if userAgent != "" {
		configBuilder = configBuilder.WithUserAgent(userAgent)
	}

	if timeout > 0 {
		configBuilder = configBuilder.WithTimeout(timeout)
	}

	if baseDelay > 0 {
		configBuilder = configBuilder.WithBaseDelay(baseDelay)
	}

	if jitter > 0 {
		configBuilder = configBuilder.WithJitter(jitter)
	}

	if randomSeed != 0 {
		configBuilder = configBuilder.WithRandomSeed(randomSeed)
	}

	if logLevel != "" {
		configBuilder = configBuilder.WithLogLevel(logLevel)
	}

	if logFormat != "" {
		configBuilder = configBuilder.WithLogFormat(logFormat)
	}

	if listenAddr != "" {
		configBuilder = configBuilder.WithListenAddr(listenAddr)
	}

	cfg, err := configBuilder.Build()
	if err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func ResetFlags() {
	cfgFile = ""
	baseURL = ""
	agency = ""
	dbPath = ""
	userAgent = ""
	timeout = 0
	baseDelay = 0
	jitter = 0
	randomSeed = 0
	logLevel = ""
	logFormat = ""
	listenAddr = ""
}

// Test helper functions to set flag values from tests
func SetConfigFileForTest(path string) {
	cfgFile = path
}

func SetBaseURLForTest(u string) {
	baseURL = u
}

func SetAgencyForTest(a string) {
	agency = a
}

func SetDBPathForTest(path string) {
	dbPath = path
}

func SetUserAgentForTest(agent string) {
	userAgent = agent
}

func SetTimeoutForTest(t time.Duration) {
	timeout = t
}

func SetBaseDelayForTest(delay time.Duration) {
	baseDelay = delay
}

func SetJitterForTest(j time.Duration) {
	jitter = j
}

func SetRandomSeedForTest(seed int64) {
	randomSeed = seed
}

func SetLogLevelForTest(level string) {
	logLevel = level
}

func SetLogFormatForTest(format string) {
	logFormat = format
}

func SetListenAddrForTest(addr string) {
	listenAddr = addr
}
