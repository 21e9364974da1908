package cmd_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	cmd "github.com/rohmanhakim/nextmuni/internal/cli"
	"github.com/rohmanhakim/nextmuni/internal/config"
)

// TestInitConfigNoFlags tests that InitConfigWithError returns the defaults when no flag is set
func TestInitConfigNoFlags(t *testing.T) {
	cmd.ResetFlags()

	cfg, err := cmd.InitConfigWithError()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	defaultCfg, err := config.WithDefault().Build()
	if err != nil {
		t.Fatalf("should not have any error, got %v", err)
	}

	gotBase, wantBase := cfg.BaseURL(), defaultCfg.BaseURL()
	if gotBase.String() != wantBase.String() {
		t.Errorf("Expected BaseURL %s, got %s", wantBase.String(), gotBase.String())
	}
	if cfg.Agency() != defaultCfg.Agency() {
		t.Errorf("Expected Agency %s, got %s", defaultCfg.Agency(), cfg.Agency())
	}
	if cfg.Timeout() != defaultCfg.Timeout() {
		t.Errorf("Expected Timeout %v, got %v", defaultCfg.Timeout(), cfg.Timeout())
	}
	if cfg.DBPath() != defaultCfg.DBPath() {
		t.Errorf("Expected DBPath %s, got %s", defaultCfg.DBPath(), cfg.DBPath())
	}
	if cfg.ListenAddr() != defaultCfg.ListenAddr() {
		t.Errorf("Expected ListenAddr %s, got %s", defaultCfg.ListenAddr(), cfg.ListenAddr())
	}
}

// TestInitConfigWithFlags tests that every flag overrides its default
func TestInitConfigWithFlags(t *testing.T) {
	cmd.ResetFlags()
	defer cmd.ResetFlags()

	cmd.SetBaseURLForTest("https://muni.example")
	cmd.SetAgencyForTest("actransit")
	cmd.SetDBPathForTest("/tmp/nextmuni-test.db")
	cmd.SetUserAgentForTest("tester/2")
	cmd.SetTimeoutForTest(4 * time.Second)
	cmd.SetBaseDelayForTest(250 * time.Millisecond)
	cmd.SetJitterForTest(100 * time.Millisecond)
	cmd.SetRandomSeedForTest(99)
	cmd.SetLogLevelForTest("DEBUG")
	cmd.SetLogFormatForTest("json")
	cmd.SetListenAddrForTest("127.0.0.1:9999")

	cfg, err := cmd.InitConfigWithError()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	base := cfg.BaseURL()
	if base.String() != "https://muni.example" {
		t.Errorf("Expected BaseURL https://muni.example, got %s", base.String())
	}
	if cfg.Agency() != "actransit" {
		t.Errorf("Expected Agency actransit, got %s", cfg.Agency())
	}
	if cfg.DBPath() != "/tmp/nextmuni-test.db" {
		t.Errorf("Expected DBPath override, got %s", cfg.DBPath())
	}
	if cfg.UserAgent() != "tester/2" {
		t.Errorf("Expected UserAgent tester/2, got %s", cfg.UserAgent())
	}
	if cfg.Timeout() != 4*time.Second {
		t.Errorf("Expected Timeout 4s, got %v", cfg.Timeout())
	}
	if cfg.BaseDelay() != 250*time.Millisecond {
		t.Errorf("Expected BaseDelay 250ms, got %v", cfg.BaseDelay())
	}
	if cfg.Jitter() != 100*time.Millisecond {
		t.Errorf("Expected Jitter 100ms, got %v", cfg.Jitter())
	}
	if cfg.RandomSeed() != 99 {
		t.Errorf("Expected RandomSeed 99, got %d", cfg.RandomSeed())
	}
	if cfg.LogLevel() != "DEBUG" || cfg.LogFormat() != "json" {
		t.Errorf("Expected DEBUG/json, got %s/%s", cfg.LogLevel(), cfg.LogFormat())
	}
	if cfg.ListenAddr() != "127.0.0.1:9999" {
		t.Errorf("Expected ListenAddr 127.0.0.1:9999, got %s", cfg.ListenAddr())
	}
}

// TestInitConfigFlagsOverrideConfigFile tests that flags win over values read from the file
func TestInitConfigFlagsOverrideConfigFile(t *testing.T) {
	cmd.ResetFlags()
	defer cmd.ResetFlags()

	path := filepath.Join(t.TempDir(), "nextmuni.yaml")
	content := "agency: from-file\ntimeout: 7s\nlog_format: json\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cmd.SetConfigFileForTest(path)
	cmd.SetAgencyForTest("from-flag")

	cfg, err := cmd.InitConfigWithError()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.Agency() != "from-flag" {
		t.Errorf("Expected flag to override file, got %s", cfg.Agency())
	}
	if cfg.Timeout() != 7*time.Second {
		t.Errorf("Expected Timeout from file, got %v", cfg.Timeout())
	}
	if cfg.LogFormat() != "json" {
		t.Errorf("Expected LogFormat from file, got %s", cfg.LogFormat())
	}
}

func TestInitConfigMissingConfigFile(t *testing.T) {
	cmd.ResetFlags()
	defer cmd.ResetFlags()

	cmd.SetConfigFileForTest(filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := cmd.InitConfigWithError()
	if !errors.Is(err, config.ErrFileDoesNotExist) {
		t.Errorf("Expected ErrFileDoesNotExist, got %v", err)
	}
}

func TestInitConfigInvalidBaseURL(t *testing.T) {
	cmd.ResetFlags()
	defer cmd.ResetFlags()

	cmd.SetBaseURLForTest("muni.example")

	_, err := cmd.InitConfigWithError()
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig for a relative base URL, got %v", err)
	}
}

// TestInitConfigEnvironmentWithoutConfigFile tests that NEXTMUNI_* variables apply when no file is given
func TestInitConfigEnvironmentWithoutConfigFile(t *testing.T) {
	cmd.ResetFlags()
	defer cmd.ResetFlags()

	t.Setenv("NEXTMUNI_AGENCY", "actransit")
	t.Setenv("NEXTMUNI_TIMEOUT", "3s")

	cfg, err := cmd.InitConfigWithError()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.Agency() != "actransit" {
		t.Errorf("Expected Agency from environment, got %s", cfg.Agency())
	}
	if cfg.Timeout() != 3*time.Second {
		t.Errorf("Expected Timeout from environment, got %v", cfg.Timeout())
	}
}

// TestInitConfigFlagsOverrideEnvironment tests that flags win over NEXTMUNI_* variables
func TestInitConfigFlagsOverrideEnvironment(t *testing.T) {
	cmd.ResetFlags()
	defer cmd.ResetFlags()

	t.Setenv("NEXTMUNI_AGENCY", "from-env")
	cmd.SetAgencyForTest("from-flag")

	cfg, err := cmd.InitConfigWithError()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.Agency() != "from-flag" {
		t.Errorf("Expected flag to override environment, got %s", cfg.Agency())
	}
}

func TestInitConfigInvalidEnvironment(t *testing.T) {
	cmd.ResetFlags()
	defer cmd.ResetFlags()

	t.Setenv("NEXTMUNI_LOG_FORMAT", "xml")

	_, err := cmd.InitConfigWithError()
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}
