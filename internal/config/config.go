package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the directory layout the pipeline operates on.
type Paths struct {
	WatchDir      string `toml:"watch_dir"`
	ProcessingDir string `toml:"processing_dir"`
	DoneDir       string `toml:"done_dir"`
	ErrorDir      string `toml:"error_dir"`
	LabelDir      string `toml:"label_dir"`
	LogDir        string `toml:"log_dir"`
}

// Sender describes the consignor sent to the carrier APIs.
type Sender struct {
	Name                   string `toml:"name"`
	Address1               string `toml:"address1"`
	Zipcode                string `toml:"zipcode"`
	City                   string `toml:"city"`
	Country                string `toml:"country"`
	Phone                  string `toml:"phone"`
	Email                  string `toml:"email"`
	DHLCustomerNumber      string `toml:"customer_number_dhl"`
	PostNordCustomerNumber string `toml:"customer_number_postnord"`
}

// Carrier holds the connection settings shared by the carrier API clients.
type Carrier struct {
	Enabled             bool   `toml:"enabled"`
	BaseURL             string `toml:"base_url"`
	APIKey              string `toml:"api_key"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
	RetryAttempts       int    `toml:"retry_attempts"`
	RetryWaitSeconds    int    `toml:"retry_wait_seconds"`
	RetryMaxWaitSeconds int    `toml:"retry_max_wait_seconds"`
}

// Printing configures the label and document printer queues.
type Printing struct {
	LabelPrinter    string `toml:"label_printer"`
	LabelFormat     string `toml:"label_format"`
	DocumentPrinter string `toml:"document_printer"`
	SpoolerCommand  string `toml:"spooler_command"`
}

// SMTP configures outbound email for tracking mails and failure alerts.
type SMTP struct {
	Enabled       bool   `toml:"enabled"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Username      string `toml:"username"`
	Password      string `toml:"password"`
	FromAddress   string `toml:"from_address"`
	FromName      string `toml:"from_name"`
	StartTLS      bool   `toml:"use_starttls"`
	OperatorEmail string `toml:"operator_email"`
}

// Watcher configures directory watching and the file stability check.
type Watcher struct {
	QuietPeriodSeconds      int `toml:"quiet_period_seconds"`
	StabilityTimeoutSeconds int `toml:"stability_timeout_seconds"`
	SweepIntervalSeconds    int `toml:"sweep_interval_seconds"`
}

// Pipeline configures the worker pool consuming discovered files.
type Pipeline struct {
	Workers   int `toml:"workers"`
	QueueSize int `toml:"queue_size"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for the connector.
type Config struct {
	Paths    Paths    `toml:"paths"`
	Sender   Sender   `toml:"sender"`
	DHL      Carrier  `toml:"dhl"`
	PostNord Carrier  `toml:"postnord"`
	Printing Printing `toml:"printing"`
	SMTP     SMTP     `toml:"smtp"`
	Watcher  Watcher  `toml:"watcher"`
	Pipeline Pipeline `toml:"pipeline"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/garpconnect/config.toml")
}

var envPattern = regexp.MustCompile(`\$\{(\w+)\}`)

// Load locates, parses, and validates a configuration file. ${ENV_VAR}
// references in the raw file are replaced with environment values before
// parsing; unset variables are left as written. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		raw, err := os.ReadFile(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("read config: %w", err)
		}
		resolved := envPattern.ReplaceAllStringFunc(string(raw), func(match string) string {
			name := envPattern.FindStringSubmatch(match)[1]
			if value, ok := os.LookupEnv(name); ok {
				return value
			}
			return match
		})
		if err := toml.Unmarshal([]byte(resolved), &cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("garpconnect.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the daemon needs at startup.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{
		c.Paths.WatchDir,
		c.Paths.ProcessingDir,
		c.Paths.DoneDir,
		c.Paths.ErrorDir,
		c.Paths.LabelDir,
		c.Paths.LogDir,
	} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
