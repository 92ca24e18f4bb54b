package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeCarrier(&c.DHL, "DHL_API_KEY", defaultDHLBaseURL)
	c.normalizeCarrier(&c.PostNord, "POSTNORD_API_KEY", defaultPostNordBaseURL)
	c.normalizeSender()
	c.normalizePrinting()
	c.normalizeSMTP()
	c.normalizeTiming()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.WatchDir, err = expandPath(c.Paths.WatchDir); err != nil {
		return fmt.Errorf("paths.watch_dir: %w", err)
	}
	if c.Paths.ProcessingDir, err = expandPath(c.Paths.ProcessingDir); err != nil {
		return fmt.Errorf("paths.processing_dir: %w", err)
	}
	if c.Paths.DoneDir, err = expandPath(c.Paths.DoneDir); err != nil {
		return fmt.Errorf("paths.done_dir: %w", err)
	}
	if c.Paths.ErrorDir, err = expandPath(c.Paths.ErrorDir); err != nil {
		return fmt.Errorf("paths.error_dir: %w", err)
	}
	if c.Paths.LabelDir, err = expandPath(c.Paths.LabelDir); err != nil {
		return fmt.Errorf("paths.label_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeCarrier(carrier *Carrier, envKey, defaultBaseURL string) {
	if carrier.APIKey == "" {
		if value, ok := os.LookupEnv(envKey); ok {
			carrier.APIKey = value
		}
	}
	carrier.BaseURL = strings.TrimRight(strings.TrimSpace(carrier.BaseURL), "/")
	if carrier.BaseURL == "" {
		carrier.BaseURL = defaultBaseURL
	}
	if carrier.TimeoutSeconds <= 0 {
		carrier.TimeoutSeconds = defaultCarrierTimeout
	}
	if carrier.RetryAttempts < 0 {
		carrier.RetryAttempts = defaultRetryAttempts
	}
	if carrier.RetryWaitSeconds <= 0 {
		carrier.RetryWaitSeconds = defaultRetryWaitSeconds
	}
	if carrier.RetryMaxWaitSeconds <= 0 {
		carrier.RetryMaxWaitSeconds = defaultRetryMaxWaitSeconds
	}
}

func (c *Config) normalizeSender() {
	c.Sender.Name = strings.TrimSpace(c.Sender.Name)
	c.Sender.Country = strings.ToUpper(strings.TrimSpace(c.Sender.Country))
	if c.Sender.Country == "" {
		c.Sender.Country = "SE"
	}
}

func (c *Config) normalizePrinting() {
	c.Printing.LabelFormat = strings.ToLower(strings.TrimSpace(c.Printing.LabelFormat))
	if c.Printing.LabelFormat == "" {
		c.Printing.LabelFormat = defaultLabelFormat
	}
	if strings.TrimSpace(c.Printing.SpoolerCommand) == "" {
		c.Printing.SpoolerCommand = defaultSpoolerCommand
	}
}

func (c *Config) normalizeSMTP() {
	if c.SMTP.Password == "" {
		if value, ok := os.LookupEnv("SMTP_PASSWORD"); ok {
			c.SMTP.Password = value
		}
	}
	if c.SMTP.Port <= 0 {
		c.SMTP.Port = defaultSMTPPort
	}
	if strings.TrimSpace(c.SMTP.FromName) == "" {
		c.SMTP.FromName = c.Sender.Name
	}
}

func (c *Config) normalizeTiming() {
	if c.Watcher.QuietPeriodSeconds <= 0 {
		c.Watcher.QuietPeriodSeconds = defaultQuietPeriodSeconds
	}
	if c.Watcher.StabilityTimeoutSeconds <= 0 {
		c.Watcher.StabilityTimeoutSeconds = defaultStabilityTimeoutSeconds
	}
	if c.Watcher.SweepIntervalSeconds <= 0 {
		c.Watcher.SweepIntervalSeconds = defaultSweepIntervalSeconds
	}
	if c.Pipeline.Workers <= 0 {
		c.Pipeline.Workers = defaultWorkers
	}
	if c.Pipeline.QueueSize <= 0 {
		c.Pipeline.QueueSize = defaultQueueSize
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays <= 0 {
		c.Logging.RetentionDays = defaultLogRetentionDays
	}
}
