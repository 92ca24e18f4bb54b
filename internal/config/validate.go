package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable. Validation errors abort
// startup; the daemon never begins watching with a broken configuration.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateCarriers(); err != nil {
		return err
	}
	if err := c.validateSMTP(); err != nil {
		return err
	}
	if err := c.validatePrinting(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	named := map[string]string{
		"paths.watch_dir":      c.Paths.WatchDir,
		"paths.processing_dir": c.Paths.ProcessingDir,
		"paths.done_dir":       c.Paths.DoneDir,
		"paths.error_dir":      c.Paths.ErrorDir,
		"paths.label_dir":      c.Paths.LabelDir,
	}
	for key, value := range named {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s must be set", key)
		}
	}

	// Claim relies on rename atomicity, which holds only within a filesystem.
	// Requiring distinct directories keeps the state machine unambiguous.
	seen := map[string]string{}
	for key, value := range named {
		if other, ok := seen[value]; ok {
			return fmt.Errorf("%s and %s must not point at the same directory", other, key)
		}
		seen[value] = key
	}
	return nil
}

func (c *Config) validateCarriers() error {
	if !c.DHL.Enabled && !c.PostNord.Enabled {
		return errors.New("at least one carrier must be enabled (set dhl.enabled or postnord.enabled)")
	}
	if c.DHL.Enabled {
		if err := validateCarrier("dhl", c.DHL); err != nil {
			return err
		}
	}
	if c.PostNord.Enabled {
		if err := validateCarrier("postnord", c.PostNord); err != nil {
			return err
		}
	}
	return nil
}

func validateCarrier(section string, carrier Carrier) error {
	if strings.TrimSpace(carrier.APIKey) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/garpconnect/config.toml"
		}
		return fmt.Errorf("%s.api_key is required. Set %s_API_KEY env var or edit %s (create with 'garpconnect config init')",
			section, strings.ToUpper(section), defaultPath)
	}
	if strings.TrimSpace(carrier.BaseURL) == "" {
		return fmt.Errorf("%s.base_url must be set", section)
	}
	return nil
}

func (c *Config) validateSMTP() error {
	if !c.SMTP.Enabled {
		return nil
	}
	if strings.TrimSpace(c.SMTP.Host) == "" {
		return errors.New("smtp.host must be set when smtp.enabled is true")
	}
	if strings.TrimSpace(c.SMTP.FromAddress) == "" {
		return errors.New("smtp.from_address must be set when smtp.enabled is true")
	}
	if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
		return fmt.Errorf("smtp.port %d is out of range", c.SMTP.Port)
	}
	return nil
}

func (c *Config) validatePrinting() error {
	switch c.Printing.LabelFormat {
	case "pdf", "zpl":
		return nil
	default:
		return fmt.Errorf("printing.label_format must be \"pdf\" or \"zpl\", got %q", c.Printing.LabelFormat)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not recognized", c.Logging.Level)
	}
	return nil
}
