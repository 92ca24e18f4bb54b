package main

import (
	"strings"
	"sync"

	"garpconnect/internal/config"
	"garpconnect/internal/journal"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// withStore opens the journal for the duration of fn. The commands that
// read history use this rather than holding a long-lived connection.
func (c *commandContext) withStore(fn func(cfg *config.Config, store *journal.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := journal.Open(journal.DefaultPath(cfg.Paths.LogDir))
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(cfg, store)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
