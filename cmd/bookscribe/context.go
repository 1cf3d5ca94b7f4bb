package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"bookscribe/internal/config"
	"bookscribe/internal/library"
	"bookscribe/internal/logging"
	"bookscribe/internal/speed"
	"bookscribe/internal/transcriber"
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

// openTranscriber builds an in-process facade for one command invocation.
// The returned cleanup closes the speed store.
func (c *commandContext) openTranscriber() (*transcriber.Transcriber, func(), error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	lib, err := library.New(cfg.Paths.LibraryDir)
	if err != nil {
		return nil, nil, err
	}
	store, err := speed.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	tr := transcriber.New(cfg, lib, store, logging.NewNop())
	return tr, func() { _ = store.Close() }, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
