package main

import (
	"fmt"
	"sync"

	"github.com/MimeLyc/hardsub-pipeline/internal/config"
	"github.com/MimeLyc/hardsub-pipeline/pkg/log"
)

type commandContext struct {
	configOnce sync.Once
	config     *config.Config
	configErr  error

	logLevel string // --log-level, overrides LOG_LEVEL when set
	logFile  *log.FileLogger
}

func newCommandContext() *commandContext {
	return &commandContext{}
}

// ensureConfig loads the environment and settings file once per process and
// sets up the global logger from LOG_LEVEL and LOG_FILE.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			c.configErr = err
			return
		}
		level := log.ParseLevel(cfg.System.LogLevel)
		if cfg.System.LogFile != "" {
			fileLogger, err := log.NewFileLogger(cfg.System.LogFile, level)
			if err != nil {
				c.configErr = fmt.Errorf("LOG_FILE: %w", err)
				return
			}
			c.logFile = fileLogger
			log.SetLogger(fileLogger.Logger)
		} else {
			log.InitLogger(level)
		}
		c.config = cfg
	})
	if c.configErr == nil && c.logLevel != "" {
		log.GetLogger().SetLevel(log.ParseLevel(c.logLevel))
	}
	return c.config, c.configErr
}

// configWith returns the loaded configuration with command line overrides.
func (c *commandContext) configWith(opts ...config.Option) (*config.Config, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return cfg.With(opts...)
}

// close releases the log file, if one was opened.
func (c *commandContext) close() {
	if c.logFile == nil {
		return
	}
	if err := c.logFile.Close(); err != nil {
		fmt.Printf("close log file: %v\n", err)
	}
	c.logFile = nil
}
