package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"scoredesk/internal/cache"
	"scoredesk/internal/config"
	"scoredesk/internal/logging"
	"scoredesk/internal/remote"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger

	clientOnce sync.Once
	client     *remote.Client

	storeOnce sync.Once
	store     *cache.Store
	storeErr  error
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
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

// log returns the process logger. Commands log to stderr and the log file so
// stdout stays reserved for command output.
func (c *commandContext) log() *slog.Logger {
	c.loggerOnce.Do(func() {
		logger, err := logging.NewFromConfig(c.config)
		if err != nil {
			logger, _ = logging.New(logging.Options{Level: "info", Format: "console", OutputPaths: []string{"stderr"}})
		}
		c.logger = logger
	})
	return c.logger
}

func (c *commandContext) remoteClient() *remote.Client {
	c.clientOnce.Do(func() {
		c.client = remote.NewFromConfig(c.config, c.log())
	})
	return c.client
}

// cacheStore returns the local cache, or nil when it is disabled. A cache
// that cannot be opened is logged and treated as disabled.
func (c *commandContext) cacheStore() *cache.Store {
	c.storeOnce.Do(func() {
		if c.config == nil || !c.config.Cache.Enabled {
			return
		}
		c.store, c.storeErr = cache.Open(c.config)
		if c.storeErr != nil {
			logging.WarnWithContext(c.log(), "local cache unavailable", "cache_open_failed",
				"check paths.state_dir or set cache.enabled = false", logging.Error(c.storeErr))
		}
	})
	return c.store
}

func (c *commandContext) requireStore() (*cache.Store, error) {
	if store := c.cacheStore(); store != nil {
		return store, nil
	}
	if c.storeErr != nil {
		return nil, fmt.Errorf("open cache: %w", c.storeErr)
	}
	return nil, errors.New("local cache is disabled (cache.enabled = false)")
}

func (c *commandContext) close() error {
	if c.store != nil {
		err := c.store.Close()
		c.store = nil
		return err
	}
	return nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func parseID(value, what string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", what, value)
	}
	return id, nil
}

func parseIDs(values []string, what string) ([]int64, error) {
	ids := make([]int64, 0, len(values))
	for _, value := range values {
		id, err := parseID(value, what)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
