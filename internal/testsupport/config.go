package testsupport

import (
	"path/filepath"
	"testing"

	"scoredesk/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Sync timing is shortened so watches settle quickly.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.API.Token = "test-token"
	cfgVal.API.BaseURL = "http://127.0.0.1:0/api/v1"
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Sync.IntervalMS = 5
	cfgVal.Sync.RequestTimeoutSeconds = 2
	cfgVal.Sync.MaxAttempts = 200
	cfgVal.Sync.MaxDurationSeconds = 10

	builder := &configBuilder{t: t, baseDir: base, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}
	if err := builder.cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return builder.cfg
}

// WithBaseURL points the config at a fake backend.
func WithBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.API.BaseURL = url
	}
}

// WithSync overrides the synchronization ceilings.
func WithSync(intervalMS, maxAttempts int, stopOnBlocking bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sync.IntervalMS = intervalMS
		b.cfg.Sync.MaxAttempts = maxAttempts
		b.cfg.Sync.StopOnBlocking = stopOnBlocking
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
