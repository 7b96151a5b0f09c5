package config

const (
	defaultConfigPath         = "~/.config/scoredesk/config.toml"
	defaultBaseURL            = "http://127.0.0.1:8000/api/v1"
	defaultTimeoutSeconds     = 15
	defaultMaxPathAttempts    = 6
	defaultUserAgent          = "scoredesk/dev"
	defaultSyncIntervalMS     = 2000
	defaultSyncRequestTimeout = 10
	defaultSyncMaxAttempts    = 900
	defaultSyncMaxDuration    = 1800
	defaultStateDir           = "~/.local/share/scoredesk"
	defaultLogDir             = "~/.local/share/scoredesk/logs"
	defaultCacheRetentionDays = 30
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"

	tokenEnvVar   = "SCOREDESK_API_TOKEN"
	baseURLEnvVar = "SCOREDESK_API_BASE_URL"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		API: API{
			BaseURL:         defaultBaseURL,
			TimeoutSeconds:  defaultTimeoutSeconds,
			MaxPathAttempts: defaultMaxPathAttempts,
			UserAgent:       defaultUserAgent,
		},
		Sync: Sync{
			IntervalMS:            defaultSyncIntervalMS,
			RequestTimeoutSeconds: defaultSyncRequestTimeout,
			MaxAttempts:           defaultSyncMaxAttempts,
			MaxDurationSeconds:    defaultSyncMaxDuration,
			StopOnBlocking:        true,
		},
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Cache: Cache{
			Enabled:       true,
			RetentionDays: defaultCacheRetentionDays,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
