package config

const (
	defaultDataDir          = "~/.local/share/calldesk"
	defaultLogDir           = "~/.local/share/calldesk/logs"
	defaultSocketPath       = "~/.local/share/calldesk/calldeskd.sock"
	defaultAPIBind          = "127.0.0.1:7519"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 60

	defaultPollInterval       = 15
	defaultRetryFlushInterval = 30
	defaultMergeWindowHours   = 24
	defaultSLAThresholdMin    = 30
	defaultFeedPingInterval   = 30
	defaultStoreBusyTimeout   = 5000
	defaultNotifyTimeout      = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			LogDir:     defaultLogDir,
			SocketPath: defaultSocketPath,
			APIBind:    defaultAPIBind,
		},
		Store: Store{
			BusyTimeoutMillis: defaultStoreBusyTimeout,
		},
		Ingest: Ingest{
			PollInterval:       defaultPollInterval,
			RetryFlushInterval: defaultRetryFlushInterval,
			MergeWindowHours:   defaultMergeWindowHours,
		},
		SLA: SLA{
			ThresholdMinutes: defaultSLAThresholdMin,
		},
		Feed: Feed{
			PingInterval: defaultFeedPingInterval,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			SLA:            true,
			MultiAgent:     true,
			Errors:         true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
