package config

const (
	defaultWatchDir      = "~/.local/share/garpconnect/Outgoing"
	defaultProcessingDir = "~/.local/share/garpconnect/Processing"
	defaultDoneDir       = "~/.local/share/garpconnect/Done"
	defaultErrorDir      = "~/.local/share/garpconnect/Error"
	defaultLabelDir      = "~/.local/share/garpconnect/Labels"
	defaultLogDir        = "~/.local/share/garpconnect/logs"

	defaultDHLBaseURL      = "https://api.freight-logistics.dhl.com"
	defaultPostNordBaseURL = "https://api2.postnord.com/rest"

	defaultCarrierTimeout      = 30
	defaultRetryAttempts       = 3
	defaultRetryWaitSeconds    = 5
	defaultRetryMaxWaitSeconds = 60

	defaultLabelFormat    = "pdf"
	defaultSpoolerCommand = "lp"

	defaultSMTPPort = 587

	defaultQuietPeriodSeconds      = 2
	defaultStabilityTimeoutSeconds = 30
	defaultSweepIntervalSeconds    = 30

	defaultWorkers   = 2
	defaultQueueSize = 64

	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WatchDir:      defaultWatchDir,
			ProcessingDir: defaultProcessingDir,
			DoneDir:       defaultDoneDir,
			ErrorDir:      defaultErrorDir,
			LabelDir:      defaultLabelDir,
			LogDir:        defaultLogDir,
		},
		Sender: Sender{
			Country: "SE",
		},
		DHL: Carrier{
			Enabled:             true,
			BaseURL:             defaultDHLBaseURL,
			TimeoutSeconds:      defaultCarrierTimeout,
			RetryAttempts:       defaultRetryAttempts,
			RetryWaitSeconds:    defaultRetryWaitSeconds,
			RetryMaxWaitSeconds: defaultRetryMaxWaitSeconds,
		},
		PostNord: Carrier{
			BaseURL:             defaultPostNordBaseURL,
			TimeoutSeconds:      defaultCarrierTimeout,
			RetryAttempts:       defaultRetryAttempts,
			RetryWaitSeconds:    defaultRetryWaitSeconds,
			RetryMaxWaitSeconds: defaultRetryMaxWaitSeconds,
		},
		Printing: Printing{
			LabelFormat:    defaultLabelFormat,
			SpoolerCommand: defaultSpoolerCommand,
		},
		SMTP: SMTP{
			Port:     defaultSMTPPort,
			StartTLS: true,
		},
		Watcher: Watcher{
			QuietPeriodSeconds:      defaultQuietPeriodSeconds,
			StabilityTimeoutSeconds: defaultStabilityTimeoutSeconds,
			SweepIntervalSeconds:    defaultSweepIntervalSeconds,
		},
		Pipeline: Pipeline{
			Workers:   defaultWorkers,
			QueueSize: defaultQueueSize,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
