package config

const (
	defaultDataDir             = "~/.local/share/picshrink"
	defaultLogDir              = "~/.local/share/picshrink/logs"
	defaultTargetFormat        = "avif"
	defaultQuality             = 90
	defaultMinWidth            = -1
	defaultThreadCount         = 1
	defaultBatchSize           = 1
	defaultPollIntervalMS      = 500
	defaultRecheckIntervalMS   = 2000
	defaultIdleAfterSeconds    = 100
	defaultActiveThreads       = 2
	defaultIdleThreads         = 16
	defaultBreakerConsecutive  = 3
	defaultBreakerRatio        = 0.0
	defaultPrescanSample       = 10
	defaultScanIntervalMinutes = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

func defaultSkipExtensions() []string {
	return []string{".avif", ".jxl", ".webp"}
}

func defaultKeywords() []string {
	return []string{"temp_"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Convert: RunConfig{
			TargetFormat: defaultTargetFormat,
			Quality:      defaultQuality,
			Lossless:     false,
			MinWidth:     defaultMinWidth,
		},
		Performance: Performance{
			ThreadCount:       defaultThreadCount,
			BatchSize:         defaultBatchSize,
			PollIntervalMS:    defaultPollIntervalMS,
			RecheckIntervalMS: defaultRecheckIntervalMS,
			IdleAfterSeconds:  defaultIdleAfterSeconds,
			ActiveThreads:     defaultActiveThreads,
			IdleThreads:       defaultIdleThreads,
		},
		Breaker: Breaker{
			Enabled:              true,
			ConsecutiveThreshold: defaultBreakerConsecutive,
			RatioThreshold:       defaultBreakerRatio,
		},
		Prescan: Prescan{
			SampleEntries:  defaultPrescanSample,
			SkipExtensions: defaultSkipExtensions(),
			Keywords:       defaultKeywords(),
		},
		Workflow: Workflow{
			ScanIntervalMinutes: defaultScanIntervalMinutes,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
