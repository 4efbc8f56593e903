package config

const (
	defaultStorageRoot           = "~/.local/share/mediafold/uploads"
	defaultDataDir               = "~/.local/share/mediafold"
	defaultLogDir                = "~/.local/share/mediafold/logs"
	defaultSiteURL               = "http://localhost"
	defaultUploadsPath           = "/wp-content/uploads"
	defaultGroupingTaxonomy      = "category"
	defaultPostIdentifier        = "slug"
	defaultURLStyle              = "relative"
	defaultSweepMinAgeHours      = 24
	defaultFetchTimeoutSeconds   = 30
	defaultFetchMaxBytes         = 20 << 20
	defaultRequestsPerSecond     = 2.0
	defaultBreakerMaxFailures    = 5
	defaultBreakerTimeoutSeconds = 60
	defaultLocalizeUserAgent     = "mediafold/dev"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultIncludeContentType    = true
	defaultUseDateFolders        = false
	defaultDeleteOrphansOnDelete = true
	defaultLocalizeEnabled       = true
	defaultLockRetryMilliseconds = 50
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StorageRoot: defaultStorageRoot,
			DataDir:     defaultDataDir,
			LogDir:      defaultLogDir,
		},
		Site: Site{
			URL:         defaultSiteURL,
			UploadsPath: defaultUploadsPath,
		},
		Layout: Layout{
			IncludeContentType: defaultIncludeContentType,
			GroupingTaxonomy:   defaultGroupingTaxonomy,
			UseDateFolders:     defaultUseDateFolders,
			PostIdentifier:     defaultPostIdentifier,
			URLStyle:           defaultURLStyle,
		},
		Orphans: Orphans{
			DeleteOnContentDelete: defaultDeleteOrphansOnDelete,
			SweepMinAgeHours:      defaultSweepMinAgeHours,
		},
		Localize: Localize{
			Enabled:               defaultLocalizeEnabled,
			FetchTimeoutSeconds:   defaultFetchTimeoutSeconds,
			MaxBytes:              defaultFetchMaxBytes,
			RequestsPerSecond:     defaultRequestsPerSecond,
			BreakerMaxFailures:    defaultBreakerMaxFailures,
			BreakerTimeoutSeconds: defaultBreakerTimeoutSeconds,
			UserAgent:             defaultLocalizeUserAgent,
		},
		Locking: Locking{
			RetryMilliseconds: defaultLockRetryMilliseconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
