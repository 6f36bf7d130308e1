package app

// Config holds the launch settings from the command line, as distinct from
// the broker configuration loaded from YAML (config.Config).
type Config struct {
	// Debug forces debug-level logging regardless of LogLevel.
	Debug bool

	// LogLevel names the minimum log level (debug|info|warn|error).
	LogLevel string

	// ConfigPath overrides the configuration directory. Empty means the
	// platform default (~/.config/unshub on Linux).
	ConfigPath string

	// Version is the build version injected by main. It shows up in the
	// startup log and the telemetry resource attributes.
	Version string
}

// NewConfig creates the application launch configuration.
func NewConfig(debug bool, logLevel, configPath, version string) *Config {
	return &Config{
		Debug:      debug,
		LogLevel:   logLevel,
		ConfigPath: configPath,
		Version:    version,
	}
}
