package info

const (
	AppName = "tracevis"
	Version = "0.1.0"

	DefaultConfigDir = "./.tracevis"
	// EnvPrefix is prefix of environment variables read by viper.
	// example: TRACEVIS_LOCK_TIMEOUT=500ms
	EnvPrefix = "TRACEVIS"
	// MetricsNamespace is namespace of the all prometheus metrics.
	MetricsNamespace = "tracevis"
)
