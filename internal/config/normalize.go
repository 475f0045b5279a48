package config

import "strings"

// LogLevel enumerates supported logging levels (mapped to slog).
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// NormalizeLogLevel maps raw input to a supported level, defaulting to info.
func NormalizeLogLevel(raw string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// LogFormat enumerates supported log output formats.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

// NormalizeLogFormat maps raw input to a supported format, defaulting to text.
func NormalizeLogFormat(raw string) LogFormat {
	if strings.ToLower(strings.TrimSpace(raw)) == "json" {
		return LogFormatJSON
	}
	return LogFormatText
}

// ReleasePolicy selects which fetched release counts as "latest".
type ReleasePolicy string

const (
	// PolicyStable treats the second-most-recent release as latest. The newest
	// tag is assumed to be staged and not yet published.
	PolicyStable ReleasePolicy = "stable"
	// PolicyNewest treats the most recent release as latest.
	PolicyNewest ReleasePolicy = "newest"
)

// NormalizeReleasePolicy maps raw input to a supported policy, defaulting to stable.
func NormalizeReleasePolicy(raw string) ReleasePolicy {
	if strings.ToLower(strings.TrimSpace(raw)) == "newest" {
		return PolicyNewest
	}
	return PolicyStable
}
