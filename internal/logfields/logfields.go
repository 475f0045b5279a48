package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyVersion    = "version"
	KeyTag        = "tag"
	KeyBranch     = "branch"
	KeyRepo       = "repository"
	KeyPath       = "path"
	KeyURL        = "url"
	KeyStage      = "stage"
	KeyJobID      = "job_id"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Version(v string) slog.Attr      { return slog.String(KeyVersion, v) }
func Tag(t string) slog.Attr          { return slog.String(KeyTag, t) }
func Branch(b string) slog.Attr       { return slog.String(KeyBranch, b) }
func Repository(r string) slog.Attr   { return slog.String(KeyRepo, r) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func JobID(id string) slog.Attr       { return slog.String(KeyJobID, id) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
