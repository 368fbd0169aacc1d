package logging

import (
	"log/slog"
	"net/url"
)

// RedactedURL wraps a url.URL for logging without exposing sensitive information
type RedactedURL struct {
	url *url.URL
}

// LogValue implements slog.LogValuer to avoid revealing embedded credentials
func (u RedactedURL) LogValue() slog.Value {
	return slog.StringValue(u.url.Redacted())
}

// RedactURL returns a safely loggable URL value
func RedactURL(url *url.URL) RedactedURL {
	return RedactedURL{url: url}
}

// AbbreviatedSessionID is a session identifier abbreviated for logging.
// Full session IDs are bearer credentials and must never appear in logs.
type AbbreviatedSessionID string

// LogValue implements slog.LogValuer, keeping only a short prefix
func (s AbbreviatedSessionID) LogValue() slog.Value {
	const keep = 8
	if len(s) <= keep {
		return slog.StringValue(string(s))
	}
	return slog.StringValue(string(s[:keep]) + "…")
}

// SessionID returns a safely loggable session identifier
func SessionID(id string) AbbreviatedSessionID {
	return AbbreviatedSessionID(id)
}
