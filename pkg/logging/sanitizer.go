package logging

import (
	"regexp"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ingest/pkg/models"
)

const (
	// MaxDetailLogLength is the maximum length of a backend message to log
	MaxDetailLogLength = 200
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
)

var (
	// Matches: password=xxx, pwd=xxx, pass=xxx (until next delimiter)
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// Matches "password": "xxx" inside JSON bodies echoed back by the backend
	jsonPasswordPattern = regexp.MustCompile(`(?i)("password"\s*:\s*)"[^"]*"`)

	// Pattern to match JWT tokens (three base64 segments separated by dots)
	jwtPattern = regexp.MustCompile(`Bearer\s+[A-Za-z0-9-_]+\.[A-Za-z0-9-_]+\.[A-Za-z0-9-_]*`)

	// Pattern to match connection string credentials (user:pass@host format)
	connStringPattern = regexp.MustCompile(`://[^:]+:[^@]+@[^/\s]+`)
)

// SanitizeError sanitizes error messages that might contain sensitive data.
// Use this before logging any error that may echo a descriptor or header.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return sanitize(err.Error())
}

// SanitizeDetail truncates and sanitizes a backend response body or detail
// message for logging.
func SanitizeDetail(detail string) string {
	if detail == "" {
		return ""
	}
	return TruncateString(sanitize(detail), MaxDetailLogLength)
}

func sanitize(s string) string {
	s = passwordPattern.ReplaceAllString(s, "${1}="+RedactedText)
	s = jsonPasswordPattern.ReplaceAllString(s, `${1}"`+RedactedText+`"`)
	s = jwtPattern.ReplaceAllString(s, "Bearer "+RedactedText)
	s = connStringPattern.ReplaceAllString(s, "://"+RedactedText+"@"+RedactedText)
	return s
}

// RedactConfig returns a copy of cfg that is safe to log or display.
// A non-empty password becomes RedactedText; an empty one stays empty so the
// caller can still see that it is missing.
func RedactConfig(cfg models.DatabaseConfig) models.DatabaseConfig {
	if cfg.Password != "" {
		cfg.Password = RedactedText
	}
	return cfg
}

// SourceFields returns zap fields describing a descriptor without secrets.
func SourceFields(desc models.SourceDescriptor) []zap.Field {
	fields := []zap.Field{zap.String("source_kind", string(desc.Kind))}
	if desc.Kind == models.SourceKindFile {
		return append(fields, zap.String("file_ref", desc.FileRef))
	}
	fields = append(fields, zap.String("engine", string(desc.Engine)))
	if desc.Database != nil {
		fields = append(fields,
			zap.String("host", desc.Database.Host),
			zap.String("port", desc.Database.Port),
			zap.String("database", desc.Database.Database),
			zap.String("table", desc.Database.Table),
		)
	}
	return fields
}

// TruncateString truncates a string to maxLen and adds ellipsis if needed
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
