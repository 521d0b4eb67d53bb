// Package redact removes sensitive fragments from strings before they are
// persisted as task error messages or returned to clients. Extraction
// engines fail with messages that routinely embed staging paths, binary
// locations, and occasionally connection details; none of that belongs in a
// production-facing error_message.
package redact

import "regexp"

// Redaction placeholders
const (
	RedactedPathPlaceholder       = "[REDACTED_PATH]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedHostPlaceholder       = "[REDACTED_HOST]"
)

// Precompiled redaction patterns
var (
	// Database/broker connection strings with inline credentials
	connStringRegex = regexp.MustCompile(`(?i)(postgres|redis|mysql|sqlite|db|database)://[^@\s]+@`)

	// File paths
	unixPathRegex = regexp.MustCompile(`(/[\w.-]+){2,}`)
	winPathRegex  = regexp.MustCompile(`[A-Za-z]:\\[^\\]+(\\[^\\]+)+`)

	// Stack trace fragments from recovered panics
	stackTraceRegex = regexp.MustCompile(`(?:goroutine \d+|panic:)[\s\S]*?(\n\t.*)+`)

	// host:port fragments (broker or database endpoints). The port is
	// mandatory so bare dotted names like a filename in an extractor error
	// are left alone.
	hostPortRegex = regexp.MustCompile(
		`\b(?:localhost|(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}):\d{1,5}\b`,
	)

	patterns = []*regexp.Regexp{
		connStringRegex, unixPathRegex, winPathRegex, stackTraceRegex, hostPortRegex,
	}

	patternPlaceholders = map[*regexp.Regexp]string{
		connStringRegex: RedactedCredentialPlaceholder,
		unixPathRegex:   RedactedPathPlaceholder,
		winPathRegex:    RedactedPathPlaceholder,
		stackTraceRegex: "[STACK_TRACE_REDACTED]",
		hostPortRegex:   RedactedHostPlaceholder,
	}
)

// String redacts sensitive information from the input string
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, pattern := range patterns {
		result = pattern.ReplaceAllString(result, patternPlaceholders[pattern])
	}

	return result
}

// Error redacts sensitive information from an error's Error() output
func Error(err error) string {
	if err == nil {
		return ""
	}

	return String(err.Error())
}
