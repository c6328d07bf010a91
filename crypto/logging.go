package crypto

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// LoggerHelper builds failure logs with the crypto package's standard fields.
type LoggerHelper struct {
	function string
	pkg      string
	fields   logrus.Fields
}

// NewLogger creates a new logger helper with standardized fields
func NewLogger(function string) *LoggerHelper {
	return &LoggerHelper{
		function: function,
		pkg:      "crypto",
		fields: logrus.Fields{
			"function": function,
			"package":  "crypto",
		},
	}
}

// WithFields adds multiple custom fields to the logger
func (l *LoggerHelper) WithFields(fields logrus.Fields) *LoggerHelper {
	for k, v := range fields {
		l.fields[k] = v
	}
	return l
}

// WithError adds error information to the logger
func (l *LoggerHelper) WithError(err error, errorType, operation string) *LoggerHelper {
	l.fields["error"] = err.Error()
	l.fields["error_type"] = errorType
	l.fields["operation"] = operation
	return l
}

// Debug logs a debug message
func (l *LoggerHelper) Debug(message string) {
	logrus.WithFields(l.fields).Debug(message)
}

// Warn logs a warning message
func (l *LoggerHelper) Warn(message string) {
	logrus.WithFields(l.fields).Warn(message)
}

// KeyPrefix renders the first 8 bytes of a key for logging.
func KeyPrefix(key []byte) string {
	if len(key) > 8 {
		key = key[:8]
	}
	return fmt.Sprintf("%x", key)
}

// HexPrefix shortens a hex encoded key for logging.
func HexPrefix(s string) string {
	if len(s) > 16 {
		return s[:16]
	}
	return s
}

// SecureFieldHash creates a preview of sensitive data for logging.
// This shows only the first 8 bytes of sensitive data for debugging purposes
func SecureFieldHash(data []byte, name string) logrus.Fields {
	preview := "nil"
	if len(data) > 0 {
		preview = KeyPrefix(data)
		if len(data) > 8 {
			preview += "..."
		}
	}

	return logrus.Fields{
		name + "_preview": preview,
		name + "_size":    len(data),
	}
}
