package config

import (
	"fmt"
	"strings"
)

// ConfigurationError reports settings that could not be resolved into a
// complete configuration. It is returned before any monitoring starts.
type ConfigurationError struct {
	// Missing lists required fields with no effective value.
	Missing []string

	cause error
}

func (e *ConfigurationError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("incomplete email configuration: missing %s", strings.Join(e.Missing, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("invalid email configuration: %v", e.cause)
	}
	return "invalid email configuration"
}

func (e *ConfigurationError) Unwrap() error {
	return e.cause
}
