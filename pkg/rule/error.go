package rule

import (
	"errors"
	"fmt"
)

// ErrConfiguration is matched by every [*ConfigurationError].
var ErrConfiguration = errors.New("invalid module group")

// ConfigurationError describes a malformed module group. It identifies the
// rule by its index in the configuration and, where available, its name or
// selector.
type ConfigurationError struct {
	Err   error
	Rule  string
	Field string
	Index int
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("moduleGroups[%d]", e.Index)
	if e.Rule != "" {
		msg += fmt.Sprintf(" %q", e.Rule)
	}

	if e.Field != "" {
		msg += ": " + e.Field
	}

	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}
