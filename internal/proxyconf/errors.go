package proxyconf

import (
	"errors"
	"fmt"
)

// ErrUnsupportedType is returned by a Handler when asked to perform a
// handshake for a proxy type it cannot drive.
var ErrUnsupportedType = errors.New("proxyconf: unsupported proxy type")

// ConfigurationError reports a builder field that is missing or invalid.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("proxyconf: invalid %s: %s", e.Field, e.Reason)
}

// PatternCompileError reports a non-proxy hosts pattern that could not be
// compiled into a matcher.
type PatternCompileError struct {
	Pattern string
	Entry   string
	Err     error
}

func (e *PatternCompileError) Error() string {
	if e.Entry == "" {
		return fmt.Sprintf("proxyconf: bad non-proxy hosts pattern %q: %v", e.Pattern, e.Err)
	}
	return fmt.Sprintf("proxyconf: bad non-proxy hosts entry %q in %q: %v", e.Entry, e.Pattern, e.Err)
}

func (e *PatternCompileError) Unwrap() error { return e.Err }
