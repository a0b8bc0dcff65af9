package speechmine

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is wrapped by every *ConfigError.
	ErrInvalidConfig = errors.New("invalid search configuration")
	// ErrInvariant is wrapped by every *InvariantError.
	ErrInvariant = errors.New("transcript invariant violated")
	// ErrNotFound is returned by transcript lookups that address a missing utterance or word.
	ErrNotFound = errors.New("not found")
)

// ConfigError reports which option was rejected and why.
type ConfigError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%v: %s %s (got %v)", ErrInvalidConfig, e.Field, e.Reason, e.Value)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

// InvariantError reports a transcript that cannot be searched safely.
// Subject is "word" or "utterance" and Index is its position in the input.
type InvariantError struct {
	Subject string
	Index   int
	Reason  string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%v: %s %d %s", ErrInvariant, e.Subject, e.Index, e.Reason)
}

func (e *InvariantError) Unwrap() error { return ErrInvariant }

func wordInvariant(i int, format string, args ...any) error {
	return &InvariantError{Subject: "word", Index: i, Reason: fmt.Sprintf(format, args...)}
}

func utteranceInvariant(i int, format string, args ...any) error {
	return &InvariantError{Subject: "utterance", Index: i, Reason: fmt.Sprintf(format, args...)}
}
