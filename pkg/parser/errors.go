package parser

import (
	"errors"
	"fmt"
)

// Parse failure kinds. A *ParseError unwraps to exactly one of these.
var (
	ErrEmptyInput        = errors.New("empty curl command")
	ErrMissingValue      = errors.New("missing value for flag")
	ErrMalformedHeader   = errors.New("invalid header format")
	ErrMissingURL        = errors.New("no URL found in curl command")
	ErrUnsupportedMethod = errors.New("unsupported HTTP method")

	ErrUnsupportedFeature = errors.New("unsupported feature")
)

// ParseError reports a malformed curl command.
type ParseError struct {
	Kind   error
	Detail string // offending flag, header or method; may be empty
}

func (e *ParseError) Error() string {
	if e.Detail == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *ParseError) Unwrap() error {
	return e.Kind
}

// UnsupportedFeatureError reports a curl feature that is recognized but not
// implemented, as opposed to a malformed command.
type UnsupportedFeatureError struct {
	Flag    string
	Feature string
}

func (e *UnsupportedFeatureError) Error() string {
	return fmt.Sprintf("%s (%s) is not supported", e.Feature, e.Flag)
}

func (e *UnsupportedFeatureError) Unwrap() error {
	return ErrUnsupportedFeature
}

func parseErr(kind error, detail string) error {
	return &ParseError{Kind: kind, Detail: detail}
}
