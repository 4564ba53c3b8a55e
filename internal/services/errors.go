package services

import (
	"errors"
	"fmt"
)

// ErrDivisionByZero is returned by ratio when a metric has no denominator.
var ErrDivisionByZero = errors.New("division by zero")

// LoadError reports a dataset that could not be loaded at all: the file is
// missing or unreadable, empty, structurally broken, or lacks a required
// column. No partial dataset accompanies it.
type LoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("load dataset %q: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("load dataset %q: %s", e.Path, e.Reason)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// ParseError reports a field that could not be parsed. Row is the 1-based
// data row (the header is row 0).
type ParseError struct {
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("row %d: %v", e.Row, e.Err)
	}
	return fmt.Sprintf("row %d: column %q: cannot parse %q: %v", e.Row, e.Column, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsDatasetError reports whether err came from loading or parsing the
// dataset.
func IsDatasetError(err error) bool {
	var le *LoadError
	var pe *ParseError
	return errors.As(err, &le) || errors.As(err, &pe)
}
