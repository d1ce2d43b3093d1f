package formats

import (
	"errors"
	"fmt"
)

// Shared import errors.
var (
	ErrUnsupportedFormat = errors.New("unsupported scene file format")
	ErrEmptyFile         = errors.New("empty scene file")
)

// ParseError is a fatal error tied to a file and, when known, a line.
type ParseError struct {
	File string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func parseErr(file string, line int, err error) error {
	return &ParseError{File: file, Line: line, Err: err}
}
