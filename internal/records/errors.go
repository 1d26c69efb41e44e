package records

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is.
var (
	ErrNotFound = errors.New("record file not found")
	ErrParse    = errors.New("malformed record line")
	ErrWrite    = errors.New("writing record file failed")
)

// NotFoundError is returned by Load when the record file does not exist.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("record file %s does not exist", e.Path)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ParseError names the line of the record file that could not be parsed.
type ParseError struct {
	Path   string
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("parsing line %d: %s", e.Line, e.Reason)
	}
	return fmt.Sprintf("parsing %s line %d: %s", e.Path, e.Line, e.Reason)
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// WriteError is returned by Save. The destination file is left as it was.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("saving %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

func (e *WriteError) Is(target error) bool {
	return target == ErrWrite
}
