package parser

import (
	"errors"
	"fmt"
	"time"
)

// ErrYearOutOfRange marks a date that parsed cleanly but lies beyond
// next year. Such dates are corrupt carrier data and abort the whole
// file instead of dropping the row.
var ErrYearOutOfRange = errors.New("event year out of range")

// ParseError represents a parsing error with sheet-level context
type ParseError struct {
	File     string    `json:"file"`
	Sheet    string    `json:"sheet,omitempty"`
	Row      int       `json:"row,omitempty"`
	Message  string    `json:"message"`
	Cause    error     `json:"cause,omitempty"`
	Occurred time.Time `json:"occurred"`
}

func (e *ParseError) Error() string {
	if e.Sheet != "" && e.Row > 0 {
		return fmt.Sprintf("parse error at %s[%s]:%d: %s", e.File, e.Sheet, e.Row, e.Message)
	}
	if e.Sheet != "" {
		return fmt.Sprintf("parse error in %s[%s]: %s", e.File, e.Sheet, e.Message)
	}
	return fmt.Sprintf("parse error in %s: %s", e.File, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// NewParseError creates a new ParseError with context
func NewParseError(file, sheet string, row int, message string) *ParseError {
	return &ParseError{
		File:     file,
		Sheet:    sheet,
		Row:      row,
		Message:  message,
		Occurred: time.Now(),
	}
}

// NewHeaderError reports that no header row scored above the carrier
// threshold in any sheet of the file.
func NewHeaderError(file string, carrier Carrier) *ParseError {
	return &ParseError{
		File:     file,
		Message:  fmt.Sprintf("no %s header row detected in any sheet", carrier),
		Occurred: time.Now(),
	}
}

// FileError represents file-level errors (opening, reading, etc.)
type FileError struct {
	Path     string    `json:"path"`
	Op       string    `json:"operation"` // "open", "read", "decode", etc.
	Cause    error     `json:"cause,omitempty"`
	Message  string    `json:"message"`
	Occurred time.Time `json:"occurred"`
}

func (e *FileError) Error() string {
	return fmt.Sprintf("file %s error: %s", e.Op, e.Message)
}

func (e *FileError) Unwrap() error {
	return e.Cause
}

// NewFileError creates a new FileError
func NewFileError(path, op, message string, cause error) *FileError {
	return &FileError{
		Path:     path,
		Op:       op,
		Message:  message,
		Cause:    cause,
		Occurred: time.Now(),
	}
}

// DateError represents date parsing errors for one raw value
type DateError struct {
	Carrier  Carrier   `json:"carrier"`
	Value    string    `json:"value"`
	Message  string    `json:"message"`
	Cause    error     `json:"cause,omitempty"`
	Occurred time.Time `json:"occurred"`
}

func (e *DateError) Error() string {
	return fmt.Sprintf("%s date error: %s: %q", e.Carrier, e.Message, e.Value)
}

func (e *DateError) Unwrap() error {
	return e.Cause
}

// NewDateError creates a new DateError
func NewDateError(carrier Carrier, value, message string) *DateError {
	return &DateError{
		Carrier:  carrier,
		Value:    value,
		Message:  message,
		Occurred: time.Now(),
	}
}

// newFutureDateError wraps ErrYearOutOfRange so callers can both
// inspect the raw value and match the sentinel with errors.Is.
func newFutureDateError(carrier Carrier, value string, year int) *DateError {
	return &DateError{
		Carrier:  carrier,
		Value:    value,
		Message:  fmt.Sprintf("year %d is past the accepted horizon", year),
		Cause:    ErrYearOutOfRange,
		Occurred: time.Now(),
	}
}
