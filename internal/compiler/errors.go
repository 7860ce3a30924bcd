package compiler

import (
	"fmt"
	"strings"
)

// ErrorType categorizes problems found while loading rails.
type ErrorType string

const (
	ErrorTypeSyntax     ErrorType = "syntax"     // malformed line
	ErrorTypeStructural ErrorType = "structural" // well-formed but not allowed (duplicate flow, empty body)
	ErrorTypeReference  ErrorType = "reference"  // undefined intent, message, guard or action
	ErrorTypeConfig     ErrorType = "config"     // config.yml problems
	ErrorTypeIO         ErrorType = "io"         // unreadable files
)

// Location is a position inside a rail file.
type Location struct {
	File   string
	Line   int // 1-based
	Column int // 1-based
}

// String formats the location as file:line:column.
func (l Location) String() string {
	if l.File == "" {
		return "<unknown>"
	}
	if l.Line == 0 {
		return l.File
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Error is a single problem with its location and an optional suggested fix.
type Error struct {
	Type       ErrorType
	Message    string
	Location   Location
	Suggestion string
}

func (e *Error) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s", e.Type, e.Message)
	if e.Location.File != "" {
		fmt.Fprintf(&sb, "\n  --> %s", e.Location)
	}
	if e.Suggestion != "" {
		fmt.Fprintf(&sb, "\n  = suggestion: %s", e.Suggestion)
	}
	return sb.String()
}

// ErrorList accumulates every problem found while loading rails instead of
// stopping at the first one. A non-empty ErrorList is a configuration load error.
type ErrorList struct {
	Errors []*Error
}

// NewErrorList creates an empty list.
func NewErrorList() *ErrorList {
	return &ErrorList{Errors: make([]*Error, 0)}
}

// Add appends an error.
func (el *ErrorList) Add(err *Error) {
	el.Errors = append(el.Errors, err)
}

// AddError creates and appends an error.
func (el *ErrorList) AddError(errType ErrorType, loc Location, format string, args ...any) {
	el.Add(&Error{Type: errType, Message: fmt.Sprintf(format, args...), Location: loc})
}

// AddErrorWithSuggestion creates and appends an error carrying a suggested fix.
func (el *ErrorList) AddErrorWithSuggestion(errType ErrorType, loc Location, suggestion, format string, args ...any) {
	el.Add(&Error{Type: errType, Message: fmt.Sprintf(format, args...), Location: loc, Suggestion: suggestion})
}

// Merge appends all errors of other.
func (el *ErrorList) Merge(other *ErrorList) {
	if other != nil {
		el.Errors = append(el.Errors, other.Errors...)
	}
}

// HasErrors reports whether any error was recorded.
func (el *ErrorList) HasErrors() bool {
	return el != nil && len(el.Errors) > 0
}

// Count returns the number of errors.
func (el *ErrorList) Count() int {
	if el == nil {
		return 0
	}
	return len(el.Errors)
}

// ByType returns all errors of the given type.
func (el *ErrorList) ByType(errType ErrorType) []*Error {
	var result []*Error
	for _, err := range el.Errors {
		if err.Type == errType {
			result = append(result, err)
		}
	}
	return result
}

func (el *ErrorList) Error() string {
	if !el.HasErrors() {
		return ""
	}
	if len(el.Errors) == 1 {
		return el.Errors[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "found %d errors:\n", len(el.Errors))
	for i, err := range el.Errors {
		fmt.Fprintf(&sb, "\n%d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// ToError returns nil for an empty list, or the list itself.
func (el *ErrorList) ToError() error {
	if !el.HasErrors() {
		return nil
	}
	return el
}
