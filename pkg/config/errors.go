package config

import (
	"strings"

	"github.com/robotalks/gasbridge/pkg/framework"
)

// Error lists every problem found in the configuration.
type Error struct {
	framework.AggregatedError
}

// NewError creates an Error from problems.
func NewError(problems ...error) *Error {
	e := &Error{}
	e.Add(problems...)
	return e
}

// Error implements error.
func (e *Error) Error() string {
	msgs := make([]string, len(e.Errors))
	for n, err := range e.Errors {
		msgs[n] = err.Error()
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}
