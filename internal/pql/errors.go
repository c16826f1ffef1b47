package pql

import (
	"errors"
	"fmt"
)

// UnsupportedError marks a plan node, expression or configuration
// combination outside the translatable subset. It aborts the pushdown
// attempt; the caller falls back to local execution, so hitting one is
// expected and benign.
type UnsupportedError struct {
	// Reason is a human-readable description of what could not be
	// translated.
	Reason string

	// Node is the offending plan node or expression, when available.
	Node any
}

func (e *UnsupportedError) Error() string {
	if e.Node != nil {
		return fmt.Sprintf("unsupported pushdown: %s (node %T)", e.Reason, e.Node)
	}
	return "unsupported pushdown: " + e.Reason
}

// InvalidArgumentError marks a malformed query argument (e.g. a
// percentile fraction outside [0, 1]). It is handled like
// UnsupportedError at the translation boundary but stays
// distinguishable in diagnostics.
type InvalidArgumentError struct {
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return "invalid argument: " + e.Reason
}

// IsUnsupported reports whether err is an unsupported-construct
// rejection. Uses errors.As to handle wrapped errors.
func IsUnsupported(err error) bool {
	var ue *UnsupportedError
	return errors.As(err, &ue)
}

// IsInvalidArgument reports whether err is a malformed-argument
// rejection. Uses errors.As to handle wrapped errors.
func IsInvalidArgument(err error) bool {
	var ie *InvalidArgumentError
	return errors.As(err, &ie)
}

func unsupportedf(node any, format string, args ...any) error {
	return &UnsupportedError{Reason: fmt.Sprintf(format, args...), Node: node}
}

func invalidArgumentf(format string, args ...any) error {
	return &InvalidArgumentError{Reason: fmt.Sprintf(format, args...)}
}
