package model

import (
	"errors"
	"fmt"
)

// ErrorClass classifies reconcile errors by how far they propagate
type ErrorClass int

const (
	// ClassPerItem errors affect one removal, create or file and are counted as handled
	ClassPerItem ErrorClass = iota
	// ClassFatalToPass errors abort the pass, which still signals completion
	ClassFatalToPass
	// ClassIgnorable errors are dropped silently
	ClassIgnorable
)

// String returns the string representation of ErrorClass
func (c ErrorClass) String() string {
	switch c {
	case ClassPerItem:
		return "per-item"
	case ClassFatalToPass:
		return "fatal-to-pass"
	case ClassIgnorable:
		return "ignorable"
	default:
		return "unknown"
	}
}

var (
	// ErrStoreTimeout is reported when a registry call does not complete within the store timeout
	ErrStoreTimeout = errors.New("registry call timed out")
	// ErrDefinitionNotFound is returned by registry lookups for a missing definition
	ErrDefinitionNotFound = errors.New("tunnel definition not found")
	// ErrInvalidConfig wraps every validation failure of a tunnel config file
	ErrInvalidConfig = errors.New("invalid tunnel configuration")
	// ErrTunnelNotFound is returned when a control intent names a tunnel absent from the index
	ErrTunnelNotFound = errors.New("tunnel not found")
	// ErrConfigDir is returned when the config directory cannot be prepared
	ErrConfigDir = errors.New("config directory unavailable")
	// ErrUnknownBackend is returned for an unsupported registry backend name
	ErrUnknownBackend = errors.New("unknown registry backend")
)

// ReconcileError is an error raised during a reconcile pass
type ReconcileError struct {
	Class ErrorClass
	// Op is the failing step (list, remove, scan, read, parse, create)
	Op string
	// Target is the file path or tunnel name involved, if any
	Target string
	Err    error
}

func (e *ReconcileError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Op, e.Target, e.Err)
}

func (e *ReconcileError) Unwrap() error {
	return e.Err
}

// NewReconcileError creates a ReconcileError
func NewReconcileError(class ErrorClass, op, target string, err error) *ReconcileError {
	return &ReconcileError{Class: class, Op: op, Target: target, Err: err}
}

// ClassOf returns the class of err, defaulting to ClassPerItem for unclassified errors
func ClassOf(err error) ErrorClass {
	var re *ReconcileError
	if errors.As(err, &re) {
		return re.Class
	}
	return ClassPerItem
}

// IsFatalToPass reports whether err aborted a reconcile pass
func IsFatalToPass(err error) bool {
	return err != nil && ClassOf(err) == ClassFatalToPass
}
