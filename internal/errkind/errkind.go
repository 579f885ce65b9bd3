// Package errkind classifies controller failures so callers can decide how
// to react without matching on message text.
package errkind

import (
	"errors"
	"fmt"
)

type Kind int

const (
	Unknown Kind = iota
	// Configuration errors are fatal at startup.
	Configuration
	// ContainerControl errors abort the cycle. Resume is still attempted.
	ContainerControl
	// Archive errors abort the snapshot of one volume.
	Archive
	// Transport errors abort the cycle and leave local temp state behind.
	Transport
	// Policy is reserved. Retention selection is total and never produces it.
	Policy
)

func (k Kind) String() string {
	switch k {
	case Configuration:
		return "configuration"
	case ContainerControl:
		return "container-control"
	case Archive:
		return "archive"
	case Transport:
		return "transport"
	case Policy:
		return "policy"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap tags err with kind. A nil err stays nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func Errorf(kind Kind, op string, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Retryable reports whether a later attempt may succeed without operator
// intervention. Only transport failures qualify.
func Retryable(err error) bool {
	return Is(err, Transport)
}
