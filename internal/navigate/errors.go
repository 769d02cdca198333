// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package navigate

import (
	"errors"
	"fmt"
)

// Sentinel errors matched by NavError through errors.Is.
var (
	ErrChallengeUnresolved = errors.New("challenge unresolved")
	ErrBlocked             = errors.New("blocked")
	ErrTransport           = errors.New("transport error")
)

// Kind tags a navigation failure.
type Kind int

const (
	KindChallengeTimeout Kind = iota + 1
	KindBlocked
	KindTransport
)

// String returns the triage tag recorded with failed results.
func (k Kind) String() string {
	switch k {
	case KindChallengeTimeout:
		return "challenge-timeout"
	case KindBlocked:
		return "blocked"
	case KindTransport:
		return "transport-error"
	}
	return "unknown"
}

func (k Kind) sentinel() error {
	switch k {
	case KindChallengeTimeout:
		return ErrChallengeUnresolved
	case KindBlocked:
		return ErrBlocked
	case KindTransport:
		return ErrTransport
	}
	return nil
}

// NavError is the only error type Navigate returns, apart from context errors.
type NavError struct {
	Kind     Kind
	URL      string
	Attempts int

	// Err is the last underlying cause, if any (e.g. the transport error).
	Err error
}

func (e *NavError) Error() string {
	msg := fmt.Sprintf("%s: %s after %d attempt(s)", e.Kind, e.URL, e.Attempts)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches the sentinel for e.Kind.
func (e *NavError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func (e *NavError) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or 0 if err is not a NavError.
func KindOf(err error) Kind {
	var ne *NavError
	if errors.As(err, &ne) {
		return ne.Kind
	}
	return 0
}
