// Package faults defines the failure taxonomy for claim administration.
// Every state-changing operation is atomic: any failure aborts the whole
// operation with no partial commit, and none is retried automatically.
package faults

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for surfacing and HTTP mapping
type Kind int

const (
	// KindValidation is a business-rule violation: missing coverage, limit
	// exceeded, wrong state for the operation, missing configuration on the
	// business record. Surfaced verbatim to the actor.
	KindValidation Kind = iota

	// KindAuthorization means the actor lacks the required role, or tried
	// to approve their own claim.
	KindAuthorization

	// KindConflict is a uniqueness collision: duplicate committee vote,
	// double payment, concurrent resolution of the same claim.
	KindConflict

	// KindConfiguration means required accounting configuration is absent.
	// Surfaced with remediation text; claim state remains unchanged.
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindConflict:
		return "conflict"
	case KindConfiguration:
		return "configuration"
	default:
		return "unknown"
	}
}

// Failure carries a classified business failure
type Failure struct {
	Kind   Kind
	Msg    string
	Remedy string // actionable remediation text, set for configuration failures
}

func (f *Failure) Error() string {
	if f.Remedy != "" {
		return f.Msg + "\n\n" + f.Remedy
	}
	return f.Msg
}

// Validation creates a validation failure
func Validation(format string, args ...interface{}) error {
	return &Failure{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// Authorization creates an authorization failure
func Authorization(format string, args ...interface{}) error {
	return &Failure{Kind: KindAuthorization, Msg: fmt.Sprintf(format, args...)}
}

// Conflict creates a conflict failure
func Conflict(format string, args ...interface{}) error {
	return &Failure{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

// Configuration creates a configuration failure with remediation text
func Configuration(msg, remedy string) error {
	return &Failure{Kind: KindConfiguration, Msg: msg, Remedy: remedy}
}

// KindOf returns the failure kind and true when err is a classified failure
func KindOf(err error) (Kind, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind, true
	}
	return 0, false
}

// IsValidation reports whether err is a validation failure
func IsValidation(err error) bool { return is(err, KindValidation) }

// IsAuthorization reports whether err is an authorization failure
func IsAuthorization(err error) bool { return is(err, KindAuthorization) }

// IsConflict reports whether err is a conflict failure
func IsConflict(err error) bool { return is(err, KindConflict) }

// IsConfiguration reports whether err is a configuration failure
func IsConfiguration(err error) bool { return is(err, KindConfiguration) }

func is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
