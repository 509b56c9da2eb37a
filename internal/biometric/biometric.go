// Package biometric models the platform's biometric prompt as an awaited
// yes/no capability. The vault never sees how the user is authenticated,
// only whether the gate opened.
package biometric

import (
	"context"
	"errors"
)

// The closed set of reasons a gate may refuse.
var (
	ErrNotAvailable  = errors.New("biometric authentication not available")
	ErrNotEnrolled   = errors.New("no biometrics enrolled")
	ErrUserCancelled = errors.New("biometric prompt cancelled by user")
	ErrLockedOut     = errors.New("biometric authentication locked out")
	ErrFailed        = errors.New("biometric authentication failed")
)

// Gate prompts the user and blocks until they pass, fail or cancel.
// A nil error means the user was authenticated.
type Gate interface {
	Authenticate(ctx context.Context, reason string) error
}

// GateFunc adapts a function to Gate.
type GateFunc func(ctx context.Context, reason string) error

func (f GateFunc) Authenticate(ctx context.Context, reason string) error {
	return f(ctx, reason)
}

// Unavailable is a Gate for platforms without biometric hardware.
var Unavailable Gate = GateFunc(func(context.Context, string) error {
	return ErrNotAvailable
})

// Normalize maps any gate error onto the closed set. Context cancellation
// counts as the user cancelling; anything unrecognized becomes ErrFailed.
func Normalize(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotAvailable),
		errors.Is(err, ErrNotEnrolled),
		errors.Is(err, ErrUserCancelled),
		errors.Is(err, ErrLockedOut),
		errors.Is(err, ErrFailed):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrUserCancelled
	default:
		return ErrFailed
	}
}

// IsUnavailable reports whether err means the gate cannot be used at all,
// as opposed to a user failing it.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrNotAvailable) || errors.Is(err, ErrNotEnrolled)
}
