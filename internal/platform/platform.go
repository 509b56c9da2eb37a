// Package platform holds process hardening that differs per OS.
package platform

import "errors"

// ErrUnsupported is returned where the running OS offers no equivalent.
var ErrUnsupported = errors.New("not supported on this platform")
