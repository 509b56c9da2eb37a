package agent

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/gophvault/internal/totp"
	"github.com/dmitrijs2005/gophvault/internal/vault"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrUnavailable  = errors.New("agent unavailable")
	ErrTooManyTries = errors.New("too many unlock attempts")
	ErrInternal     = errors.New("internal error")
)

// statusTable pairs each error crossing the wire with its gRPC code. The
// status message is the sentinel's text so the client can map it back.
var statusTable = []struct {
	err  error
	code codes.Code
}{
	{vault.ErrVaultLocked, codes.FailedPrecondition},
	{vault.ErrVaultNotFound, codes.FailedPrecondition},
	{vault.ErrNoTOTP, codes.FailedPrecondition},
	{vault.ErrIncorrectPassword, codes.Unauthenticated},
	{vault.ErrInvalidPassword, codes.InvalidArgument},
	{vault.ErrEntryNotFound, codes.NotFound},
	{vault.ErrCorruptRecord, codes.DataLoss},
	{vault.ErrDecryptionFailed, codes.DataLoss},
	{totp.ErrInvalidSecret, codes.InvalidArgument},
	{totp.ErrInvalidURI, codes.InvalidArgument},
	{totp.ErrMissingSecret, codes.InvalidArgument},
	{totp.ErrUnsupportedAlgorithm, codes.InvalidArgument},
	{ErrMissingToken, codes.Unauthenticated},
	{ErrTokenExpired, codes.Unauthenticated},
	{ErrInvalidToken, codes.Unauthenticated},
	{ErrTooManyTries, codes.ResourceExhausted},
}

// toStatus converts a domain error into a gRPC status error.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	for _, e := range statusTable {
		if errors.Is(err, e.err) {
			return status.Error(e.code, e.err.Error())
		}
	}
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, ErrInternal.Error())
}

// fromStatus is the inverse of toStatus on the client side.
func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	for _, e := range statusTable {
		if st.Code() == e.code && st.Message() == e.err.Error() {
			return e.err
		}
	}
	switch st.Code() {
	case codes.Unavailable:
		return ErrUnavailable
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	case codes.Unauthenticated:
		return ErrInvalidToken
	}
	return ErrInternal
}
