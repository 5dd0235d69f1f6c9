package client

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/storefront/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrUnavailable     = errors.New("server unavailable")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrAlreadyExists   = errors.New("already exists")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrConflict        = errors.New("conflict")
	ErrNotLoggedIn     = errors.New("not logged in")
)

// mapError converts a gRPC status into one of the sentinels above, keeping
// the server's message.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("rpc error: %w", err)
	}

	var sentinel error
	switch st.Code() {
	case codes.Unauthenticated:
		sentinel = ErrUnauthorized
	case codes.PermissionDenied:
		sentinel = ErrForbidden
	case codes.AlreadyExists:
		sentinel = ErrAlreadyExists
	case codes.InvalidArgument:
		sentinel = ErrInvalidArgument
	case codes.Aborted:
		sentinel = ErrConflict
	case codes.Internal:
		sentinel = common.ErrorInternal
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
	return fmt.Errorf("%w: %s", sentinel, st.Message())
}
