package service

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Leganyst/booking-matcher/internal/assignment"
	"github.com/Leganyst/booking-matcher/internal/geo"
	"github.com/Leganyst/booking-matcher/internal/matching"
)

// codeOf сопоставляет доменную ошибку коду gRPC.
func codeOf(err error) codes.Code {
	if s, ok := status.FromError(err); ok {
		return s.Code()
	}
	switch {
	case errors.Is(err, assignment.ErrInvalidBooking),
		errors.Is(err, assignment.ErrInvalidDecision),
		errors.Is(err, matching.ErrInvalidRequest),
		errors.Is(err, geo.ErrInvalidCoordinate):
		return codes.InvalidArgument
	case errors.Is(err, assignment.ErrBookingNotFound),
		errors.Is(err, assignment.ErrOfferNotFound),
		errors.Is(err, matching.ErrServiceNotFound):
		return codes.NotFound
	case errors.Is(err, assignment.ErrOfferExpired),
		errors.Is(err, assignment.ErrBookingNotMatchable),
		errors.Is(err, assignment.ErrInvalidTransition),
		errors.Is(err, assignment.ErrOfferNotPending),
		errors.Is(err, assignment.ErrClaimNotAllowed),
		errors.Is(err, assignment.ErrFreelancerIneligible),
		errors.Is(err, matching.ErrUnconfigurableService):
		return codes.FailedPrecondition
	case errors.Is(err, assignment.ErrMatchingFailed):
		return codes.Unavailable
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	default:
		return codes.Internal
	}
}

func toStatus(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Errorf(codeOf(err), "%s: %v", op, err)
}

// retryable: стоит ли повторять команду позже: сбой хранилища или исчерпанные попытки фиксации.
func retryable(err error) bool {
	switch codeOf(err) {
	case codes.Unavailable, codes.Internal, codes.Canceled:
		return true
	}
	return false
}
