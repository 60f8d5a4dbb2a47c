package assignment

import "errors"

var (
	// Кандидат стал занят между подбором и фиксацией оффера. Наружу не выходит: берём следующего.
	ErrRaceLost = errors.New("candidate lost to a concurrent booking")
	// Фиксация оффера не удалась после всех попыток.
	ErrMatchingFailed = errors.New("matching failed")

	ErrBookingNotFound      = errors.New("booking not found")
	ErrBookingNotMatchable  = errors.New("booking is not matchable in its current status")
	ErrInvalidBooking       = errors.New("invalid booking")
	ErrInvalidTransition    = errors.New("invalid booking status transition")
	ErrOfferNotFound        = errors.New("offer not found")
	ErrOfferNotPending      = errors.New("offer already resolved")
	ErrOfferExpired         = errors.New("offer response window has passed")
	ErrInvalidDecision      = errors.New("decision must be accept or reject")
	ErrClaimNotAllowed      = errors.New("booking does not allow self-claim")
	ErrFreelancerIneligible = errors.New("freelancer is not eligible for this booking")
)
