package otp

import "github.com/example/domestyx/internal/apperr"

var (
	ErrNotFound = &apperr.Error{
		Kind: apperr.KindNotFound, Code: "otp_not_found",
		Message: "no pending verification code for this target, request a new one",
	}
	ErrExpired = &apperr.Error{
		Kind: apperr.KindValidation, Code: "otp_expired",
		Message: "verification code expired, request a new one",
	}
	ErrAttemptsExhausted = &apperr.Error{
		Kind: apperr.KindValidation, Code: "otp_attempts_exhausted",
		Message: "too many incorrect attempts, request a new code",
	}
	ErrInvalidCode = &apperr.Error{
		Kind: apperr.KindValidation, Code: "otp_invalid_code",
		Message: "invalid verification code",
	}
	ErrVerificationRequired = &apperr.Error{
		Kind: apperr.KindValidation, Code: "otp_verification_required",
		Message: "contact must be verified with a one-time code first",
	}
	ErrDeliveryFailed = &apperr.Error{
		Kind: apperr.KindUnavailable, Code: "otp_delivery_failed",
		Message: "unable to deliver verification code, please try again later",
	}
	// ErrRateLimited matches every cooldown and hourly-cap rejection via errors.Is.
	ErrRateLimited = apperr.RateLimited(0)
)
