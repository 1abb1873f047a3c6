package errors

import (
	"errors"
	"fmt"
)

// Common error types for the booking workflow
var (
	// Session errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNoSession          = errors.New("no active session")
	ErrSessionExpired     = errors.New("session expired")
	ErrInvalidToken       = errors.New("invalid token")

	// Access errors
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrRoleDenied       = errors.New("role not permitted")

	// Stay errors
	ErrInvalidStay         = errors.New("invalid stay selection")
	ErrUndeterminableTotal = errors.New("total price undeterminable")

	// Marketplace API errors
	ErrMalformedResponse = errors.New("malformed API response")
	ErrRequestFailed     = errors.New("request failed")

	// Payment errors
	ErrSecretRequestFailed = errors.New("payment intent request failed")
	ErrConfirmationFailed  = errors.New("payment confirmation failed")
	ErrAuthorizationInUse  = errors.New("authorization already in progress")

	// Commit errors
	ErrPostCaptureFailure = errors.New("payment captured but records incomplete")

	// Workflow errors
	ErrIllegalTransition = errors.New("illegal workflow transition")
	ErrCancelled         = errors.New("workflow cancelled")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}
