package auth

import (
	"errors"
	"fmt"
)

var (
	ErrAuthorizationPending = errors.New("authorization pending")
	ErrSlowDown             = errors.New("slow down")
	ErrNoProfile            = errors.New("account does not own the game")
)

// Error is a failed login step. Message is what the user is shown.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// XboxError is an XSTS rejection identified by its XErr code.
type XboxError struct {
	Code    int64
	Message string
}

func (e *XboxError) Error() string {
	return fmt.Sprintf("Xbox Error %d: %s", e.Code, e.Message)
}

func newXboxError(code int64, message string) *XboxError {
	switch code {
	case 2148916233:
		message = "You don't have an Xbox account!"
	case 2148916235:
		message = "Xbox Live is banned in your country!"
	case 2148916236, 2148916237:
		message = "Your account needs adult verification (South Korea)"
	case 2148916238:
		message = "The account is a child and cannot proceed unless the account is added to a Family by an adult."
	default:
		if message == "" {
			message = "Unknown"
		}
	}
	return &XboxError{Code: code, Message: message}
}

// TokenError is a terminal error returned by the OAuth token endpoint.
type TokenError struct {
	Code        string
	Description string
}

func (e *TokenError) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return e.Code + ": " + e.Description
}
