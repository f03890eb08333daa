package domain

import "errors"

var (
	ErrValidation           = errors.New("invalid input")
	ErrAlreadyExists        = errors.New("user already exists")
	ErrNotFound             = errors.New("user not found")
	ErrOTPNotFoundOrExpired = errors.New("OTP not found or expired")
	ErrInvalidOTP           = errors.New("invalid OTP")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrUnauthenticated      = errors.New("you are not authenticated")
	ErrUploadFailed         = errors.New("failed to upload image")
	ErrDispatchFailed       = errors.New("failed to send email")
)

// ValidationError carries a message meant for the caller. It matches
// ErrValidation under errors.Is.
type ValidationError struct {
	Msg string
}

func Invalid(msg string) error { return &ValidationError{Msg: msg} }

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
