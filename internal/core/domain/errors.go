package domain

import "errors"

var (
	ErrNotFound               = errors.New("user not found")
	ErrDuplicateName          = errors.New("user already exists")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrInvalidInput           = errors.New("invalid input")
	ErrTooManyAttempts        = errors.New("too many login attempts")
	ErrTokenMissing           = errors.New("token required")
	ErrTokenInvalid           = errors.New("invalid token")
	ErrTokenExpired           = errors.New("token expired")
	ErrMalformedPermissionSet = errors.New("malformed permission set")
	ErrStoreUnavailable       = errors.New("store unavailable")
	ErrForbidden              = errors.New("access forbidden")
)
