package cookie

import "errors"

var (
	ErrNoSecret         = errors.New("cookie.no_secret")
	ErrSecretTooShort   = errors.New("cookie.secret_too_short")
	ErrInvalidSignature = errors.New("cookie.invalid_signature")
	ErrInvalidFormat    = errors.New("cookie.invalid_format")
	ErrNoRequest        = errors.New("cookie.no_request_in_context")
	ErrInvalidSameSite  = errors.New("cookie.invalid_same_site")
)
