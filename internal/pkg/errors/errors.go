package errors

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrInvalid       = errors.New("invalid")
	ErrTooMany       = errors.New("too many requests")
	ErrInternal      = errors.New("internal")
	ErrEmbedding     = errors.New("embedding failed")
	ErrQuotaExceeded = errors.New("quota exceeded")
	ErrStore         = errors.New("vector store failure")
	ErrGeneration    = errors.New("generation failed")
	ErrUnavailable   = errors.New("service unavailable")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalid)
}

func IsQuotaExceeded(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}
