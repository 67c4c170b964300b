package service

import "errors"

// Verification and management failures. Format, not-found, mismatch and
// inactive all collapse into one generic "invalid credential" response
// at the HTTP layer so error granularity cannot be used as an oracle;
// the specific cause is only ever logged.
var (
	ErrFormat           = errors.New("malformed credential")
	ErrNotFound         = errors.New("credential not found")
	ErrHashMismatch     = errors.New("credential digest mismatch")
	ErrInactive         = errors.New("credential is not active")
	ErrExpired          = errors.New("credential has expired")
	ErrStoreUnavailable = errors.New("credential store unavailable")

	ErrUnknownTier = errors.New("unknown tier")
)

// IsInvalidCredential reports whether err is one of the failures that
// must be indistinguishable to the caller.
func IsInvalidCredential(err error) bool {
	return errors.Is(err, ErrFormat) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrHashMismatch) ||
		errors.Is(err, ErrInactive)
}
