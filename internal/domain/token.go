package domain

import "time"

// TokenIssuer issues tokens (e.g. JWT) for a caller.
type TokenIssuer interface {
	Issue(caller Caller, email string, expiry time.Duration) (string, error)
}

// TokenVerifier verifies a token and returns the authenticated caller.
type TokenVerifier interface {
	Verify(token string) (Caller, error)
}
