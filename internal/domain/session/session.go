package session

import (
	"errors"
	"time"
)

var (
	ErrRefreshNotFound = errors.New("refresh token not found")
	// ErrRefreshRejected covers revoked, expired and hash-mismatched tokens.
	ErrRefreshRejected = errors.New("refresh token rejected")
)

// RefreshToken is the stored half of a refresh token. Only the HMAC of the
// raw token is kept.
type RefreshToken struct {
	ID         string
	UserID     string
	TokenHash  string
	ExpiresAt  time.Time
	RevokedAt  *time.Time
	ReplacedBy *string
	CreatedAt  time.Time
}

// Usable reports whether rt may be exchanged at now for a token whose hash is
// hash.
func (rt RefreshToken) Usable(hash string, now time.Time) bool {
	return rt.RevokedAt == nil && now.Before(rt.ExpiresAt) && rt.TokenHash == hash
}
