package session

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("session: not found")

// Expiry is the sliding inactivity window. A token untouched for this long is
// discarded and a fresh one issued.
const Expiry = 7 * 24 * time.Hour

// Token correlates an unauthenticated shopper's requests to one cart. The
// value is opaque to everyone but the ledger.
type Token struct {
	Value        string
	LastActivity time.Time
}

func New(value string, now time.Time) Token {
	return Token{Value: value, LastActivity: now.UTC()}
}

// Expired reports whether the sliding window has elapsed since last activity.
func (t Token) Expired(now time.Time) bool {
	return now.Sub(t.LastActivity) >= Expiry
}

// Touched returns the token with its activity timestamp refreshed.
func (t Token) Touched(now time.Time) Token {
	t.LastActivity = now.UTC()
	return t
}

func (t Token) IsZero() bool { return t.Value == "" }
