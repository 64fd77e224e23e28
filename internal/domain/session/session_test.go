package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenExpiry_SlidingWindow(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tok := New("tok-1", start)

	assert.False(t, tok.Expired(start.Add(Expiry-time.Second)))
	assert.True(t, tok.Expired(start.Add(Expiry)))
	assert.True(t, tok.Expired(start.Add(Expiry+time.Hour)))
}

func TestTokenTouched_RefreshesWindow(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tok := New("tok-1", start)

	// Activity just before expiry pushes the window out another full term.
	almost := start.Add(Expiry - time.Minute)
	tok = tok.Touched(almost)

	assert.False(t, tok.Expired(start.Add(Expiry+time.Hour)))
	assert.True(t, tok.Expired(almost.Add(Expiry)))
}

func TestTokenIsZero(t *testing.T) {
	assert.True(t, Token{}.IsZero())
	assert.False(t, New("tok", time.Now()).IsZero())
}
