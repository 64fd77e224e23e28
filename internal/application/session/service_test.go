package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/JoshDFN/ic-commerce/internal/domain/session"
)

type seqIDGen struct{ n int }

func (g *seqIDGen) NewID() string {
	g.n++
	return fmt.Sprintf("tok-%d", g.n)
}

type failingStore struct{ loadErr, saveErr error }

func (s *failingStore) Load(context.Context) (domain.Token, error) {
	return domain.Token{}, s.loadErr
}
func (s *failingStore) Save(context.Context, domain.Token) error { return s.saveErr }
func (s *failingStore) Clear(context.Context) error              { return nil }

type memStore struct {
	token domain.Token
	set   bool
}

func (s *memStore) Load(context.Context) (domain.Token, error) {
	if !s.set {
		return domain.Token{}, domain.ErrNotFound
	}
	return s.token, nil
}
func (s *memStore) Save(_ context.Context, t domain.Token) error {
	s.token, s.set = t, true
	return nil
}
func (s *memStore) Clear(context.Context) error {
	s.token, s.set = domain.Token{}, false
	return nil
}

func newTestService(store domain.Store) (*Service, *seqIDGen) {
	gen := &seqIDGen{}
	return NewService(store, gen, nil), gen
}

func TestResolve_MintsOnFirstUse(t *testing.T) {
	store := &memStore{}
	svc, _ := newTestService(store)

	tok := svc.Resolve(context.Background())
	assert.Equal(t, "tok-1", tok.Value)
	assert.True(t, store.set, "minted token is persisted")
}

func TestResolve_ReusesAndRefreshes(t *testing.T) {
	store := &memStore{}
	svc, _ := newTestService(store)

	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	svc.clock = func() time.Time { return now }

	first := svc.Resolve(context.Background())

	// Six days later the same token survives, window refreshed.
	now = now.Add(6 * 24 * time.Hour)
	second := svc.Resolve(context.Background())
	assert.Equal(t, first.Value, second.Value)
	assert.Equal(t, now, second.LastActivity)

	// Another six days is within the refreshed window.
	now = now.Add(6 * 24 * time.Hour)
	third := svc.Resolve(context.Background())
	assert.Equal(t, first.Value, third.Value)
}

func TestResolve_RegeneratesAfterExpiry(t *testing.T) {
	store := &memStore{}
	svc, _ := newTestService(store)

	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	svc.clock = func() time.Time { return now }

	first := svc.Resolve(context.Background())

	now = now.Add(domain.Expiry)
	second := svc.Resolve(context.Background())
	assert.NotEqual(t, first.Value, second.Value, "expired token is replaced")
}

func TestResolve_NeverFailsWhenStoreBroken(t *testing.T) {
	store := &failingStore{
		loadErr: errors.New("disk gone"),
		saveErr: errors.New("disk gone"),
	}
	svc, _ := newTestService(store)

	tok := svc.Resolve(context.Background())
	require.False(t, tok.IsZero())

	// The in-memory copy keeps the identity stable across calls.
	again := svc.Resolve(context.Background())
	assert.Equal(t, tok.Value, again.Value)
}

func TestReset_MintsNewIdentity(t *testing.T) {
	store := &memStore{}
	svc, _ := newTestService(store)

	first := svc.Resolve(context.Background())
	svc.Reset(context.Background())
	second := svc.Resolve(context.Background())

	assert.NotEqual(t, first.Value, second.Value)
	assert.True(t, store.set, "new token is persisted")
}
