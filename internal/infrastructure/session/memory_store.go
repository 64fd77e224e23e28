package session

import (
	"context"
	"sync"

	domain "github.com/JoshDFN/ic-commerce/internal/domain/session"
)

// MemoryStore keeps the token in process memory. Used in tests and as the
// fallback when no persistent path is configured.
type MemoryStore struct {
	mu    sync.Mutex
	token domain.Token
	set   bool
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Load(context.Context) (domain.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set {
		return domain.Token{}, domain.ErrNotFound
	}
	return s.token, nil
}

func (s *MemoryStore) Save(_ context.Context, token domain.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.set = true
	return nil
}

func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = domain.Token{}
	s.set = false
	return nil
}
