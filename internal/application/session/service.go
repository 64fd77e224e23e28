package session

import (
	"context"
	"errors"
	"sync"
	"time"

	domain "github.com/JoshDFN/ic-commerce/internal/domain/session"
	"github.com/JoshDFN/ic-commerce/internal/observability"
	"github.com/JoshDFN/ic-commerce/internal/observability/logctx"
)

const componentSession = "session_service"

// IDGenerator yields new opaque token values.
type IDGenerator interface {
	NewID() string
}

// Service owns the anonymous session token: issue on first use, refresh the
// sliding window on every read, regenerate after seven days of inactivity.
// Resolve never fails; when the store misbehaves the service degrades to an
// in-memory token and keeps the shopper moving.
type Service struct {
	store domain.Store
	idGen IDGenerator
	clock func() time.Time
	log   observability.Logger

	mu     sync.Mutex
	cached domain.Token
}

func NewService(store domain.Store, idGen IDGenerator, logger observability.Logger) *Service {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Service{
		store: store,
		idGen: idGen,
		clock: time.Now,
		log:   logger.With(observability.F("component", componentSession)),
	}
}

// Resolve returns the token in effect, minting a fresh one when none exists
// or the inactivity window has elapsed. The returned token always has its
// activity timestamp refreshed.
func (s *Service) Resolve(ctx context.Context) domain.Token {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := logctx.FromOr(ctx, s.log)
	now := s.clock().UTC()

	tok := s.cached
	if tok.IsZero() {
		loaded, err := s.store.Load(ctx)
		switch {
		case err == nil:
			tok = loaded
		case errors.Is(err, domain.ErrNotFound):
			// first visit
		default:
			logger.Warn("session_load_failed", observability.F("error", err))
		}
	}

	if tok.IsZero() || tok.Expired(now) {
		if !tok.IsZero() {
			logger.Info("session_expired",
				observability.F("last_activity", tok.LastActivity),
			)
		}
		tok = domain.New(s.idGen.NewID(), now)
	} else {
		tok = tok.Touched(now)
	}

	s.cached = tok
	if err := s.store.Save(ctx, tok); err != nil {
		// The in-memory copy keeps the session coherent for this process.
		logger.Warn("session_save_failed", observability.F("error", err))
	}
	return tok
}

// Reset discards the current token. The next Resolve mints a new identity;
// used when the shopper signs in or explicitly starts over.
func (s *Service) Reset(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cached = domain.Token{}
	if err := s.store.Clear(ctx); err != nil {
		logctx.FromOr(ctx, s.log).Warn("session_clear_failed", observability.F("error", err))
	}
}
