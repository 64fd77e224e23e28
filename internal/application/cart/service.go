package cart

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/JoshDFN/ic-commerce/internal/application/auth"
	sessionapp "github.com/JoshDFN/ic-commerce/internal/application/session"
	domain "github.com/JoshDFN/ic-commerce/internal/domain/cart"
	"github.com/JoshDFN/ic-commerce/internal/domain/gateway"
	domoutbox "github.com/JoshDFN/ic-commerce/internal/domain/outbox"
	"github.com/JoshDFN/ic-commerce/internal/observability"
	"github.com/JoshDFN/ic-commerce/internal/observability/logctx"
)

const (
	componentCart = "cart_service"

	// MaxQuantity caps a single line item; the ledger enforces the same
	// bound, checking locally just avoids a doomed round trip.
	MaxQuantity = 999

	publishTimeout = 300 * time.Millisecond
)

// Phase describes the controller's view of the cached cart.
type Phase string

const (
	PhaseLoading Phase = "loading"
	PhaseReady   Phase = "ready"
	PhaseError   Phase = "error"
)

// Snapshot is the immutable view handed to presentation code.
type Snapshot struct {
	Phase Phase
	Cart  *domain.Cart
	Err   error
}

// Service is the cart controller: it holds the cached projection of the
// ledger's cart and funnels every mutation through the gateway. The ledger's
// response replaces the projection wholesale on success; on failure the
// projection is untouched and the error surfaced.
//
// Mutations are serialized under one mutex, so two concurrent updates cannot
// interleave their projections.
type Service struct {
	gw        gateway.Client
	sessions  *sessionapp.Service
	resolver  auth.Resolver
	publisher domoutbox.Publisher

	log             observability.Logger
	replacedCounter observability.Counter

	mu    sync.Mutex
	phase Phase
	cart  *domain.Cart
	err   error
}

func NewService(
	gw gateway.Client,
	sessions *sessionapp.Service,
	resolver auth.Resolver,
	publisher domoutbox.Publisher,
	tel observability.Observability,
) *Service {
	baseLog := observability.NopLogger()
	metrics := observability.NopMetrics()
	if tel != nil {
		baseLog = tel.Logger()
		metrics = tel.Metrics()
	}
	return &Service{
		gw:              gw,
		sessions:        sessions,
		resolver:        resolver,
		publisher:       publisher,
		log:             baseLog.With(observability.F("component", componentCart)),
		replacedCounter: metrics.Counter(observability.MCartReplaced),
		phase:           PhaseLoading,
	}
}

// Snapshot returns the current phase and a deep copy of the cached cart.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Phase: s.phase, Cart: s.cart.Clone(), Err: s.err}
}

// Refresh reloads the cart from the ledger. A missing cart is an ordinary
// answer for a fresh session: the controller settles on Ready with no cart.
func (s *Service) Refresh(ctx context.Context) (*domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.gw.GetCart(ctx, s.sessionToken(ctx))
	if err != nil {
		if errors.Is(err, gateway.ErrCartNotFound) {
			s.replaceLocked(ctx, nil)
			return nil, nil
		}
		s.phase = PhaseError
		s.err = err
		logctx.FromOr(ctx, s.log).Warn("cart_refresh_failed", observability.F("error", err))
		return nil, err
	}
	s.replaceLocked(ctx, c)
	return c.Clone(), nil
}

// Add merges quantity into the line item for variantID, or appends a new
// line. The ledger does the merging; the response is the new truth.
func (s *Service) Add(ctx context.Context, variantID string, quantity int) (*domain.Cart, error) {
	if variantID == "" {
		return nil, errors.New("cart: variant id is required")
	}
	if quantity <= 0 || quantity > MaxQuantity {
		return nil, domain.ErrInvalidQuantity
	}
	return s.mutate(ctx, "add_to_cart", func(ctx context.Context, token string) (*domain.Cart, error) {
		return s.gw.AddToCart(ctx, variantID, quantity, token)
	})
}

// UpdateQuantity sets a line item's quantity outright. Zero or negative
// routes to removal, matching the storefront's decrement-to-zero gesture.
func (s *Service) UpdateQuantity(ctx context.Context, lineItemID string, quantity int) (*domain.Cart, error) {
	if lineItemID == "" {
		return nil, errors.New("cart: line item id is required")
	}
	if quantity <= 0 {
		return s.Remove(ctx, lineItemID)
	}
	if quantity > MaxQuantity {
		return nil, domain.ErrInvalidQuantity
	}
	return s.mutate(ctx, "update_line_item", func(ctx context.Context, token string) (*domain.Cart, error) {
		return s.gw.UpdateLineItem(ctx, lineItemID, quantity, token)
	})
}

// Remove deletes a line item.
func (s *Service) Remove(ctx context.Context, lineItemID string) (*domain.Cart, error) {
	if lineItemID == "" {
		return nil, errors.New("cart: line item id is required")
	}
	return s.mutate(ctx, "remove_from_cart", func(ctx context.Context, token string) (*domain.Cart, error) {
		return s.gw.RemoveFromCart(ctx, lineItemID, token)
	})
}

// ApplyCoupon submits a promotion code. The ledger judges validity; an
// invalid code comes back as a business rejection with the cart untouched.
func (s *Service) ApplyCoupon(ctx context.Context, code string) (*domain.Cart, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domain.ErrEmptyCouponCode
	}
	return s.mutate(ctx, "apply_coupon", func(ctx context.Context, token string) (*domain.Cart, error) {
		return s.gw.ApplyCoupon(ctx, code, token)
	})
}

// OnIdentityChanged drops the cached projection and reloads under the new
// identity. Called after sign-in or sign-out.
func (s *Service) OnIdentityChanged(ctx context.Context) (*domain.Cart, error) {
	s.mu.Lock()
	s.cart = nil
	s.err = nil
	s.phase = PhaseLoading
	s.mu.Unlock()
	return s.Refresh(ctx)
}

func (s *Service) mutate(ctx context.Context, op string, call func(ctx context.Context, token string) (*domain.Cart, error)) (*domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := logctx.FromOr(ctx, s.log).With(observability.F("operation", op))

	c, err := call(ctx, s.sessionToken(ctx))
	if err != nil {
		// The cached cart stays exactly as it was; the shopper retries
		// from known-good state.
		logger.Warn("cart_mutation_failed", observability.F("error", err))
		s.publish(ctx, domain.NewCartMutationFailedEvent(op, err.Error()))
		return nil, err
	}

	s.replaceLocked(ctx, c)
	logger.Info("cart_mutation_applied",
		observability.F("items", c.ItemCount()),
		observability.F("total", c.Total),
	)
	return c.Clone(), nil
}

// replaceLocked installs the authoritative response wholesale. Callers hold
// s.mu.
func (s *Service) replaceLocked(ctx context.Context, c *domain.Cart) {
	s.cart = c.Clone()
	s.err = nil
	s.phase = PhaseReady
	if s.replacedCounter != nil {
		s.replacedCounter.Add(1)
	}
	if c != nil {
		s.publish(ctx, domain.NewCartReplacedEvent(c))
	}
}

func (s *Service) publish(ctx context.Context, e domoutbox.Event) {
	if s.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, e); err != nil {
		logctx.FromOr(ctx, s.log).Warn("event_publish_failed",
			observability.F("event", e.EventName()),
			observability.F("error", err),
		)
	}
}

// sessionToken picks the attribution for gateway calls: authenticated
// identities send no token, guests send their session token.
func (s *Service) sessionToken(ctx context.Context) string {
	if s.resolver != nil && s.resolver.Resolve(ctx).Authenticated() {
		return ""
	}
	if s.sessions == nil {
		return ""
	}
	return s.sessions.Resolve(ctx).Value
}
