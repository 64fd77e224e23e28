package checkout

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/JoshDFN/ic-commerce/internal/application/auth"
	cartapp "github.com/JoshDFN/ic-commerce/internal/application/cart"
	sessionapp "github.com/JoshDFN/ic-commerce/internal/application/session"
	domcart "github.com/JoshDFN/ic-commerce/internal/domain/cart"
	domain "github.com/JoshDFN/ic-commerce/internal/domain/checkout"
	"github.com/JoshDFN/ic-commerce/internal/domain/gateway"
	domoutbox "github.com/JoshDFN/ic-commerce/internal/domain/outbox"
	"github.com/JoshDFN/ic-commerce/internal/domain/payment"
	"github.com/JoshDFN/ic-commerce/internal/observability"
	"github.com/JoshDFN/ic-commerce/internal/observability/logctx"
)

const (
	checkoutService = "checkout-service"
	useCaseBegin    = "checkout.begin"
	useCaseSubmit   = "checkout.submit"
	spanPrefix      = "UC."
	publishTimeout  = 300 * time.Millisecond
)

var (
	ErrEmptyCart     = domain.ErrEmptyCart
	ErrNotConfigured = payment.ErrNotConfigured
	ErrDeclined      = payment.ErrDeclined
	// ErrTransactionNotFound is returned for an unknown or already-closed
	// transaction id.
	ErrTransactionNotFound = errors.New("checkout: transaction not found")
)

// ShippingPolicy is the display-estimate rule: a flat fee, waived at the
// free-shipping threshold. The ledger computes the billed figure itself.
type ShippingPolicy struct {
	Fee           int64
	FreeThreshold int64
}

// EstimateFor returns the shipping estimate for an item subtotal in cents.
func (p ShippingPolicy) EstimateFor(itemTotal int64) int64 {
	if itemTotal >= p.FreeThreshold {
		return 0
	}
	return p.Fee
}

// IDGenerator yields transaction identifiers.
type IDGenerator interface {
	NewID() string
}

// Orchestrator drives checkout transactions: Begin prepares payment against
// the gateway, Submit validates the shopper's details, confirms the charge
// with the processor, then records the outcome on the ledger best-effort.
// After the processor confirms, nothing the ledger does can fail the
// transaction from the shopper's perspective.
type Orchestrator struct {
	gw        gateway.Client
	processor payment.Processor
	carts     *cartapp.Service
	sessions  *sessionapp.Service
	resolver  auth.Resolver
	publisher domoutbox.Publisher
	idGen     IDGenerator
	shipping  ShippingPolicy
	tel       observability.Observability

	log          observability.Logger
	reqCounter   observability.Counter
	durHistogram observability.Histogram
	extCounter   observability.Counter
	extHistogram observability.Histogram
	doneCounter  observability.Counter

	mu     sync.Mutex
	active map[string]*domain.Transaction
}

func NewOrchestrator(
	gw gateway.Client,
	processor payment.Processor,
	carts *cartapp.Service,
	sessions *sessionapp.Service,
	resolver auth.Resolver,
	publisher domoutbox.Publisher,
	idGen IDGenerator,
	shipping ShippingPolicy,
	tel observability.Observability,
) *Orchestrator {
	baseLog := observability.NopLogger()
	metrics := observability.NopMetrics()
	if tel != nil {
		baseLog = tel.Logger()
		metrics = tel.Metrics()
	} else {
		tel = observability.Nop()
	}
	return &Orchestrator{
		gw:           gw,
		processor:    processor,
		carts:        carts,
		sessions:     sessions,
		resolver:     resolver,
		publisher:    publisher,
		idGen:        idGen,
		shipping:     shipping,
		tel:          tel,
		log:          baseLog.With(observability.F("service", checkoutService)),
		reqCounter:   metrics.Counter(observability.MUsecaseRequests),
		durHistogram: metrics.Histogram(observability.MUsecaseDuration),
		extCounter:   metrics.Counter(observability.MExternalRequests),
		extHistogram: metrics.Histogram(observability.MExternalRequestDuration),
		doneCounter:  metrics.Counter(observability.MCheckoutCompleted),
		active:       make(map[string]*domain.Transaction),
	}
}

// BeginResult carries everything presentation needs to collect payment.
type BeginResult struct {
	TransactionID  string
	Cart           *domcart.Cart
	ItemTotal      int64
	ShippingTotal  int64
	EstimatedTotal int64
	PublishableKey string
	PaymentHandle  payment.Handle
}

// Begin opens a checkout transaction over the current cart. It refreshes the
// cart, refuses an empty one, resolves the active card processor, and opens a
// payment intent for the estimated total.
func (o *Orchestrator) Begin(ctx context.Context) (_ *BeginResult, err error) {
	logger := logctx.FromOr(ctx, o.log).With(observability.F("use_case", useCaseBegin))

	ctx, span := o.tel.Tracer().Start(ctx, spanPrefix+"BeginCheckout",
		attribute.String("use_case", useCaseBegin),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	defer func() {
		o.finishUseCase(ctx, span, logger, useCaseBegin, outcome, statusText, start, err)
	}()

	c, err := o.carts.Refresh(ctx)
	if err != nil {
		outcome, statusText = "error", "CART_REFRESH_FAILED"
		return nil, err
	}
	if c.IsEmpty() {
		outcome, statusText = "error", "CART_EMPTY"
		return nil, ErrEmptyCart
	}

	shippingEstimate := o.shipping.EstimateFor(c.ItemTotal)
	estimated := c.ItemTotal + shippingEstimate

	txn, err := domain.Begin(o.idGen.NewID(), c, estimated)
	if err != nil {
		outcome, statusText = "error", "CART_EMPTY"
		return nil, err
	}
	span.SetAttributes(
		attribute.String("checkout.transaction_id", txn.ID),
		attribute.Int64("checkout.estimated_total", estimated),
	)

	method, err := o.resolveCardMethod(ctx)
	if err != nil {
		outcome, statusText = "error", "PAYMENT_NOT_CONFIGURED"
		_ = txn.Fail(err.Error())
		o.publish(ctx, domain.NewCheckoutFailedEvent(txn, err.Error()))
		return nil, err
	}

	handle, err := o.createIntent(ctx, estimated)
	if err != nil {
		outcome, statusText = "error", "PAYMENT_INTENT_FAILED"
		_ = txn.Fail(err.Error())
		o.publish(ctx, domain.NewCheckoutFailedEvent(txn, err.Error()))
		return nil, err
	}

	if err := txn.PaymentPrepared(handle, method.PublishableKey); err != nil {
		outcome, statusText = "error", "INVALID_TRANSITION"
		return nil, err
	}

	o.mu.Lock()
	o.active[txn.ID] = txn
	o.mu.Unlock()

	return &BeginResult{
		TransactionID:  txn.ID,
		Cart:           txn.Cart.Clone(),
		ItemTotal:      c.ItemTotal,
		ShippingTotal:  shippingEstimate,
		EstimatedTotal: estimated,
		PublishableKey: method.PublishableKey,
		PaymentHandle:  handle,
	}, nil
}

// Submit validates the shopper's details and runs the payment through the
// processor. A decline leaves the transaction retryable in place. A confirmed
// charge makes completion unconditional: ledger bookkeeping failures are
// logged, never surfaced.
func (o *Orchestrator) Submit(ctx context.Context, transactionID string, form domain.Form) (_ *domain.Confirmation, err error) {
	logger := logctx.FromOr(ctx, o.log).With(
		observability.F("use_case", useCaseSubmit),
		observability.F("transaction_id", transactionID),
	)

	ctx, span := o.tel.Tracer().Start(ctx, spanPrefix+"SubmitCheckout",
		attribute.String("use_case", useCaseSubmit),
		attribute.String("checkout.transaction_id", transactionID),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	defer func() {
		o.finishUseCase(ctx, span, logger, useCaseSubmit, outcome, statusText, start, err)
	}()

	o.mu.Lock()
	txn, ok := o.active[transactionID]
	o.mu.Unlock()
	if !ok {
		outcome, statusText = "error", "TRANSACTION_NOT_FOUND"
		return nil, ErrTransactionNotFound
	}

	// Validation happens before any network call; a rejected form costs
	// nothing.
	form = form.Trimmed()
	if err := form.Validate(); err != nil {
		outcome, statusText = "error", "FORM_INVALID"
		return nil, err
	}

	if err := txn.DetailsSubmitted(form); err != nil {
		outcome, statusText = "error", "INVALID_TRANSITION"
		return nil, err
	}

	ref, err := o.confirmPayment(ctx, txn)
	if err != nil {
		if errors.Is(err, payment.ErrDeclined) {
			// Back to the confirmation step; the form is kept so the
			// shopper only swaps the card.
			_ = txn.ProcessorDeclined(err.Error())
			outcome, statusText = "error", "PAYMENT_DECLINED"
			return nil, err
		}
		_ = txn.ProcessorDeclined(err.Error())
		outcome, statusText = "error", "PAYMENT_CONFIRM_FAILED"
		return nil, err
	}

	if err := txn.ProcessorSucceeded(ref); err != nil {
		outcome, statusText = "error", "INVALID_TRANSITION"
		return nil, err
	}
	span.AddEvent("payment.confirmed",
		trace.WithAttributes(attribute.String("payment.reference", ref)),
	)

	// Money has moved. Everything below is bookkeeping; the webhook path
	// reconciles anything that fails here.
	o.finalize(ctx, txn, logger)
	if recErr := txn.Recorded(); recErr != nil {
		logger.Error("checkout_record_transition_failed", observability.F("error", recErr))
	}

	o.mu.Lock()
	delete(o.active, transactionID)
	o.mu.Unlock()

	if o.doneCounter != nil {
		o.doneCounter.Add(1, observability.L("outcome", "completed"))
	}
	o.publish(ctx, domain.NewCheckoutCompletedEvent(txn))

	conf := txn.Confirmation()
	return &conf, nil
}

// Abandon closes a transaction without charging. The cart is untouched; the
// shopper lands back on it.
func (o *Orchestrator) Abandon(ctx context.Context, transactionID string) error {
	o.mu.Lock()
	txn, ok := o.active[transactionID]
	if ok {
		delete(o.active, transactionID)
	}
	o.mu.Unlock()
	if !ok {
		return ErrTransactionNotFound
	}
	_ = txn.Fail("abandoned")
	if o.doneCounter != nil {
		o.doneCounter.Add(1, observability.L("outcome", "abandoned"))
	}
	o.publish(ctx, domain.NewCheckoutFailedEvent(txn, "abandoned"))
	return nil
}

// Status reports the state of an active transaction.
func (o *Orchestrator) Status(transactionID string) (domain.Status, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	txn, ok := o.active[transactionID]
	if !ok {
		return "", ErrTransactionNotFound
	}
	return txn.Status(), nil
}

func (o *Orchestrator) resolveCardMethod(ctx context.Context) (payment.Method, error) {
	var method payment.Method
	err := o.external(ctx, "gateway", "get_payment_methods", func(ctx context.Context) error {
		methods, err := o.gw.GetPaymentMethods(ctx)
		if err != nil {
			return err
		}
		for _, m := range methods {
			if m.Active && m.Type == payment.MethodTypeStripe && m.PublishableKey != "" {
				method = m
				return nil
			}
		}
		return payment.ErrNotConfigured
	})
	return method, err
}

func (o *Orchestrator) createIntent(ctx context.Context, amount int64) (payment.Handle, error) {
	var handle payment.Handle
	err := o.external(ctx, "gateway", "create_payment_intent", func(ctx context.Context) error {
		h, err := o.gw.CreatePaymentIntent(ctx, amount)
		if err != nil {
			return err
		}
		handle = h
		return nil
	})
	return handle, err
}

func (o *Orchestrator) confirmPayment(ctx context.Context, txn *domain.Transaction) (string, error) {
	billing := payment.BillingDetails{
		Name:       txn.Form.Name,
		Email:      txn.Form.Email,
		Line1:      txn.Form.Address,
		City:       txn.Form.City,
		State:      txn.Form.State,
		PostalCode: txn.Form.Zip,
		Country:    "US",
	}
	var ref string
	// No local deadline: the processor call is allowed to take as long as
	// the processor needs once submission starts.
	err := o.external(ctx, "processor", "confirm_payment", func(ctx context.Context) error {
		conf, err := o.processor.Confirm(ctx, txn.Handle, billing)
		if err != nil {
			return err
		}
		ref = conf.Reference
		return nil
	})
	return ref, err
}

// finalize pushes the confirmed charge onto the ledger: address, payment
// record, completion. Each step is independent and best-effort.
func (o *Orchestrator) finalize(ctx context.Context, txn *domain.Transaction, logger observability.Logger) {
	token := o.sessionToken(ctx)
	form := txn.Form

	addr := gateway.AddressInput{
		Email: form.Email,
		Shipping: gateway.Address{
			FirstName:   form.FirstName(),
			LastName:    form.LastName(),
			Address1:    form.Address,
			City:        form.City,
			StateName:   form.State,
			Zipcode:     form.Zip,
			CountryCode: "US",
		},
		UseShippingForBilling: true,
	}
	err := o.external(ctx, "gateway", "set_order_address", func(ctx context.Context) error {
		updated, err := o.gw.SetOrderAddress(ctx, addr, token)
		if err != nil {
			return err
		}
		txn.Cart = updated.Clone()
		return nil
	})
	if err != nil {
		logger.Error("checkout_address_record_failed", observability.F("error", err))
	}

	orderID := ""
	if txn.Cart != nil {
		orderID = txn.Cart.ID
	}
	err = o.external(ctx, "gateway", "record_payment", func(ctx context.Context) error {
		return o.gw.RecordPayment(ctx, orderID, txn.ProcessorRef, payment.StatusSucceeded, token)
	})
	if err != nil {
		logger.Error("checkout_payment_record_failed",
			observability.F("payment_reference", txn.ProcessorRef),
			observability.F("error", err),
		)
	}

	err = o.external(ctx, "gateway", "complete_checkout", func(ctx context.Context) error {
		completed, err := o.gw.CompleteCheckout(ctx, token)
		if err != nil {
			return err
		}
		txn.Cart = completed.Clone()
		return nil
	})
	if err != nil {
		logger.Error("checkout_complete_record_failed", observability.F("error", err))
	}
}

// external wraps one collaborator call with RED metrics.
func (o *Orchestrator) external(ctx context.Context, peer, endpoint string, fn func(ctx context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	if o.extCounter != nil {
		o.extCounter.Add(1,
			observability.L("peer", peer),
			observability.L("endpoint", endpoint),
			observability.L("outcome", outcome),
		)
	}
	if o.extHistogram != nil {
		o.extHistogram.Observe(time.Since(start).Seconds(),
			observability.L("peer", peer),
			observability.L("endpoint", endpoint),
		)
	}
	return err
}

func (o *Orchestrator) finishUseCase(
	ctx context.Context,
	span trace.Span,
	logger observability.Logger,
	useCase, outcome, statusText string,
	start time.Time,
	err error,
) {
	lat := time.Since(start).Seconds()

	if span != nil {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, statusText)
		} else {
			span.SetStatus(codes.Ok, statusText)
		}
		span.End()
	}

	if o.reqCounter != nil {
		o.reqCounter.Add(1,
			observability.L("use_case", useCase),
			observability.L("outcome", outcome),
		)
	}
	if o.durHistogram != nil {
		o.durHistogram.Observe(lat, observability.L("use_case", useCase))
	}

	fields := []observability.Field{
		observability.F("outcome", outcome),
		observability.F("status", statusText),
		observability.F("latency_seconds", lat),
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	if err != nil {
		fields = append(fields, observability.F("error", err.Error()))
	}
	logger.Info("use_case_done", fields...)
}

func (o *Orchestrator) publish(ctx context.Context, e domoutbox.Event) {
	if o.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := o.publisher.Publish(pubCtx, e); err != nil {
		logctx.FromOr(ctx, o.log).Warn("event_publish_failed",
			observability.F("event", e.EventName()),
			observability.F("error", err),
		)
	}
}

func (o *Orchestrator) sessionToken(ctx context.Context) string {
	if o.resolver != nil && o.resolver.Resolve(ctx).Authenticated() {
		return ""
	}
	if o.sessions == nil {
		return ""
	}
	return o.sessions.Resolve(ctx).Value
}
