package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	appCart "github.com/JoshDFN/ic-commerce/internal/application/cart"
	appCheckout "github.com/JoshDFN/ic-commerce/internal/application/checkout"
	appSession "github.com/JoshDFN/ic-commerce/internal/application/session"
	domainCart "github.com/JoshDFN/ic-commerce/internal/domain/cart"
	domainCheckout "github.com/JoshDFN/ic-commerce/internal/domain/checkout"
	"github.com/JoshDFN/ic-commerce/internal/domain/gateway"
	domainPayment "github.com/JoshDFN/ic-commerce/internal/domain/payment"
	stripeinfra "github.com/JoshDFN/ic-commerce/internal/infrastructure/stripe"
	"github.com/JoshDFN/ic-commerce/internal/observability"
	"github.com/JoshDFN/ic-commerce/internal/observability/logctx"
)

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"

	maxWebhookBytes = 64 * 1024
)

type Handler struct {
	carts    *appCart.Service
	checkout *appCheckout.Orchestrator
	sessions *appSession.Service
	webhooks *stripeinfra.WebhookService
	log      observability.Logger
	tel      observability.Observability
}

// NewHandler wires the HTTP surface. webhooks may be nil when the deployment
// settles payments elsewhere.
func NewHandler(
	carts *appCart.Service,
	checkout *appCheckout.Orchestrator,
	sessions *appSession.Service,
	webhooks *stripeinfra.WebhookService,
	tel observability.Observability,
) *Handler {
	baseLogger := observability.NopLogger()
	if tel != nil {
		baseLogger = tel.Logger()
	}
	return &Handler{
		carts:    carts,
		checkout: checkout,
		sessions: sessions,
		webhooks: webhooks,
		log:      baseLogger.With(observability.F("component", componentHTTPHandler)),
		tel:      tel,
	}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	// Wire each route with middlewares:
	// Trace → ObservabilityMiddleware (request logger) → Access log → Handler
	h.muxHandle(mux, "/cart", map[string]http.HandlerFunc{
		http.MethodGet: h.handleGetCart,
	})
	h.muxHandle(mux, "/cart/items", map[string]http.HandlerFunc{
		http.MethodPost:   h.handleAddItem,
		http.MethodPatch:  h.handleUpdateItem,
		http.MethodDelete: h.handleRemoveItem,
	})
	h.muxHandle(mux, "/cart/coupon", map[string]http.HandlerFunc{
		http.MethodPost: h.handleApplyCoupon,
	})
	h.muxHandle(mux, "/checkout/start", map[string]http.HandlerFunc{
		http.MethodPost: h.handleStartCheckout,
	})
	h.muxHandle(mux, "/checkout/confirm", map[string]http.HandlerFunc{
		http.MethodPost: h.handleConfirmCheckout,
	})
	h.muxHandle(mux, "/checkout/abandon", map[string]http.HandlerFunc{
		http.MethodPost: h.handleAbandonCheckout,
	})
	h.muxHandle(mux, "/session/reset", map[string]http.HandlerFunc{
		http.MethodPost: h.handleResetSession,
	})
	h.muxHandle(mux, "/health", map[string]http.HandlerFunc{
		http.MethodGet: h.handleHealth,
	})
	if h.webhooks != nil {
		h.muxHandle(mux, "/webhooks/stripe", map[string]http.HandlerFunc{
			http.MethodPost: h.handleStripeWebhook,
		})
	}

	return mux
}

func (h *Handler) muxHandle(mux *http.ServeMux, route string, handlers map[string]http.HandlerFunc) {
	mux.HandleFunc(route, func(w http.ResponseWriter, r *http.Request) {
		handler, ok := handlers[r.Method]
		if !ok {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		// Store stable route template for low-cardinality labels
		ctx := contextWithRoute(r.Context(), route)
		r = r.WithContext(ctx)

		wrapped := h.withTrace(
			ObservabilityMiddleware(
				logctx.FromOr(ctx, h.log),
				func(r *http.Request) string {
					return r.Header.Get(headerRequestID)
				},
				h.tel,
			)(
				h.withAccessLog(http.HandlerFunc(handler)),
			),
		)
		wrapped.ServeHTTP(w, r)
	})
}

type lineItemView struct {
	ID          string `json:"id"`
	VariantID   string `json:"variant_id"`
	Quantity    int    `json:"quantity"`
	Price       int64  `json:"price"`
	Currency    string `json:"currency"`
	ProductName string `json:"product_name"`
	ProductSlug string `json:"product_slug"`
	ImageURL    string `json:"image_url,omitempty"`
}

type adjustmentView struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Amount   int64  `json:"amount"`
	Included bool   `json:"included"`
}

type cartView struct {
	ID              string           `json:"id"`
	Number          string           `json:"number"`
	State           string           `json:"state"`
	ItemTotal       int64            `json:"item_total"`
	ShipmentTotal   int64            `json:"shipment_total"`
	AdjustmentTotal int64            `json:"adjustment_total"`
	PromoTotal      int64            `json:"promo_total"`
	TaxTotal        int64            `json:"tax_total"`
	Total           int64            `json:"total"`
	ItemCount       int              `json:"item_count"`
	LineItems       []lineItemView   `json:"line_items"`
	Adjustments     []adjustmentView `json:"adjustments,omitempty"`
}

func toCartView(c *domainCart.Cart) *cartView {
	if c == nil {
		return nil
	}
	view := &cartView{
		ID:              c.ID,
		Number:          c.Number,
		State:           string(c.State),
		ItemTotal:       c.ItemTotal,
		ShipmentTotal:   c.ShipmentTotal,
		AdjustmentTotal: c.AdjustmentTotal,
		PromoTotal:      c.PromoTotal,
		TaxTotal:        c.TaxTotal,
		Total:           c.Total,
		ItemCount:       c.ItemCount(),
		LineItems:       []lineItemView{},
	}
	for _, li := range c.LineItems {
		view.LineItems = append(view.LineItems, lineItemView{
			ID:          li.ID,
			VariantID:   li.VariantID,
			Quantity:    li.Quantity,
			Price:       li.Price,
			Currency:    li.Currency,
			ProductName: li.ProductName,
			ProductSlug: li.ProductSlug,
			ImageURL:    li.ImageURL,
		})
	}
	for _, a := range c.Adjustments {
		view.Adjustments = append(view.Adjustments, adjustmentView{
			ID:       a.ID,
			Label:    a.Label,
			Amount:   a.Amount,
			Included: a.Included,
		})
	}
	return view
}

type cartResponse struct {
	Cart *cartView `json:"cart"`
}

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.Refresh(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResponse{Cart: toCartView(c)})
}

type addItemRequest struct {
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	c, err := h.carts.Add(r.Context(), req.VariantID, req.Quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResponse{Cart: toCartView(c)})
}

type updateItemRequest struct {
	LineItemID string `json:"line_item_id"`
	Quantity   int    `json:"quantity"`
}

func (h *Handler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var req updateItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	c, err := h.carts.UpdateQuantity(r.Context(), req.LineItemID, req.Quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResponse{Cart: toCartView(c)})
}

type removeItemRequest struct {
	LineItemID string `json:"line_item_id"`
}

func (h *Handler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	var req removeItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	c, err := h.carts.Remove(r.Context(), req.LineItemID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResponse{Cart: toCartView(c)})
}

type applyCouponRequest struct {
	Code string `json:"code"`
}

func (h *Handler) handleApplyCoupon(w http.ResponseWriter, r *http.Request) {
	var req applyCouponRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	c, err := h.carts.ApplyCoupon(r.Context(), req.Code)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResponse{Cart: toCartView(c)})
}

type startCheckoutResponse struct {
	TransactionID  string    `json:"transaction_id"`
	Cart           *cartView `json:"cart"`
	ItemTotal      int64     `json:"item_total"`
	ShippingTotal  int64     `json:"shipping_total"`
	EstimatedTotal int64     `json:"estimated_total"`
	PublishableKey string    `json:"publishable_key"`
	PaymentHandle  string    `json:"payment_handle"`
}

func (h *Handler) handleStartCheckout(w http.ResponseWriter, r *http.Request) {
	result, err := h.checkout.Begin(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, startCheckoutResponse{
		TransactionID:  result.TransactionID,
		Cart:           toCartView(result.Cart),
		ItemTotal:      result.ItemTotal,
		ShippingTotal:  result.ShippingTotal,
		EstimatedTotal: result.EstimatedTotal,
		PublishableKey: result.PublishableKey,
		PaymentHandle:  string(result.PaymentHandle),
	})
}

type confirmCheckoutRequest struct {
	TransactionID string `json:"transaction_id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Address       string `json:"address"`
	City          string `json:"city"`
	State         string `json:"state"`
	Zip           string `json:"zip"`
}

type confirmCheckoutResponse struct {
	OrderNumber  string `json:"order_number"`
	ChargedTotal int64  `json:"charged_total"`
	Email        string `json:"email"`
}

func (h *Handler) handleConfirmCheckout(w http.ResponseWriter, r *http.Request) {
	var req confirmCheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	conf, err := h.checkout.Submit(r.Context(), req.TransactionID, domainCheckout.Form{
		Name:    req.Name,
		Email:   req.Email,
		Address: req.Address,
		City:    req.City,
		State:   req.State,
		Zip:     req.Zip,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, confirmCheckoutResponse{
		OrderNumber:  conf.OrderNumber,
		ChargedTotal: conf.ChargedTotal,
		Email:        conf.Email,
	})
}

type abandonCheckoutRequest struct {
	TransactionID string `json:"transaction_id"`
}

func (h *Handler) handleAbandonCheckout(w http.ResponseWriter, r *http.Request) {
	var req abandonCheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.checkout.Abandon(r.Context(), req.TransactionID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleResetSession(w http.ResponseWriter, r *http.Request) {
	h.sessions.Reset(r.Context())
	c, err := h.carts.OnIdentityChanged(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResponse{Cart: toCartView(c)})
}

func (h *Handler) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	result, err := h.webhooks.Process(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		// Signature failures are the only rejections; everything after
		// verification is acknowledged so Stripe does not retry forever.
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// withAccessLog writes a single access log after the handler completes.
// It relies on the request-scoped logger already injected by ObservabilityMiddleware.
func (h *Handler) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		logctx.FromOr(r.Context(), h.log).Info("http_access",
			observability.F("method", r.Method),
			observability.F("route", routeFromContext(r.Context())),
			observability.F("path", r.URL.Path),
			observability.F("status", lrw.status),
			observability.F("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

// withTrace creates a server span for the request using OTel and W3C propagation.
func (h *Handler) withTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer("storefront.http")
		parentCtx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		route := routeFromContext(parentCtx)
		spanName := route
		if spanName == "unknown" {
			spanName = r.Method + " " + r.URL.Path
		}
		template := route
		if idx := strings.Index(template, " "); idx >= 0 {
			template = template[idx+1:]
		}
		if template == "unknown" || template == "" {
			template = r.URL.Path
		}

		ctxWithSpan, span := tracer.Start(parentCtx,
			spanName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", template),
				attribute.String("http.target", r.URL.Path),
				attribute.String("http.user_agent", r.UserAgent()),
			),
		)
		defer span.End()

		next.ServeHTTP(w, r.WithContext(ctxWithSpan))
	})
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeDomainError(w http.ResponseWriter, err error) {
	var fieldErrs domainCheckout.FieldErrors
	var bizErr *gateway.BusinessError
	switch {
	case errors.As(err, &fieldErrs):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  fieldErrs.Error(),
			"fields": map[string]string(fieldErrs),
		})
	case errors.As(err, &bizErr):
		writeError(w, http.StatusUnprocessableEntity, err)
	case errors.Is(err, domainCart.ErrInvalidQuantity),
		errors.Is(err, domainCart.ErrEmptyCouponCode):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, domainCheckout.ErrEmptyCart):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, appCheckout.ErrTransactionNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domainPayment.ErrDeclined):
		writeError(w, http.StatusPaymentRequired, err)
	case errors.Is(err, domainPayment.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, err)
	case errors.Is(err, gateway.ErrUnavailable):
		writeError(w, http.StatusBadGateway, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

type routeKey struct{}

// contextWithRoute stores the stable route template in the context so downstream
// metrics/logging can rely on low-cardinality values.
func contextWithRoute(ctx context.Context, route string) context.Context {
	if route == "" {
		return ctx
	}
	return context.WithValue(ctx, routeKey{}, route)
}

func routeFromContext(ctx context.Context) string {
	if ctx == nil {
		return "unknown"
	}
	if route, ok := ctx.Value(routeKey{}).(string); ok && route != "" {
		return route
	}
	return "unknown"
}
