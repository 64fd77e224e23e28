package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/JoshDFN/ic-commerce/internal/domain/cart"
	"github.com/JoshDFN/ic-commerce/internal/domain/gateway"
	"github.com/JoshDFN/ic-commerce/internal/domain/payment"
	"github.com/JoshDFN/ic-commerce/internal/observability"
	"github.com/JoshDFN/ic-commerce/internal/observability/logctx"
)

const (
	componentGateway = "gateway_client"
	sessionHeader    = "X-Session-Token"
	maxResponseBytes = 1 << 20

	defaultTimeout = 15 * time.Second
)

// Client talks JSON over HTTP to the order ledger backend. It normalizes the
// three failure families the application distinguishes: cart-not-found,
// business rejection, transport unavailability.
type Client struct {
	baseURL string
	http    *http.Client
	log     observability.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger observability.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     logger.With(observability.F("component", componentGateway)),
	}
}

var _ gateway.Client = (*Client)(nil)

type cartDTO struct {
	ID              string `json:"id"`
	Number          string `json:"number"`
	State           string `json:"state"`
	ItemTotal       int64  `json:"item_total"`
	ShipmentTotal   int64  `json:"shipment_total"`
	AdjustmentTotal int64  `json:"adjustment_total"`
	PromoTotal      int64  `json:"promo_total"`
	TaxTotal        int64  `json:"tax_total"`
	Total           int64  `json:"total"`
	LineItems       []struct {
		ID          string `json:"id"`
		VariantID   string `json:"variant_id"`
		Quantity    int    `json:"quantity"`
		Price       int64  `json:"price"`
		Currency    string `json:"currency"`
		ProductName string `json:"product_name"`
		ProductSlug string `json:"product_slug"`
		ImageURL    string `json:"image_url"`
	} `json:"line_items"`
	Adjustments []struct {
		ID       string `json:"id"`
		Label    string `json:"label"`
		Amount   int64  `json:"amount"`
		Included bool   `json:"included"`
	} `json:"adjustments"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (d *cartDTO) toDomain() *cart.Cart {
	c := &cart.Cart{
		ID:              d.ID,
		Number:          d.Number,
		State:           cart.State(d.State),
		ItemTotal:       d.ItemTotal,
		ShipmentTotal:   d.ShipmentTotal,
		AdjustmentTotal: d.AdjustmentTotal,
		PromoTotal:      d.PromoTotal,
		TaxTotal:        d.TaxTotal,
		Total:           d.Total,
		UpdatedAt:       d.UpdatedAt,
	}
	for _, li := range d.LineItems {
		c.LineItems = append(c.LineItems, cart.LineItem{
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
	for _, a := range d.Adjustments {
		c.Adjustments = append(c.Adjustments, cart.Adjustment{
			ID:       a.ID,
			Label:    a.Label,
			Amount:   a.Amount,
			Included: a.Included,
		})
	}
	return c
}

type errorDTO struct {
	Error string `json:"error"`
}

func (c *Client) GetCart(ctx context.Context, sessionToken string) (*cart.Cart, error) {
	var dto cartDTO
	err := c.call(ctx, http.MethodGet, "/api/cart", nil, sessionToken, &dto)
	if err != nil {
		return nil, err
	}
	return dto.toDomain(), nil
}

func (c *Client) AddToCart(ctx context.Context, variantID string, quantity int, sessionToken string) (*cart.Cart, error) {
	body := map[string]any{"variant_id": variantID, "quantity": quantity}
	var dto cartDTO
	if err := c.call(ctx, http.MethodPost, "/api/cart/add_item", body, sessionToken, &dto); err != nil {
		return nil, err
	}
	return dto.toDomain(), nil
}

func (c *Client) UpdateLineItem(ctx context.Context, lineItemID string, quantity int, sessionToken string) (*cart.Cart, error) {
	body := map[string]any{"line_item_id": lineItemID, "quantity": quantity}
	var dto cartDTO
	if err := c.call(ctx, http.MethodPost, "/api/cart/set_quantity", body, sessionToken, &dto); err != nil {
		return nil, err
	}
	return dto.toDomain(), nil
}

func (c *Client) RemoveFromCart(ctx context.Context, lineItemID string, sessionToken string) (*cart.Cart, error) {
	body := map[string]any{"line_item_id": lineItemID}
	var dto cartDTO
	if err := c.call(ctx, http.MethodPost, "/api/cart/remove_line_item", body, sessionToken, &dto); err != nil {
		return nil, err
	}
	return dto.toDomain(), nil
}

func (c *Client) ApplyCoupon(ctx context.Context, code string, sessionToken string) (*cart.Cart, error) {
	body := map[string]any{"coupon_code": code}
	var dto cartDTO
	if err := c.call(ctx, http.MethodPost, "/api/cart/apply_coupon_code", body, sessionToken, &dto); err != nil {
		return nil, err
	}
	return dto.toDomain(), nil
}

func (c *Client) GetPaymentMethods(ctx context.Context) ([]payment.Method, error) {
	var dtos []struct {
		ID             string `json:"id"`
		Name           string `json:"name"`
		Type           string `json:"type"`
		Active         bool   `json:"active"`
		PublishableKey string `json:"publishable_key"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/payment_methods", nil, "", &dtos); err != nil {
		return nil, err
	}
	methods := make([]payment.Method, 0, len(dtos))
	for _, d := range dtos {
		methods = append(methods, payment.Method{
			ID:             d.ID,
			Name:           d.Name,
			Type:           d.Type,
			Active:         d.Active,
			PublishableKey: d.PublishableKey,
		})
	}
	return methods, nil
}

func (c *Client) CreatePaymentIntent(ctx context.Context, amount int64) (payment.Handle, error) {
	body := map[string]any{"amount": amount}
	var dto struct {
		ClientSecret string `json:"client_secret"`
	}
	if err := c.call(ctx, http.MethodPost, "/api/payment_intents", body, "", &dto); err != nil {
		return "", err
	}
	return payment.Handle(dto.ClientSecret), nil
}

func (c *Client) SetOrderAddress(ctx context.Context, input gateway.AddressInput, sessionToken string) (*cart.Cart, error) {
	addr := func(a gateway.Address) map[string]any {
		return map[string]any{
			"firstname":    a.FirstName,
			"lastname":     a.LastName,
			"address1":     a.Address1,
			"address2":     a.Address2,
			"city":         a.City,
			"state_name":   a.StateName,
			"zipcode":      a.Zipcode,
			"country_code": a.CountryCode,
			"phone":        a.Phone,
		}
	}
	body := map[string]any{
		"email":                    input.Email,
		"ship_address":             addr(input.Shipping),
		"use_shipping_for_billing": input.UseShippingForBilling,
	}
	if input.Billing != nil {
		body["bill_address"] = addr(*input.Billing)
	}
	var dto cartDTO
	if err := c.call(ctx, http.MethodPost, "/api/checkout/address", body, sessionToken, &dto); err != nil {
		return nil, err
	}
	return dto.toDomain(), nil
}

func (c *Client) RecordPayment(ctx context.Context, orderID, processorReference string, status payment.Status, sessionToken string) error {
	body := map[string]any{
		"order_id":  orderID,
		"reference": processorReference,
		"status":    string(status),
	}
	return c.call(ctx, http.MethodPost, "/api/checkout/payments", body, sessionToken, nil)
}

func (c *Client) CompleteCheckout(ctx context.Context, sessionToken string) (*cart.Cart, error) {
	var dto cartDTO
	if err := c.call(ctx, http.MethodPost, "/api/checkout/complete", nil, sessionToken, &dto); err != nil {
		return nil, err
	}
	return dto.toDomain(), nil
}

// call performs one round trip and decodes into out when non-nil. Transport
// and decode faults wrap ErrUnavailable; a 404 on the cart resource maps to
// ErrCartNotFound; any other non-2xx carries the ledger's message as a
// business rejection.
func (c *Client) call(ctx context.Context, method, path string, body any, sessionToken string, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return gateway.Unavailable(fmt.Errorf("encode request: %w", err))
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return gateway.Unavailable(err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sessionToken != "" {
		req.Header.Set(sessionHeader, sessionToken)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		logctx.FromOr(ctx, c.log).Warn("gateway_request_failed",
			observability.F("path", path),
			observability.F("error", err),
		)
		return gateway.Unavailable(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return gateway.Unavailable(fmt.Errorf("read response: %w", err))
	}

	logctx.FromOr(ctx, c.log).Debug("gateway_request_done",
		observability.F("path", path),
		observability.F("status", resp.StatusCode),
		observability.F("latency_seconds", time.Since(start).Seconds()),
	)

	switch {
	case resp.StatusCode == http.StatusNotFound && path == "/api/cart":
		return gateway.ErrCartNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		var e errorDTO
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			return gateway.NewBusinessError(e.Error)
		}
		return gateway.Unavailable(fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return gateway.Unavailable(fmt.Errorf("decode response: %w", err))
	}
	return nil
}
