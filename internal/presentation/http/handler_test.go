package httppresentation

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appAuth "github.com/JoshDFN/ic-commerce/internal/application/auth"
	appCart "github.com/JoshDFN/ic-commerce/internal/application/cart"
	appCheckout "github.com/JoshDFN/ic-commerce/internal/application/checkout"
	appSession "github.com/JoshDFN/ic-commerce/internal/application/session"
	"github.com/JoshDFN/ic-commerce/internal/infrastructure/id"
	"github.com/JoshDFN/ic-commerce/internal/infrastructure/memory"
	sessionstore "github.com/JoshDFN/ic-commerce/internal/infrastructure/session"
	stripeinfra "github.com/JoshDFN/ic-commerce/internal/infrastructure/stripe"
)

// newTestServer assembles the demo stack: in-memory ledger, fake processor,
// memory session store.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	ledger := memory.NewLedger([]memory.Product{
		{VariantID: "v1", Name: "Espresso Cup Set", Slug: "espresso-cup-set", Price: 2400, Currency: "USD"},
		{VariantID: "v2", Name: "Burr Grinder", Slug: "burr-grinder", Price: 8900, Currency: "USD"},
	}, "pk_test_demo")

	idGen := id.NewGenerator()
	sessions := appSession.NewService(sessionstore.NewMemoryStore(), idGen, nil)
	resolver := appAuth.NewAnonymousResolver()
	carts := appCart.NewService(ledger, sessions, resolver, nil, nil)
	orchestrator := appCheckout.NewOrchestrator(
		ledger, stripeinfra.NewFakeProcessor(), carts, sessions, resolver, nil, idGen,
		appCheckout.ShippingPolicy{Fee: 799, FreeThreshold: 10000},
		nil,
	)

	handler := NewHandler(carts, orchestrator, sessions, nil, nil)
	srv := httptest.NewServer(handler.Router())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any, out any) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestGetCart_EmptySession(t *testing.T) {
	srv := newTestServer(t)

	var body struct {
		Cart *cartView `json:"cart"`
	}
	resp := doJSON(t, http.MethodGet, srv.URL+"/cart", nil, &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, body.Cart)
}

func TestCartFlow(t *testing.T) {
	srv := newTestServer(t)

	var body struct {
		Cart *cartView `json:"cart"`
	}
	resp := doJSON(t, http.MethodPost, srv.URL+"/cart/items",
		map[string]any{"variant_id": "v1", "quantity": 2}, &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, body.Cart)
	assert.Equal(t, int64(5599), body.Cart.Total)
	require.Len(t, body.Cart.LineItems, 1)
	liID := body.Cart.LineItems[0].ID

	resp = doJSON(t, http.MethodPatch, srv.URL+"/cart/items",
		map[string]any{"line_item_id": liID, "quantity": 1}, &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, body.Cart.ItemCount)

	var errBody map[string]string
	resp = doJSON(t, http.MethodPost, srv.URL+"/cart/coupon",
		map[string]any{"code": "BOGUS"}, &errBody)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "Invalid or inactive promotion code", errBody["error"])

	resp = doJSON(t, http.MethodPost, srv.URL+"/cart/coupon",
		map[string]any{"code": "WELCOME10"}, &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(-240), body.Cart.PromoTotal)
}

func TestCheckoutFlow(t *testing.T) {
	srv := newTestServer(t)

	var cartBody struct {
		Cart *cartView `json:"cart"`
	}
	resp := doJSON(t, http.MethodPost, srv.URL+"/cart/items",
		map[string]any{"variant_id": "v2", "quantity": 1}, &cartBody)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var started startCheckoutResponse
	resp = doJSON(t, http.MethodPost, srv.URL+"/checkout/start", nil, &started)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, int64(799), started.ShippingTotal)
	assert.Equal(t, int64(9699), started.EstimatedTotal)
	assert.Equal(t, "pk_test_demo", started.PublishableKey)
	require.NotEmpty(t, started.TransactionID)

	// Invalid form is rejected with field messages.
	var fieldBody struct {
		Fields map[string]string `json:"fields"`
	}
	resp = doJSON(t, http.MethodPost, srv.URL+"/checkout/confirm", map[string]any{
		"transaction_id": started.TransactionID,
		"name":           "Jane Doe",
		"email":          "jane@example.com",
		"address":        "123 Main Street",
		"city":           "Springfield",
		"zip":            "ABCDE",
	}, &fieldBody)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "Please enter a valid ZIP code (e.g., 10001 or 10001-1234)", fieldBody.Fields["Zip"])

	var confirmed confirmCheckoutResponse
	resp = doJSON(t, http.MethodPost, srv.URL+"/checkout/confirm", map[string]any{
		"transaction_id": started.TransactionID,
		"name":           "Jane Doe",
		"email":          "jane@example.com",
		"address":        "123 Main Street",
		"city":           "Springfield",
		"zip":            "62704",
	}, &confirmed)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ORD-000001", confirmed.OrderNumber)
	assert.Equal(t, int64(9699), confirmed.ChargedTotal)

	// The settled order is detached from the session; the shopper starts
	// over with no cart.
	resp = doJSON(t, http.MethodGet, srv.URL+"/cart", nil, &cartBody)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, cartBody.Cart)
}

func TestCheckoutStart_EmptyCart(t *testing.T) {
	srv := newTestServer(t)

	var errBody map[string]string
	resp := doJSON(t, http.MethodPost, srv.URL+"/checkout/start", nil, &errBody)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodDelete, srv.URL+"/cart", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
