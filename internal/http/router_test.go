package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/consent"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/domain"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/notify"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/storage"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/toast"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jerseyBody(qty int) map[string]any {
	return map[string]any{"id": "p1", "name": "Jersey", "price": 3500, "quantity": qty}
}

func ivan() map[string]any {
	return map[string]any{"name": "Ivan", "phone": "+70000000000", "email": "ivan@x.ru"}
}

func TestScenario_AddUpdateCheckout(t *testing.T) {
	env := newTestEnv(t)
	b := env.newBrowser(t)

	var count CountResponse
	require.Equal(t, http.StatusOK, b.do(http.MethodGet, "tab-a", "/api/v1/cart/count", nil, &count))
	assert.Equal(t, 0, count.Count)

	var cart CartResponse
	require.Equal(t, http.StatusCreated, b.do(http.MethodPost, "tab-a", "/api/v1/cart/items", jerseyBody(10), &cart))
	assert.Equal(t, 10, cart.Count)
	assert.Equal(t, []toast.Toast{{Level: toast.LevelSuccess, Message: "Jersey added to cart"}}, cart.Toasts)

	require.Equal(t, http.StatusOK, b.do(http.MethodGet, "tab-a", "/api/v1/cart/count", nil, &count))
	assert.Equal(t, 10, count.Count)

	require.Equal(t, http.StatusOK, b.do(http.MethodPut, "tab-a", "/api/v1/cart/items/p1", map[string]any{"quantity": 12}, &cart))
	assert.Equal(t, 12, cart.Count)
	assert.True(t, decimal.NewFromInt(42000).Equal(cart.Total), "total=%s", cart.Total)

	require.Equal(t, http.StatusOK, b.do(http.MethodGet, "tab-a", "/api/v1/cart/count", nil, &count))
	assert.Equal(t, 12, count.Count)

	var snap CheckoutResponse
	require.Equal(t, http.StatusOK, b.do(http.MethodGet, "tab-a", "/api/v1/checkout", nil, &snap))
	assert.Equal(t, domain.CheckoutStatusFilled, snap.Status)

	require.Equal(t, http.StatusOK, b.do(http.MethodPost, "tab-a", "/api/v1/checkout", ivan(), &snap))
	assert.Equal(t, domain.CheckoutStatusSubmitted, snap.Status)
	assert.Equal(t, "order-1", snap.OrderID)

	_, err := env.storage.Get(context.Background(), b.origin(), storage.KeyCart)
	assert.True(t, errors.Is(err, storage.ErrNotFound), "cart record must be removed")

	subs := env.orderAPI.submissions()
	require.Len(t, subs, 1)
	assert.Equal(t, "Ivan", subs[0]["customer_name"])
	assert.EqualValues(t, 42000, subs[0]["total_amount"])

	require.Equal(t, http.StatusOK, b.do(http.MethodGet, "tab-a", "/api/v1/cart/count", nil, &count))
	assert.Equal(t, 0, count.Count)
}

func TestAddItem_BelowMinimum(t *testing.T) {
	env := newTestEnv(t)
	b := env.newBrowser(t)

	var resp ErrorResponse
	require.Equal(t, http.StatusUnprocessableEntity, b.do(http.MethodPost, "tab-a", "/api/v1/cart/items", jerseyBody(5), &resp))
	assert.Equal(t, "below_minimum", resp.Code)
	assert.Equal(t, []toast.Toast{{Level: toast.LevelWarning, Message: "Minimum order quantity is 10"}}, resp.Toasts)

	var cart CartResponse
	b.do(http.MethodGet, "tab-a", "/api/v1/cart", nil, &cart)
	assert.True(t, cart.Empty)
	assert.Equal(t, []domain.LineItem{}, cart.Items)
}

func TestAddItem_InvalidBody(t *testing.T) {
	env := newTestEnv(t)
	b := env.newBrowser(t)

	var resp ErrorResponse
	require.Equal(t, http.StatusUnprocessableEntity, b.do(http.MethodPost, "tab-a", "/api/v1/cart/items",
		map[string]any{"id": "p1", "quantity": 10}, &resp))
	assert.Equal(t, "invalid_item", resp.Code)

	req, err := http.NewRequest(http.MethodPost, env.srv.URL+"/api/v1/cart/items", strings.NewReader("{"))
	require.NoError(t, err)
	httpResp, err := b.client.Do(req)
	require.NoError(t, err)
	httpResp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, httpResp.StatusCode)
}

func TestUpdateQuantity_BelowMinimumLeavesCart(t *testing.T) {
	env := newTestEnv(t)
	b := env.newBrowser(t)
	b.do(http.MethodPost, "tab-a", "/api/v1/cart/items", jerseyBody(12), nil)

	var resp ErrorResponse
	require.Equal(t, http.StatusUnprocessableEntity, b.do(http.MethodPut, "tab-a", "/api/v1/cart/items/p1", map[string]any{"quantity": 9}, &resp))
	assert.Equal(t, "below_minimum", resp.Code)
	require.Len(t, resp.Toasts, 1)
	assert.Equal(t, toast.LevelWarning, resp.Toasts[0].Level)

	var cart CartResponse
	b.do(http.MethodGet, "tab-a", "/api/v1/cart", nil, &cart)
	assert.Equal(t, 12, cart.Items[0].Quantity)

	require.Equal(t, http.StatusNotFound, b.do(http.MethodPut, "tab-a", "/api/v1/cart/items/missing", map[string]any{"quantity": 20}, &resp))
	require.Equal(t, http.StatusBadRequest, b.do(http.MethodPut, "tab-a", "/api/v1/cart/items/p1", map[string]any{}, &resp))
}

func TestRemoveItem_IsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	b := env.newBrowser(t)
	b.do(http.MethodPost, "tab-a", "/api/v1/cart/items", jerseyBody(10), nil)

	var cart CartResponse
	require.Equal(t, http.StatusOK, b.do(http.MethodDelete, "tab-a", "/api/v1/cart/items/p1", nil, &cart))
	assert.True(t, cart.Empty)
	assert.Equal(t, []toast.Toast{{Level: toast.LevelSuccess, Message: "Jersey removed from cart"}}, cart.Toasts)

	require.Equal(t, http.StatusOK, b.do(http.MethodDelete, "tab-a", "/api/v1/cart/items/p1", nil, &cart))
	assert.True(t, cart.Empty)
	assert.Empty(t, cart.Toasts)
}

func TestCheckout_EmptyCart(t *testing.T) {
	env := newTestEnv(t)
	b := env.newBrowser(t)

	var snap CheckoutResponse
	require.Equal(t, http.StatusOK, b.do(http.MethodGet, "tab-a", "/api/v1/checkout", nil, &snap))
	assert.Equal(t, domain.CheckoutStatusEmpty, snap.Status)

	var resp ErrorResponse
	require.Equal(t, http.StatusConflict, b.do(http.MethodPost, "tab-a", "/api/v1/checkout", ivan(), &resp))
	assert.Equal(t, "checkout_not_ready", resp.Code)
	assert.Empty(t, env.orderAPI.submissions())
}

func TestCheckout_ValidationFailure(t *testing.T) {
	env := newTestEnv(t)
	b := env.newBrowser(t)
	b.do(http.MethodPost, "tab-a", "/api/v1/cart/items", jerseyBody(10), nil)
	b.do(http.MethodGet, "tab-a", "/api/v1/checkout", nil, nil)

	var resp ErrorResponse
	require.Equal(t, http.StatusUnprocessableEntity, b.do(http.MethodPost, "tab-a", "/api/v1/checkout",
		map[string]any{"name": "Ivan", "email": "bad"}, &resp))
	assert.Equal(t, "validation_failed", resp.Code)
	assert.ElementsMatch(t, []string{"phone", "email"}, resp.Fields)
	require.Len(t, resp.Toasts, 1)
	assert.Equal(t, toast.LevelWarning, resp.Toasts[0].Level)
	assert.Empty(t, env.orderAPI.submissions())
}

func TestCheckout_FailureKeepsCartAndRetries(t *testing.T) {
	env := newTestEnv(t)
	b := env.newBrowser(t)
	b.do(http.MethodPost, "tab-a", "/api/v1/cart/items", jerseyBody(10), nil)
	before, err := env.storage.Get(context.Background(), b.origin(), storage.KeyCart)
	require.NoError(t, err)

	env.orderAPI.respond(http.StatusBadRequest, `{"detail":"phone is invalid"}`)
	var resp ErrorResponse
	require.Equal(t, http.StatusBadGateway, b.do(http.MethodPost, "tab-a", "/api/v1/checkout", ivan(), &resp))
	assert.Equal(t, "order_rejected", resp.Code)
	assert.Equal(t, "phone is invalid", resp.Details)
	assert.Equal(t, []toast.Toast{{Level: toast.LevelError, Message: "Order failed: phone is invalid"}}, resp.Toasts)

	after, err := env.storage.Get(context.Background(), b.origin(), storage.KeyCart)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	var snap CheckoutResponse
	env.orderAPI.respond(http.StatusCreated, `{"id":"order-2"}`)
	require.Equal(t, http.StatusOK, b.do(http.MethodPost, "tab-a", "/api/v1/checkout", ivan(), &snap))
	assert.Equal(t, domain.CheckoutStatusSubmitted, snap.Status)

	env.orderAPI.mu.Lock()
	keys := append([]string(nil), env.orderAPI.keys...)
	env.orderAPI.mu.Unlock()
	require.Len(t, keys, 2)
	assert.Equal(t, keys[0], keys[1])
}

func TestConsent(t *testing.T) {
	env := newTestEnv(t)
	b := env.newBrowser(t)

	var state consent.State
	require.Equal(t, http.StatusOK, b.do(http.MethodGet, "", "/api/v1/consent", nil, &state))
	assert.False(t, state.Decided)

	require.Equal(t, http.StatusOK, b.do(http.MethodPut, "", "/api/v1/consent", map[string]any{"accepted": true}, &state))
	require.Equal(t, http.StatusOK, b.do(http.MethodGet, "", "/api/v1/consent", nil, &state))
	assert.Equal(t, consent.State{Decided: true, Accepted: true}, state)

	raw, err := env.storage.Get(context.Background(), b.origin(), storage.KeyCookiesAccepted)
	require.NoError(t, err)
	assert.Equal(t, "true", raw)

	var resp ErrorResponse
	assert.Equal(t, http.StatusBadRequest, b.do(http.MethodPut, "", "/api/v1/consent", map[string]any{}, &resp))
}

func TestOriginsAreIsolated(t *testing.T) {
	env := newTestEnv(t)
	alice := env.newBrowser(t)
	bob := env.newBrowser(t)

	alice.do(http.MethodPost, "tab-a", "/api/v1/cart/items", jerseyBody(10), nil)

	var count CountResponse
	bob.do(http.MethodGet, "tab-a", "/api/v1/cart/count", nil, &count)
	assert.Equal(t, 0, count.Count)
	assert.NotEqual(t, alice.origin(), bob.origin())
}

func TestTabHeaderIsAssigned(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.srv.URL + "/api/v1/cart/count")
	require.NoError(t, err)
	resp.Body.Close()

	assert.NotEmpty(t, resp.Header.Get(TabHeader))
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestRequestsWithoutTabID_DoNotAccumulateTabs(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	env := newTestEnvWith(t, storage.NewRedisStorage(client, time.Hour), notify.NewRedisBroadcaster(client))

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		resp, err := http.Get(env.srv.URL + "/api/v1/cart/count")
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		seen[resp.Header.Get(TabHeader)] = true
	}

	assert.Len(t, seen, 50, "every request gets its own tab id")
	assert.Equal(t, 0, env.registry.Len())
	assert.LessOrEqual(t, mr.CurrentConnectionCount(), 2, "no redis subscription per request")
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)
	b := env.newBrowser(t)
	b.do(http.MethodPost, "tab-a", "/api/v1/cart/items", jerseyBody(10), nil)

	var health map[string]string
	require.Equal(t, http.StatusOK, b.do(http.MethodGet, "", "/health", nil, &health))
	assert.Equal(t, "ok", health["status"])

	resp, err := http.Get(env.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `storefront_cart_mutations_total{op="add",result="ok"} 1`)
	assert.Contains(t, string(body), "storefront_open_tabs 1")
}

// A feed opened by tab B follows writes made in tab A of the same origin and
// receives the redirect after B checks out.
func TestEventsFeed_CrossTabAndRedirect(t *testing.T) {
	env := newTestEnv(t)
	b := env.newBrowser(t)
	b.do(http.MethodGet, "tab-a", "/api/v1/cart/count", nil, nil)

	wsURL := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/api/v1/cart/events?tab=tab-b"
	header := http.Header{"Cookie": []string{OriginCookie + "=" + b.origin()}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer conn.Close()

	next := func() Event {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var e Event
		require.NoError(t, conn.ReadJSON(&e))
		return e
	}

	assert.Equal(t, Event{Type: EventConnected, Count: 0}, next())

	b.do(http.MethodPost, "tab-a", "/api/v1/cart/items", jerseyBody(10), nil)
	assert.Equal(t, Event{Type: EventCartUpdated, Count: 10}, next())

	b.do(http.MethodGet, "tab-b", "/api/v1/checkout", nil, nil)
	b.do(http.MethodPost, "tab-b", "/api/v1/checkout", ivan(), nil)

	// the clear happens in tab B itself, then the redirect follows
	assert.Equal(t, Event{Type: EventCartUpdated, Count: 0}, next())
	assert.Equal(t, Event{Type: EventRedirect, Count: 0, Path: "/"}, next())
}
