package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"webhook-gateway/internal/auth"
	"webhook-gateway/internal/dedup"
	"webhook-gateway/internal/models"
	"webhook-gateway/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "gateway-test-secret"

// fakeBackend implements service.Repository and dedup.ClaimStore with
// in-memory maps, plus a no-op hand-off publisher.
type fakeBackend struct {
	mu      sync.Mutex
	orders  map[string]*models.OrderSnapshot
	records map[string]*models.ProcessingRecord
	handoff int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		orders:  make(map[string]*models.OrderSnapshot),
		records: make(map[string]*models.ProcessingRecord),
	}
}

func (f *fakeBackend) UpsertOrder(_ context.Context, o *models.OrderSnapshot) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.orders[o.OrderID]
	if ok && existing.UpdateTime >= o.UpdateTime {
		return false, nil
	}
	clone := *o
	f.orders[o.OrderID] = &clone
	return true, nil
}

func (f *fakeBackend) GetOrderByID(_ context.Context, orderID string) (*models.OrderSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order not found: %s", orderID)
	}
	clone := *o
	return &clone, nil
}

func (f *fakeBackend) GetOrdersByShop(_ context.Context, shopID string, limit, offset int) ([]models.OrderSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.OrderSnapshot{}
	for _, o := range f.orders {
		if o.ShopID == shopID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeBackend) ClaimEvent(_ context.Context, rec *models.ProcessingRecord) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.records[rec.EventIdentity]; exists {
		return false, nil
	}
	clone := *rec
	f.records[rec.EventIdentity] = &clone
	return true, nil
}

func (f *fakeBackend) GetProcessingRecord(_ context.Context, identity string) (*models.ProcessingRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[identity]
	if !ok {
		return nil, nil
	}
	clone := *rec
	return &clone, nil
}

func (f *fakeBackend) RecordOutcome(_ context.Context, identity string, success bool, msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[identity]
	if !ok {
		return fmt.Errorf("no record for identity %s", identity)
	}
	rec.Processed = true
	rec.Success = success
	rec.ErrorMessage = msg
	return nil
}

func (f *fakeBackend) PublishOrderReceived(_ context.Context, _ *models.OrderReceivedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handoff++
	return nil
}

func testRouter(t *testing.T) (*gin.Engine, *fakeBackend, *auth.Verifier) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	backend := newFakeBackend()
	verifier := auth.NewVerifier(testSecret, 300*time.Second)
	deduplicator := dedup.NewDeduplicator(backend, nil)
	svc := service.NewWebhookService(verifier, deduplicator, backend, backend, nil, false)

	router := gin.New()
	NewHandler(svc).SetupRoutes(router)
	return router, backend, verifier
}

func postWebhook(router *gin.Engine, body []byte, sig, ts string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	if sig != "" {
		req.Header.Set(HeaderSignature, sig)
	}
	if ts != "" {
		req.Header.Set(HeaderTimestamp, ts)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func signedBody(t *testing.T, v *auth.Verifier, event *models.WebhookEvent) (body []byte, sig, ts string) {
	t.Helper()
	body, err := json.Marshal(event)
	require.NoError(t, err)
	ts = strconv.FormatInt(time.Now().Unix(), 10)
	return body, v.Sign(body, ts), ts
}

func shippedEvent() *models.WebhookEvent {
	return &models.WebhookEvent{
		Timestamp: time.Now().Unix(),
		Type:      models.EventTypeOrderStatusUpdate,
		ShopID:    "shop1",
		Data: models.OrderEventData{
			OrderID:    "o1",
			Status:     models.OrderStatusShipped,
			Items:      json.RawMessage(`[{"sku":"sku-1","quantity":1}]`),
			UpdateTime: time.Now().Unix(),
		},
	}
}

func decodeAck(t *testing.T, w *httptest.ResponseRecorder) WebhookResponse {
	t.Helper()
	var resp WebhookResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestReceiveWebhookAcceptsValidDelivery(t *testing.T) {
	router, backend, verifier := testRouter(t)
	body, sig, ts := signedBody(t, verifier, shippedEvent())

	w := postWebhook(router, body, sig, ts)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeAck(t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, "o1", resp.OrderID)
	assert.Equal(t, "accepted", resp.Message)

	backend.mu.Lock()
	defer backend.mu.Unlock()
	require.Contains(t, backend.orders, "o1")
	assert.Equal(t, models.OrderStatusShipped, backend.orders["o1"].Status)
	assert.Equal(t, 1, backend.handoff)
}

func TestReceiveWebhookMissingHeadersIs401(t *testing.T) {
	router, _, verifier := testRouter(t)
	body, sig, ts := signedBody(t, verifier, shippedEvent())

	tests := []struct {
		name    string
		sig, ts string
	}{
		{"no signature", "", ts},
		{"no timestamp", sig, ""},
		{"neither", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postWebhook(router, body, tt.sig, tt.ts)
			require.Equal(t, http.StatusUnauthorized, w.Code)
			assert.False(t, decodeAck(t, w).Success)
		})
	}
}

func TestReceiveWebhookTamperedBodyIs401(t *testing.T) {
	router, backend, verifier := testRouter(t)
	body, sig, ts := signedBody(t, verifier, shippedEvent())

	tampered := bytes.Replace(body, []byte(`"o1"`), []byte(`"o2"`), 1)
	w := postWebhook(router, tampered, sig, ts)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Empty(t, backend.orders)
}

func TestReceiveWebhookMalformedPayloadIs400(t *testing.T) {
	router, _, verifier := testRouter(t)

	body := []byte(`{"type": "ORDER_STATUS_UPDATE", "shop_id": ""}`)
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	w := postWebhook(router, body, verifier.Sign(body, ts), ts)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid payload", decodeAck(t, w).Message)
}

func TestReceiveWebhookDuplicateStillAcks200(t *testing.T) {
	router, backend, verifier := testRouter(t)
	body, sig, ts := signedBody(t, verifier, shippedEvent())

	first := postWebhook(router, body, sig, ts)
	require.Equal(t, http.StatusOK, first.Code)

	second := postWebhook(router, body, sig, ts)
	require.Equal(t, http.StatusOK, second.Code)
	resp := decodeAck(t, second)
	assert.True(t, resp.Success)
	assert.Equal(t, "already in flight", resp.Message)

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Equal(t, 1, backend.handoff, "redelivery must not be handed off again")
}

func TestGetOrder(t *testing.T) {
	router, backend, _ := testRouter(t)
	backend.orders["o1"] = &models.OrderSnapshot{
		OrderID: "o1", ShopID: "shop1", Status: models.OrderStatusPaid, UpdateTime: 10,
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/orders/o1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"order_id":"o1"`)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/orders/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetShopOrders(t *testing.T) {
	router, backend, _ := testRouter(t)
	backend.orders["o1"] = &models.OrderSnapshot{OrderID: "o1", ShopID: "shop1", Status: models.OrderStatusPaid}
	backend.orders["o2"] = &models.OrderSnapshot{OrderID: "o2", ShopID: "other", Status: models.OrderStatusPaid}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/shops/shop1/orders", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"o1"`)
	assert.NotContains(t, w.Body.String(), `"o2"`)
}

func TestHealthAndReady(t *testing.T) {
	router, _, _ := testRouter(t)

	for _, path := range []string{"/health", "/ready"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}
