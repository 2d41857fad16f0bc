package order_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kitstore/internal/order"
	"github.com/noah-isme/kitstore/internal/pricing"
)

type fakeRepo struct {
	saved []order.NewOrder
	err   error
}

func (f *fakeRepo) CreateOrder(_ context.Context, o order.NewOrder) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.saved = append(f.saved, o)
	return int64(len(f.saved)), nil
}

func newHandler(repo *fakeRepo) *order.Handler {
	svc := order.NewService(repo, nil)
	svc.Now = func() time.Time { return time.UnixMilli(1717171717171) }
	return &order.Handler{Service: svc}
}

const validOrder = `{
	"items": [
		{"id": 1, "name": "Home Shirt", "team": "Arsenal", "size": "M", "quantity": 1, "price": 29.99},
		{"id": 2, "name": "Away Shirt", "team": "Chelsea", "size": "L", "quantity": 1, "price": "34.99"}
	],
	"total": 64.98, "shipping": 9.99, "tax": 5.2, "finalTotal": 80.17,
	"customerName": "Jamie Doe", "customerEmail": "jamie@example.com",
	"shippingAddress": "1 Main St, Springfield, IL 62701", "paymentMethod": "Card"
}`

func post(h *order.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.Create(rec, req)
	return rec
}

func TestCreateOrder(t *testing.T) {
	repo := &fakeRepo{}
	rec := post(newHandler(repo), validOrder)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp order.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.False(t, resp.Failed())
	require.Equal(t, "Order placed successfully!", resp.Message)
	require.Equal(t, "ORD-1717171717171", resp.OrderNumber)
	require.Equal(t, int64(1), resp.OrderID)
	require.Equal(t, pricing.Money(8017), resp.Total)
	require.Equal(t, 2, resp.ItemsCount)

	require.Len(t, repo.saved, 1)
	saved := repo.saved[0]
	require.Equal(t, pricing.Money(6498), saved.Subtotal)
	require.Equal(t, 2, saved.ItemsCount)
	require.Equal(t, pricing.Money(8017), saved.FinalAmount)
	require.Equal(t, "Jamie Doe", saved.CustomerName)
}

func TestCreateOrderWithoutItems(t *testing.T) {
	repo := &fakeRepo{}
	rec := post(newHandler(repo), `{"items":[],"finalTotal":0}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp order.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.False(t, resp.Success)
	require.Equal(t, "Order must have items", resp.Error)
	require.Empty(t, repo.saved)
}

func TestCreateOrderRejectsBadLines(t *testing.T) {
	rec := post(newHandler(&fakeRepo{}), `{"items":[{"id":1,"size":"XXL","quantity":1,"price":10}]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Error struct {
			Code    string            `json:"code"`
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "VALIDATION_ERROR", body.Error.Code)
	require.Equal(t, "oneof", body.Error.Details["Request.Items[0].Size"])
}

func TestCreateOrderMalformedJSON(t *testing.T) {
	rec := post(newHandler(&fakeRepo{}), `{"items":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateOrderStorageFailure(t *testing.T) {
	rec := post(newHandler(&fakeRepo{err: errors.New("connection reset")}), validOrder)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp order.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "Failed to save order", resp.Error)
	require.NotContains(t, rec.Body.String(), "connection reset")
}

func TestHandlerWithoutService(t *testing.T) {
	rec := post(&order.Handler{}, validOrder)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestResponseErrorShapes(t *testing.T) {
	cases := map[string]string{
		`{"error":"Invalid credentials"}`:                          "Invalid credentials",
		`{"error":{"code":"DB_ERROR","message":"Failed to save"}}`: "Failed to save",
		`{"error":{"code":"IDEMPOTENT_REPLAY"}}`:                   "IDEMPOTENT_REPLAY",
		`{"success":true,"orderNumber":"ORD-1","error":null}`:      "",
	}
	for raw, want := range cases {
		var resp order.Response
		require.NoError(t, json.Unmarshal([]byte(raw), &resp))
		require.Equal(t, want, resp.Error, raw)
	}
}
