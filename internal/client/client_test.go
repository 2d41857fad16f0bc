package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kitstore/internal/cart"
	"github.com/noah-isme/kitstore/internal/checkout"
	"github.com/noah-isme/kitstore/internal/client"
	"github.com/noah-isme/kitstore/internal/localstore"
	"github.com/noah-isme/kitstore/internal/order"
	"github.com/noah-isme/kitstore/internal/pricing"
)

func newClient(t *testing.T, srv *httptest.Server, storage localstore.Storage) *client.Client {
	t.Helper()
	c, err := client.New(client.Options{
		BaseURL:     srv.URL + "/",
		HTTP:        srv.Client(),
		Storage:     storage,
		MaxAttempts: 3,
		Backoff:     time.Millisecond,
		NewKey:      func() string { return "key-1" },
	})
	require.NoError(t, err)
	return c
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := client.New(client.Options{})
	require.Error(t, err)
}

func TestKitsDecodesStringPrices(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/kits", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"id":1,"name":"Home","team":"Arsenal","price":"29.99","stock":10}]}`))
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	kits, err := newClient(t, srv, nil).Kits(context.Background())
	require.NoError(t, err)
	require.Len(t, kits, 1)
	require.Equal(t, pricing.Money(2999), kits[0].Price)
}

func TestSearchKitsEscapesQueryAndRetries(t *testing.T) {
	var hits atomic.Int32
	r := chi.NewRouter()
	r.Get("/api/kits/search/{query}", func(w http.ResponseWriter, req *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		require.Equal(t, "real madrid", chi.URLParam(req, "query"))
		_, _ = w.Write([]byte(`{"data":null}`))
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	kits, err := newClient(t, srv, nil).SearchKits(context.Background(), " real madrid ")
	require.NoError(t, err)
	require.Empty(t, kits)
	require.NotNil(t, kits)
	require.Equal(t, int32(2), hits.Load())
}

func TestKitsSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST","message":"Search query is required"}}`))
	}))
	defer srv.Close()

	_, err := newClient(t, srv, nil).SearchKits(context.Background(), "x")
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.Status)
	require.Equal(t, "BAD_REQUEST", apiErr.Code)
	require.Equal(t, "Search query is required", apiErr.Message)
}

func TestCreateOrderSendsTokenAndKeyWithoutRetry(t *testing.T) {
	ctx := context.Background()
	storage := localstore.NewMemory()
	require.NoError(t, storage.Set(ctx, localstore.KeyToken, []byte("tok-123")))

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/orders", r.URL.Path)
		require.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		require.Equal(t, "key-1", r.Header.Get(client.IdempotencyHeader))

		var req order.Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, pricing.Money(8017), req.FinalTotal)

		_, _ = w.Write([]byte(`{"success":true,"message":"Order placed successfully!","orderNumber":"ORD-1","orderId":7,"total":80.17,"itemsCount":2}`))
	}))
	defer srv.Close()

	resp, err := newClient(t, srv, storage).CreateOrder(ctx, order.Request{
		Items:      []order.Item{{ID: 1, Quantity: 1, Size: "M", Price: 2999}, {ID: 2, Quantity: 1, Size: "L", Price: 3499}},
		FinalTotal: 8017,
	})
	require.NoError(t, err)
	require.False(t, resp.Failed())
	require.Equal(t, "ORD-1", resp.OrderNumber)
	require.Equal(t, int64(7), resp.OrderID)
	require.Equal(t, int32(1), hits.Load())
}

func TestCreateOrderDecodesFailureBodies(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
		want   string
	}{
		"string error":   {http.StatusOK, `{"success":false,"error":"Payment declined"}`, "Payment declined"},
		"object error":   {http.StatusBadRequest, `{"success":false,"error":{"code":"VALIDATION_ERROR","message":"Order must have items"}}`, "Order must have items"},
		"conflict reply": {http.StatusConflict, `{"error":{"code":"IDEMPOTENT_REPLAY","message":"Request already processed"}}`, "Request already processed"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				hits.Add(1)
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			resp, err := newClient(t, srv, nil).CreateOrder(context.Background(), order.Request{})
			require.NoError(t, err)
			require.True(t, resp.Failed())
			require.Equal(t, tc.want, resp.Error)
			require.Equal(t, int32(1), hits.Load())
		})
	}
}

func TestCreateOrderWithoutErrorFieldIsNotAFailure(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusBadRequest, http.StatusInternalServerError} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"orderNumber":"ORD-42","orderId":42}`))
		}))
		resp, err := newClient(t, srv, nil).CreateOrder(context.Background(), order.Request{})
		srv.Close()
		require.NoError(t, err)
		require.False(t, resp.Failed(), "status %d", status)
		require.Empty(t, resp.Error)
		require.Equal(t, "ORD-42", resp.OrderNumber)
	}
}

func TestCreateOrderTransportAndDecodeFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}))
	c := newClient(t, srv, nil)
	_, err := c.CreateOrder(context.Background(), order.Request{})
	require.Error(t, err)

	srv.Close()
	_, err = c.CreateOrder(context.Background(), order.Request{})
	require.Error(t, err)
}

func checkoutThroughClient(t *testing.T, status int, body string) (*checkout.Flow, *cart.Store, checkout.Confirmation, error) {
	t.Helper()
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	storage := localstore.NewMemory()
	c := newClient(t, srv, storage)
	store := cart.NewStore(ctx, cart.Config{Storage: storage})
	store.Add(ctx, &cart.Product{ID: 1, Name: "Home", Team: "Ajax", Price: 2999}, cart.SizeM)

	flow, err := checkout.New(ctx, checkout.Config{Cart: store, Orders: c, Storage: storage})
	require.NoError(t, err)
	flow.UpdateShipping(checkout.Shipping{Name: "A B", Email: "a@b.c", Address: "1 Main St", City: "X", State: "Y", Postal: "1"})
	require.NoError(t, flow.Next())
	flow.UpdatePayment(checkout.Payment{CardNumber: "4242", Expiry: "12/30", CVV: "123"})
	require.NoError(t, flow.Next())
	conf, err := flow.Submit(ctx)
	return flow, store, conf, err
}

func TestClientSatisfiesCheckout(t *testing.T) {
	flow, store, conf, err := checkoutThroughClient(t, http.StatusOK, `{"success":true,"orderNumber":"ORD-99","orderId":1,"total":40.38,"itemsCount":1}`)
	require.NoError(t, err)
	require.Equal(t, "ORD-99", conf.OrderNumber)
	require.Equal(t, checkout.StateConfirmed, flow.State())
	require.Equal(t, 0, store.Count())
}

func TestCheckoutConfirmsServerErrorWithoutErrorField(t *testing.T) {
	flow, store, conf, err := checkoutThroughClient(t, http.StatusInternalServerError, `{"orderNumber":"ORD-42","orderId":42}`)
	require.NoError(t, err)
	require.Equal(t, "ORD-42", conf.OrderNumber)
	require.Equal(t, checkout.StateConfirmed, flow.State())
	require.Nil(t, flow.Err())
	require.Equal(t, 0, store.Count())
}

func TestCheckoutKeepsCartWhenErrorFieldPresent(t *testing.T) {
	flow, store, _, err := checkoutThroughClient(t, http.StatusOK, `{"success":false,"error":"Out of stock"}`)
	require.EqualError(t, err, "Out of stock")
	require.Equal(t, checkout.StateReview, flow.State())
	require.Equal(t, 1, store.Count())
}

func TestLoginStoresSession(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var creds client.Credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		if creds.Password != "secret123" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"code":"INVALID_CREDENTIALS","message":"Invalid credentials"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"message":"Login successful","token":"jwt","user":{"id":1,"email":"fan@example.com","username":"fan","firstName":"Sam","lastName":"Fan"}}`))
	}))
	defer srv.Close()

	storage := localstore.NewMemory()
	c := newClient(t, srv, storage)

	bad, err := c.Login(ctx, client.Credentials{Email: "fan@example.com", Password: "nope"})
	require.NoError(t, err)
	require.Equal(t, "Invalid credentials", bad.Error)
	require.Nil(t, c.CurrentUser(ctx))

	res, err := c.Login(ctx, client.Credentials{Email: "fan@example.com", Password: "secret123"})
	require.NoError(t, err)
	require.Empty(t, res.Error)
	require.Equal(t, "jwt", res.Token)

	user := c.CurrentUser(ctx)
	require.NotNil(t, user)
	require.Equal(t, "Sam Fan", user.DisplayName())
	token, err := storage.Get(ctx, localstore.KeyToken)
	require.NoError(t, err)
	require.Equal(t, "jwt", string(token))

	require.NoError(t, c.Logout(ctx))
	require.Nil(t, c.CurrentUser(ctx))
	_, err = storage.Get(ctx, localstore.KeyToken)
	require.ErrorIs(t, err, localstore.ErrNotFound)
}

func TestRegisterDuplicate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/register", r.URL.Path)
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":{"code":"USER_EXISTS","message":"Email or username already exists"}}`))
	}))
	defer srv.Close()

	res, err := newClient(t, srv, localstore.NewMemory()).Register(context.Background(), client.Registration{Email: "a@b.c", Username: "abc", Password: "password1"})
	require.NoError(t, err)
	require.Equal(t, "Email or username already exists", res.Error)
}

func TestCurrentUserIgnoresMalformedBlob(t *testing.T) {
	ctx := context.Background()
	storage := localstore.NewMemory()
	require.NoError(t, storage.Set(ctx, localstore.KeyUser, []byte(`{not json`)))
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	require.Nil(t, newClient(t, srv, storage).CurrentUser(ctx))
}

func TestHealthAndDBInfo(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","database":"connected","timestamp":"2024-08-01T12:00:00Z"}`))
	})
	r.Get("/api/db-info", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"database":"connected","kit_count":12}`))
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	c := newClient(t, srv, nil)
	h, err := c.Health(context.Background())
	require.NoError(t, err)
	require.Equal(t, "connected", h.Database)

	info, err := c.DBInfo(context.Background())
	require.NoError(t, err)
	require.Equal(t, 12, info.KitCount)
}
