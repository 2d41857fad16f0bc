package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestHandlerMiddlewareEnforcesLimit(t *testing.T) {
	handler := Handler{
		Limiter: Limiter{Store: memory.NewStore()},
		Config: Config{
			Key:    ByClientIP("login"),
			Window: time.Minute,
			Max:    2,
		},
	}
	counted := handler.Middleware(okHandler())

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
		req.Header.Set("X-Forwarded-For", ip)
		rr := httptest.NewRecorder()
		counted.ServeHTTP(rr, req)
		return rr
	}

	first := send("10.0.0.1")
	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))
	require.Equal(t, http.StatusOK, send("10.0.0.1").Code)

	blocked := send("10.0.0.1")
	require.Equal(t, http.StatusTooManyRequests, blocked.Code)
	require.Contains(t, blocked.Body.String(), "RATE_LIMITED")
	require.NotEmpty(t, blocked.Header().Get("Retry-After"))

	require.Equal(t, http.StatusOK, send("10.0.0.2").Code)
}

func TestLimiterWithRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store, err := limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: "ratelimit"})
	require.NoError(t, err)

	l := Limiter{Store: store}
	ctx := context.Background()
	allowed, remaining, _, err := l.Allow(ctx, "register:1.2.3.4", time.Minute, 1)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, 0, remaining)

	allowed, _, _, err = l.Allow(ctx, "register:1.2.3.4", time.Minute, 1)
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestLimiterWithoutStoreAllows(t *testing.T) {
	allowed, remaining, _, err := Limiter{}.Allow(context.Background(), "k", time.Second, 3)
	require.NoError(t, err)
	require.True(t, allowed)
	require.Equal(t, 3, remaining)
}

type failingStore struct{ limiter.Store }

func (failingStore) Get(context.Context, string, limiter.Rate) (limiter.Context, error) {
	return limiter.Context{}, errors.New("store down")
}

func TestHandlerMiddlewareOnError(t *testing.T) {
	var seen error
	handler := Handler{
		Limiter: Limiter{Store: failingStore{}},
		Config: Config{
			Key:    func(*http.Request) string { return "err" },
			Window: time.Second,
			Max:    1,
		},
		OnError: func(err error) { seen = err },
	}

	rr := httptest.NewRecorder()
	handler.Middleware(okHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/register", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.ErrorContains(t, seen, "store down")
}
