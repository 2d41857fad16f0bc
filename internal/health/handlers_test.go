package health_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kitstore/internal/health"
)

type stubChecker struct {
	dbErr    error
	redisErr error
}

func (s stubChecker) PingDB(context.Context, time.Duration) error    { return s.dbErr }
func (s stubChecker) PingRedis(context.Context, time.Duration) error { return s.redisErr }

type stubKits struct {
	count int64
	err   error
}

func (s stubKits) CountKits(context.Context) (int64, error) { return s.count, s.err }

var fixedNow = func() time.Time { return time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC) }

func serve(h http.HandlerFunc, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestLive(t *testing.T) {
	rr := serve(health.Handler{}.Live, "/health/live")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}

func TestReady(t *testing.T) {
	cases := []struct {
		name    string
		checker health.Checker
		status  int
		body    string
	}{
		{name: "all up", checker: stubChecker{}, status: http.StatusOK, body: `{"db":"ok","redis":"ok"}`},
		{name: "db down", checker: stubChecker{dbErr: errors.New("db down")}, status: http.StatusServiceUnavailable, body: `{"db":"db down","redis":"ok"}`},
		{name: "redis down", checker: stubChecker{redisErr: errors.New("redis down")}, status: http.StatusServiceUnavailable, body: `{"db":"ok","redis":"redis down"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := health.Handler{Checker: tc.checker, DBTimeout: 10 * time.Millisecond, RedisTimeout: 10 * time.Millisecond}
			rr := serve(h.Ready, "/health/ready")
			require.Equal(t, tc.status, rr.Code)
			require.JSONEq(t, tc.body, rr.Body.String())
		})
	}
}

func TestReadyReportsDrainingServer(t *testing.T) {
	t.Cleanup(func() { health.SetReady(true) })
	h := health.Handler{Checker: stubChecker{}}

	health.SetReady(false)
	rr := serve(h.Ready, "/health/ready")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Contains(t, rr.Body.String(), "NOT_READY")

	health.SetReady(true)
	require.Equal(t, http.StatusOK, serve(h.Ready, "/health/ready").Code)
}

func TestAPIHealth(t *testing.T) {
	rr := serve(health.Handler{Checker: stubChecker{}, Now: fixedNow}.API, "/api/health")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"status":"ok","database":"connected","timestamp":"2024-05-01T08:30:00Z"}`, rr.Body.String())
}

func TestAPIHealthDatabaseDown(t *testing.T) {
	rr := serve(health.Handler{Checker: stubChecker{dbErr: errors.New("dial tcp: refused")}}.API, "/api/health")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"status":"error","database":"disconnected","message":"dial tcp: refused"}`, rr.Body.String())
}

func TestDBInfo(t *testing.T) {
	h := health.Handler{Kits: stubKits{count: 12}, Now: fixedNow}
	rr := serve(h.DBInfo, "/api/db-info")
	require.JSONEq(t, `{"database":"connected","kit_count":12,"timestamp":"2024-05-01T08:30:00Z"}`, rr.Body.String())

	h.Kits = stubKits{err: errors.New("no such table: kits")}
	rr = serve(h.DBInfo, "/api/db-info")
	require.JSONEq(t, `{"database":"error","message":"no such table: kits"}`, rr.Body.String())
}
