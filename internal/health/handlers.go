package health

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/noah-isme/kitstore/internal/common"
)

var ready atomic.Bool

func init() { ready.Store(true) }

// SetReady flips the readiness flag, e.g. while the server drains on shutdown.
func SetReady(v bool) { ready.Store(v) }

// Checker represents dependencies that can be probed for readiness.
type Checker interface {
	PingDB(ctx context.Context, timeout time.Duration) error
	PingRedis(ctx context.Context, timeout time.Duration) error
}

// KitCounter reports how many kits the catalog holds.
type KitCounter interface {
	CountKits(ctx context.Context) (int64, error)
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Checker      Checker
	Kits         KitCounter
	DBTimeout    time.Duration
	RedisTimeout time.Duration
	Now          func() time.Time
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports readiness based on dependency probes.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.Checker == nil || !ready.Load() {
		common.JSONError(w, http.StatusServiceUnavailable, "NOT_READY", "dependencies unavailable", nil)
		return
	}
	ctx := r.Context()
	status := map[string]string{"db": "ok", "redis": "ok"}
	code := http.StatusOK
	if err := h.Checker.PingDB(ctx, h.dbTimeout()); err != nil {
		status["db"] = err.Error()
		code = http.StatusServiceUnavailable
	}
	if err := h.Checker.PingRedis(ctx, h.redisTimeout()); err != nil {
		status["redis"] = err.Error()
		code = http.StatusServiceUnavailable
	}
	common.JSON(w, code, status)
}

// API reports database connectivity for the storefront. It always answers 200
// and describes failures in the body.
func (h Handler) API(w http.ResponseWriter, r *http.Request) {
	if h.Checker == nil {
		common.JSON(w, http.StatusOK, map[string]any{"status": "error", "database": "disconnected", "message": "database not configured"})
		return
	}
	if err := h.Checker.PingDB(r.Context(), h.dbTimeout()); err != nil {
		common.JSON(w, http.StatusOK, map[string]any{"status": "error", "database": "disconnected", "message": err.Error()})
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"database":  "connected",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

// DBInfo reports the number of kits in the catalog.
func (h Handler) DBInfo(w http.ResponseWriter, r *http.Request) {
	if h.Kits == nil {
		common.JSON(w, http.StatusOK, map[string]any{"database": "error", "message": "database not configured"})
		return
	}
	count, err := h.Kits.CountKits(r.Context())
	if err != nil {
		common.JSON(w, http.StatusOK, map[string]any{"database": "error", "message": err.Error()})
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"database":  "connected",
		"kit_count": count,
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

func (h Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h Handler) dbTimeout() time.Duration {
	if h.DBTimeout <= 0 {
		return 500 * time.Millisecond
	}
	return h.DBTimeout
}

func (h Handler) redisTimeout() time.Duration {
	if h.RedisTimeout <= 0 {
		return 300 * time.Millisecond
	}
	return h.RedisTimeout
}
