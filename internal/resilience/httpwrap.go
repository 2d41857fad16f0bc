package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"
)

// HTTPClient retries idempotent requests behind a circuit breaker. Only
// requests without a body are accepted.
type HTTPClient struct {
	Client      *http.Client
	Breaker     *Breaker
	Target      string
	BaseBackoff time.Duration
	MaxAttempts int
	Jitter      float64
}

// Do sends req, retrying transport failures and 5xx responses. When every
// attempt returns 5xx the last response is handed back so callers can read the
// error body.
func (cl HTTPClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if cl.Client == nil {
		return nil, errors.New("resilience: http client not configured")
	}
	if req.Body != nil && req.Body != http.NoBody {
		return nil, fmt.Errorf("resilience: refusing to retry %s with a body", req.Method)
	}
	attempts := cl.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var (
		lastResp *http.Response
		lastErr  error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			RetryAttempts.WithLabelValues(cl.target()).Inc()
			timer := time.NewTimer(Backoff(cl.BaseBackoff, attempt-1, cl.Jitter, rand.Float64))
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
		if cl.Breaker != nil && !cl.Breaker.Allow(ctx) {
			lastErr = ErrOpenCircuit
			break
		}
		resp, err := cl.Client.Do(req.Clone(ctx))
		ok := err == nil && resp.StatusCode < http.StatusInternalServerError
		if cl.Breaker != nil {
			cl.Breaker.Report(ctx, ok)
		}
		if ok {
			discard(lastResp)
			return resp, nil
		}
		discard(lastResp)
		lastResp, lastErr = resp, err
		if ctx.Err() != nil {
			break
		}
	}
	if lastResp != nil {
		return lastResp, nil
	}
	return nil, lastErr
}

func (cl HTTPClient) target() string {
	if cl.Target == "" {
		return "default"
	}
	return cl.Target
}

func discard(resp *http.Response) {
	if resp == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
