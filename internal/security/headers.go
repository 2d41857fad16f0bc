package security

import (
	"net/http"
	"strconv"
)

// Headers sets browser hardening headers on every response. HSTS is only sent
// over TLS.
type Headers struct {
	HSTSMaxAge int
}

func (h Headers) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("X-Frame-Options", "DENY")
		headers.Set("Referrer-Policy", "no-referrer")
		if r.TLS != nil && h.HSTSMaxAge > 0 {
			headers.Set("Strict-Transport-Security", "max-age="+strconv.Itoa(h.HSTSMaxAge))
		}
		next.ServeHTTP(w, r)
	})
}
