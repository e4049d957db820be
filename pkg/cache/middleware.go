package cache

import (
	"bytes"
	"net/http"
)

type captureWriter struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
	written    bool
}

func (w *captureWriter) WriteHeader(code int) {
	if !w.written {
		w.statusCode = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *captureWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.statusCode = http.StatusOK
		w.written = true
	}
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Middleware serves GET responses from c, keyed by the decoded request path
// so that keys match the principals and handles ledger events carry. Hits
// carry X-Cache: HIT and misses X-Cache: MISS. Requests with a query string
// bypass the cache. Only 200 responses are stored, and only when c was not
// invalidated while the handler ran. A nil cache passes every request
// through.
func Middleware(c *LRUCache) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if c == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet || r.URL.RawQuery != "" {
				next.ServeHTTP(w, r)
				return
			}

			key := r.URL.Path
			if cached, ok := c.Get(key); ok {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Cache", "HIT")
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write(cached)
				return
			}

			gen := c.Generation()
			cw := &captureWriter{ResponseWriter: w}
			cw.Header().Set("X-Cache", "MISS")
			next.ServeHTTP(cw, r)

			if cw.statusCode == http.StatusOK {
				c.SetIfGeneration(key, cw.body.Bytes(), gen)
			}
		})
	}
}
