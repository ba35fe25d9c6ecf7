package middleware

import "net/http"

// MaxBodySize caps request bodies at n bytes. Reads past the limit fail, so
// the handler sees a decode error instead of buffering an unbounded body.
func MaxBodySize(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if n > 0 && r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}
			next.ServeHTTP(w, r)
		})
	}
}
