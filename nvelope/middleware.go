package nvelope

import (
	"net/http"
)

// Middleware is the wrapping middleware pattern used by much of the
// Go ecosystem.  npoint services accept middleware so that existing
// handlers (CORS, auth, gzip) can run ahead of action chains.
type Middleware func(http.HandlerFunc) http.HandlerFunc

// CombineMiddleware composes middleware.  The first one listed is the
// outermost.
func CombineMiddleware(m ...Middleware) Middleware {
	switch len(m) {
	case 0:
		return func(h http.HandlerFunc) http.HandlerFunc {
			return h
		}
	case 1:
		return m[0]
	default:
		combined := m[len(m)-1]
		for i := len(m) - 2; i >= 0; i-- {
			f := m[i]
			c := combined
			combined = func(h http.HandlerFunc) http.HandlerFunc {
				return f(c(h))
			}
		}
		return combined
	}
}
