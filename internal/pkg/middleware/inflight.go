package middleware

import (
	"net/http"
	"sync/atomic"
)

// InFlight tracks the number of requests currently being served. The load
// monitor reads it to fold request pressure into routing decisions.
type InFlight struct {
	count atomic.Int64
}

// NewInFlight creates a new in-flight request tracker.
func NewInFlight() *InFlight {
	return &InFlight{}
}

// Count returns the number of requests currently in flight.
func (f *InFlight) Count() int64 {
	return f.count.Load()
}

// Middleware returns an HTTP middleware that counts in-flight requests.
func (f *InFlight) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.count.Add(1)
		defer f.count.Add(-1)
		next.ServeHTTP(w, r)
	})
}
