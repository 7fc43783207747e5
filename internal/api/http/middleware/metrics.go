package middleware

import (
	"net/http"
	"time"
)

// RequestObserver records served requests.
type RequestObserver interface {
	ObserveRequest(route string, status int, d time.Duration)
}

// Metrics observes request durations labelled by the matched route pattern.
type Metrics struct {
	observer RequestObserver
}

func NewMetrics(observer RequestObserver) *Metrics {
	return &Metrics{observer: observer}
}

func (m *Metrics) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := newStatusWriter(w)

		next.ServeHTTP(sw, r)

		// ServeMux sets Pattern on the request it was given.
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.observer.ObserveRequest(route, sw.status, time.Since(start))
	})
}
