package server

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "wit",
	Subsystem: "server",
	Name:      "http_requests_total",
	Help:      "Total HTTP requests served, by method and response status.",
}, []string{"method", "status"})

// metricsMiddleware records a requestsTotal observation for every request,
// independent of and in addition to requestLogger's structured log line.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sr, r)
		requestsTotal.WithLabelValues(r.Method, strconv.Itoa(sr.status)).Inc()
	})
}
