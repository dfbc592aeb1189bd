package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func RequestLogger(logger zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)

		event := logger.Debug()
		if rec.status >= 500 {
			event = logger.Error()
		} else if rec.status >= 400 {
			event = logger.Warn()
		}

		event.
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Int("status", rec.status).
			Dur("latency", time.Since(start)).
			Str("client_ip", req.RemoteAddr).
			Msg("http request")
	})
}

// MetricsHandler serves the default registry behind the request logger.
func MetricsHandler(logger zerolog.Logger) http.Handler {
	RegisterMetrics()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return RequestLogger(logger, mux)
}
