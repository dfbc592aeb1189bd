package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	ResultOK        = "ok"
	ResultFailed    = "failed"
	ResultFatal     = "fatal"
	ResultMatched   = "matched"
	ResultNoMatch   = "no_match"
	ResultMalformed = "malformed"
)

var (
	registerOnce sync.Once

	connectAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "csta",
			Subsystem: "transport",
			Name:      "connect_attempts_total",
			Help:      "Transport connect attempts by mode and result.",
		},
		[]string{"mode", "result"},
	)
	framesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "csta",
			Subsystem: "frames",
			Name:      "sent_total",
			Help:      "Outbound frames by command and result.",
		},
		[]string{"command", "result"},
	)
	framesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "csta",
			Subsystem: "frames",
			Name:      "received_total",
			Help:      "Inbound frames by decode result.",
		},
		[]string{"result"},
	)
	frameBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "csta",
			Subsystem: "frames",
			Name:      "size_bytes",
			Help:      "Total frame size including the header.",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 6),
		},
		[]string{"direction"},
	)
	loginFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "csta",
			Subsystem: "login",
			Name:      "cleartext_fallbacks_total",
			Help:      "Silent cleartext login retries.",
		},
	)
	keepalivesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "csta",
			Subsystem: "keepalive",
			Name:      "sent_total",
			Help:      "Keepalive frames by result.",
		},
		[]string{"result"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(connectAttempts, framesSent, framesReceived, frameBytes, loginFallbacks, keepalivesSent)
	})
}

func RecordConnectAttempt(mode, result string) {
	RegisterMetrics()
	connectAttempts.WithLabelValues(mode, result).Inc()
}

func RecordFrameSent(command string, size int, ok bool) {
	RegisterMetrics()
	result := ResultFailed
	if ok {
		result = ResultOK
		frameBytes.WithLabelValues("out").Observe(float64(size))
	}
	framesSent.WithLabelValues(command, result).Inc()
}

func RecordFrameReceived(result string, size int) {
	RegisterMetrics()
	framesReceived.WithLabelValues(result).Inc()
	frameBytes.WithLabelValues("in").Observe(float64(size))
}

func RecordLoginFallback() {
	RegisterMetrics()
	loginFallbacks.Inc()
}

func RecordKeepalive(ok bool) {
	RegisterMetrics()
	result := ResultFailed
	if ok {
		result = ResultOK
	}
	keepalivesSent.WithLabelValues(result).Inc()
}
