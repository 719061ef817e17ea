package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// VerificationCounter 按结果统计完成证明校验
	// （won/invalid_session/bad_signature/quota_exceeded）
	VerificationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unlock_verifications_total",
			Help: "Total number of game completion verifications by outcome",
		},
		[]string{"outcome"},
	)

	UnlockCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "picture_unlocks_total",
			Help: "Total number of pictures unlocked by verified wins",
		},
	)

	LiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "game_sessions_live",
			Help: "Number of game sessions currently held in the registry",
		},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(VerificationCounter)
	prometheus.MustRegister(UnlockCounter)
	prometheus.MustRegister(LiveSessions)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
