package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	ordersCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Total number of orders created",
		},
		[]string{"payment_method"},
	)

	paymentsConfirmedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_confirmed_total",
			Help: "Payment confirmations by verification result",
		},
		[]string{"result"},
	)

	notificationsSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total number of order notifications",
		},
		[]string{"event_type", "result"},
	)

	stalePendingOrders = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stale_pending_orders",
			Help: "Unpaid pending orders older than a day at the last report",
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(ordersCreatedTotal)
	prometheus.MustRegister(paymentsConfirmedTotal)
	prometheus.MustRegister(notificationsSentTotal)
	prometheus.MustRegister(stalePendingOrders)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

func RecordOrderCreated(paymentMethod string) {
	ordersCreatedTotal.WithLabelValues(paymentMethod).Inc()
}

func RecordPaymentConfirmed(result string) {
	paymentsConfirmedTotal.WithLabelValues(result).Inc()
}

func RecordNotificationSent(eventType, result string) {
	notificationsSentTotal.WithLabelValues(eventType, result).Inc()
}

func SetStalePendingOrders(n int) {
	stalePendingOrders.Set(float64(n))
}
