// File: internal/infra/metrics/admin.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(adminRequestsTotal, alertsTotal) }

var adminRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "admin_requests_total",
		Help: "Management API requests by operation and status.",
	},
	[]string{"operation", "status"}, // status: 'ok', 'unauthorized', 'error'
)

var alertsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "operator_alerts_total",
		Help: "Operator alerts sent for dead-lettered jobs.",
	},
	[]string{"result"},
)

func IncAdminRequest(operation, status string) {
	adminRequestsTotal.WithLabelValues(norm(operation), norm(status)).Inc()
}

func IncAlert(result string) {
	alertsTotal.WithLabelValues(norm(result)).Inc()
}
