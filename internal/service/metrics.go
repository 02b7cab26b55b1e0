package service

import (
	"order-status-service/internal/models"
	"order-status-service/internal/util"
)

// MetricsRecorder receives business metric events of the workflow
type MetricsRecorder interface {
	OrderPaid(order *models.Order)
}

// PrometheusMetrics records workflow metrics on the process registry
type PrometheusMetrics struct{}

func (PrometheusMetrics) OrderPaid(order *models.Order) {
	util.OrdersPaidTotal.Inc()
	util.OrdersPaidAmount.Add(float64(order.TotalAmount))
}
