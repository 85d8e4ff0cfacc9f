package service

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/core/domain"
)

type Metrics struct {
	stockAdjustments *prometheus.CounterVec
	transactions     *prometheus.CounterVec
	notifications    *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		stockAdjustments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pharmacy_stock_adjusted_units_total",
				Help: "Units moved through the stock ledger",
			},
			[]string{"direction"},
		),
		transactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pharmacy_transactions_total",
				Help: "Ledger transactions by name and outcome",
			},
			[]string{"name", "result"},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pharmacy_notifications_created_total",
				Help: "Notifications inserted by the notification engine",
			},
			[]string{"type"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.stockAdjustments, m.transactions, m.notifications)
	}
	return m
}

func (m *Metrics) observeAdjustment(delta int) {
	if m == nil || delta == 0 {
		return
	}
	if delta > 0 {
		m.stockAdjustments.WithLabelValues("in").Add(float64(delta))
		return
	}
	m.stockAdjustments.WithLabelValues("out").Add(float64(-delta))
}

func (m *Metrics) observeTransaction(name string, err error) {
	if m == nil {
		return
	}
	result := "committed"
	if err != nil {
		result = domain.Kind(err).String()
	}
	m.transactions.WithLabelValues(name, result).Inc()
}

func (m *Metrics) observeNotification(t domain.NotificationType) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(string(t)).Inc()
}

func orDiscard(log logrus.FieldLogger) logrus.FieldLogger {
	if log != nil {
		return log
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
