package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики дашборда
// ============================================================
//
// Использование:
// - Grafana дашборды для визуализации
// - Alertmanager для уведомлений о недоступности Trading Bridge

// ============ Trading Bridge ============

// BridgeRequestDuration - длительность запросов к Trading Bridge.
// Provisioning идёт через биржу, поэтому buckets до 30 секунд.
var BridgeRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "dashboard",
		Subsystem: "bridge",
		Name:      "request_duration_seconds",
		Help:      "Duration of Trading Bridge requests in seconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	},
	[]string{"operation"}, // ensure_account, add_connector, diagnostics
)

// ProvisioningTotal - результаты provisioning по биржам
var ProvisioningTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dashboard",
		Subsystem: "bridge",
		Name:      "provisioning_total",
		Help:      "Total provisioning attempts by exchange and outcome",
	},
	[]string{"exchange", "outcome"}, // outcome: success, timeout, remote_rejected, transport_error, unknown
)

// ReinitializeRuns - запуски сверки клиентов с Trading Bridge
var ReinitializeRuns = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dashboard",
		Subsystem: "bridge",
		Name:      "reinitialize_runs_total",
		Help:      "Total reconciliation runs by result",
	},
	[]string{"result"}, // complete, partial, failed
)

// BridgeUp - доступность Trading Bridge по последней проверке
var BridgeUp = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "dashboard",
		Subsystem: "bridge",
		Name:      "up",
		Help:      "Whether Trading Bridge responded to the last health check (1 = up)",
	},
)

// ============ API ключи ============

// CredentialsTotal - операции над API ключами
var CredentialsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dashboard",
		Subsystem: "credentials",
		Name:      "operations_total",
		Help:      "Total credential operations by type and result",
	},
	[]string{"operation", "result"}, // operation: create, update, delete, verify
)

// ============ HTTP ============

// HTTPRequestDuration - длительность HTTP запросов к API
var HTTPRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "dashboard",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	},
	[]string{"method", "path", "status"},
)

// WebsocketClients - количество подключённых WebSocket клиентов
var WebsocketClients = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "dashboard",
		Subsystem: "ws",
		Name:      "clients",
		Help:      "Number of connected WebSocket clients",
	},
)
