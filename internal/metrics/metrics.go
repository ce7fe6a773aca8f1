// Package metrics содержит Prometheus-метрики ядра координации обменов.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Число зарегистрированных соединений
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "skillswap_ws_connections_active",
		Help: "Number of authenticated websocket connections",
	})

	// HandshakesTotal считает рукопожатия по результату
	HandshakesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillswap_ws_handshakes_total",
		Help: "Websocket handshakes by result",
	}, []string{"result"})

	// SlowConsumersTotal считает соединения, отключённые из-за переполнения очереди
	SlowConsumersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skillswap_ws_slow_consumers_total",
		Help: "Connections dropped because their send queue was full",
	})

	// EventsDeliveredTotal считает события, поставленные в очереди соединений
	EventsDeliveredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillswap_ws_events_delivered_total",
		Help: "Events enqueued to connections by event type",
	}, []string{"type"})

	// CommandsTotal считает входящие команды по типу и результату
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillswap_ws_commands_total",
		Help: "Inbound commands by type and result",
	}, []string{"command", "result"})

	// TradeTransitionsTotal считает попытки смены статуса обмена
	TradeTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillswap_trade_transitions_total",
		Help: "Trade status transition attempts by target status and result",
	}, []string{"to", "result"})

	// MessagesSentTotal считает сохранённые сообщения по типу
	MessagesSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillswap_messages_sent_total",
		Help: "Persisted chat messages by message type",
	}, []string{"type"})

	// Длительность расчёта рекомендаций
	RecommendationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "skillswap_recommendation_duration_seconds",
		Help:    "Recommendation engine query duration",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms .. ~4s
	}, []string{"operation"})
)
