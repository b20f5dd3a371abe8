// monitor/monitor.go
package monitor

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	OnlinePlayers    prometheus.Gauge
	ActiveRooms      prometheus.Gauge
	SeatedPlayers    prometheus.Gauge
	MessagesReceived prometheus.Counter
	MessageLatency   prometheus.Histogram
	Actions          *prometheus.CounterVec
	ActionLatency    prometheus.Histogram
	Settlements      *prometheus.CounterVec
}

// NewMetrics 创建指标并注册到 reg
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OnlinePlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_players",
			Help:      "Number of connected players",
		}),
		ActiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Number of open rooms",
		}),
		SeatedPlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "seated_players",
			Help:      "Number of players holding a seat",
		}),
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total number of messages received",
		}),
		MessageLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "message_latency_seconds",
			Help:      "Message processing latency",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		}),
		Actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "room_actions_total",
			Help:      "Room actions by type and result",
		}, []string{"type", "result"}),
		ActionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "room_action_latency_seconds",
			Help:      "Time from enqueue to reply for room actions",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		Settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_total",
			Help:      "Wallet settlements by kind and result",
		}, []string{"kind", "result"}),
	}

	reg.MustRegister(
		m.OnlinePlayers,
		m.ActiveRooms,
		m.SeatedPlayers,
		m.MessagesReceived,
		m.MessageLatency,
		m.Actions,
		m.ActionLatency,
		m.Settlements,
	)

	return m
}

// Monitor 包装指标。nil *Monitor 的所有方法都是空操作，方便测试。
type Monitor struct {
	metrics      *Metrics
	registry     *prometheus.Registry
	startTime    time.Time
	requestCount atomic.Int64
}

func NewMonitor(namespace string) *Monitor {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := &Monitor{
		metrics:   NewMetrics(namespace, reg),
		registry:  reg,
		startTime: time.Now(),
	}
	uptime := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "uptime_seconds",
		Help:      "Seconds since the process started",
	}, func() float64 { return time.Since(m.startTime).Seconds() })
	reg.MustRegister(uptime)
	return m
}

// Handler 返回 /metrics 处理器
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry 用于测试中读取指标
func (m *Monitor) Registry() *prometheus.Registry { return m.registry }

func (m *Monitor) IncOnlinePlayers() {
	if m == nil {
		return
	}
	m.metrics.OnlinePlayers.Inc()
}

func (m *Monitor) DecOnlinePlayers() {
	if m == nil {
		return
	}
	m.metrics.OnlinePlayers.Dec()
}

func (m *Monitor) SetActiveRooms(count int) {
	if m == nil {
		return
	}
	m.metrics.ActiveRooms.Set(float64(count))
}

func (m *Monitor) AddSeatedPlayers(delta int) {
	if m == nil {
		return
	}
	m.metrics.SeatedPlayers.Add(float64(delta))
}

func (m *Monitor) IncMessagesReceived() {
	if m == nil {
		return
	}
	m.metrics.MessagesReceived.Inc()
	m.requestCount.Add(1)
}

// RequestCount 收到的消息总数
func (m *Monitor) RequestCount() int64 {
	if m == nil {
		return 0
	}
	return m.requestCount.Load()
}

func (m *Monitor) ObserveMessageLatency(duration time.Duration) {
	if m == nil {
		return
	}
	m.metrics.MessageLatency.Observe(duration.Seconds())
}

// ObserveAction 记录一次房间动作
func (m *Monitor) ObserveAction(actionType, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.metrics.Actions.WithLabelValues(actionType, result).Inc()
	m.metrics.ActionLatency.Observe(duration.Seconds())
}

// ObserveSettlement 记录一次结算
func (m *Monitor) ObserveSettlement(kind, result string) {
	if m == nil {
		return
	}
	m.metrics.Settlements.WithLabelValues(kind, result).Inc()
}
