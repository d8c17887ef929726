package metrics

import "github.com/prometheus/client_golang/prometheus"

// ChatMetrics exposes counters/histograms for the chat widget.
type ChatMetrics struct {
	turnsTotal     *prometheus.CounterVec
	rejectedTotal  *prometheus.CounterVec
	toolCallsTotal *prometheus.CounterVec
	turnLatency    *prometheus.HistogramVec
	sessionsTotal  *prometheus.CounterVec
}

func NewChatMetrics(reg prometheus.Registerer) *ChatMetrics {
	m := &ChatMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Completed chat turns by outcome",
		}, []string{"outcome"}),
		rejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "chat",
			Name:      "rejected_sends_total",
			Help:      "Sends rejected before reaching the remote service",
		}, []string{"reason"}),
		toolCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "chat",
			Name:      "tool_calls_total",
			Help:      "Tool calls requested by the model",
		}, []string{"tool", "status"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "chat",
			Name:      "turn_duration_seconds",
			Help:      "Wall time of a chat turn including tool round trips",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		sessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "chat",
			Name:      "sessions_started_total",
			Help:      "Remote chat sessions created",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.rejectedTotal, m.toolCallsTotal, m.turnLatency, m.sessionsTotal)
	return m
}

func (m *ChatMetrics) ObserveTurn(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(outcome).Inc()
	m.turnLatency.WithLabelValues(outcome).Observe(seconds)
}

func (m *ChatMetrics) ObserveRejected(reason string) {
	if m == nil {
		return
	}
	m.rejectedTotal.WithLabelValues(reason).Inc()
}

func (m *ChatMetrics) ObserveToolCall(tool string, failed bool) {
	if m == nil {
		return
	}
	status := "ok"
	if failed {
		status = "error"
	}
	m.toolCallsTotal.WithLabelValues(tool, status).Inc()
}

func (m *ChatMetrics) ObserveSession(err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.sessionsTotal.WithLabelValues(status).Inc()
}

// SiteMetrics covers page-level interactions outside the chat widget.
type SiteMetrics struct {
	formSubmissions *prometheus.CounterVec
	activeVisitors  prometheus.Gauge
}

func NewSiteMetrics(reg prometheus.Registerer) *SiteMetrics {
	m := &SiteMetrics{
		formSubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "site",
			Name:      "appointment_form_submissions_total",
			Help:      "Appointment form submissions by result",
		}, []string{"result"}),
		activeVisitors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "clinic",
			Subsystem: "site",
			Name:      "active_visitors",
			Help:      "Page views currently holding server-side state",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.formSubmissions, m.activeVisitors)
	return m
}

func (m *SiteMetrics) ObserveFormSubmission(result string) {
	if m == nil {
		return
	}
	m.formSubmissions.WithLabelValues(result).Inc()
}

func (m *SiteMetrics) SetActiveVisitors(n int) {
	if m == nil {
		return
	}
	m.activeVisitors.Set(float64(n))
}
