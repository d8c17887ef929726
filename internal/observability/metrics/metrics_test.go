package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	var out dto.Metric
	if err := c.WithLabelValues(labels...).Write(&out); err != nil {
		t.Fatalf("read counter: %v", err)
	}
	return out.GetCounter().GetValue()
}

func TestChatMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewChatMetrics(reg)

	m.ObserveTurn("reply", 0.4)
	m.ObserveTurn("tool", 1.8)
	m.ObserveTurn("tool", 2.1)
	m.ObserveRejected("busy")
	m.ObserveToolCall("bookAppointment", false)
	m.ObserveToolCall("lookupWeather", true)
	m.ObserveSession(nil)
	m.ObserveSession(errors.New("boom"))

	if got := counterValue(t, m.turnsTotal, "tool"); got != 2 {
		t.Fatalf("expected 2 tool turns, got %v", got)
	}
	if got := counterValue(t, m.rejectedTotal, "busy"); got != 1 {
		t.Fatalf("expected 1 busy rejection, got %v", got)
	}
	if got := counterValue(t, m.toolCallsTotal, "lookupWeather", "error"); got != 1 {
		t.Fatalf("expected unknown tool error counted, got %v", got)
	}
	if got := counterValue(t, m.sessionsTotal, "error"); got != 1 {
		t.Fatalf("expected 1 failed session, got %v", got)
	}
}

func TestSiteMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSiteMetrics(reg)
	m.ObserveFormSubmission("accepted")
	m.SetActiveVisitors(3)

	var out dto.Metric
	if err := m.activeVisitors.Write(&out); err != nil {
		t.Fatalf("read gauge: %v", err)
	}
	if out.GetGauge().GetValue() != 3 {
		t.Fatalf("expected 3 active visitors, got %v", out.GetGauge().GetValue())
	}
	if got := counterValue(t, m.formSubmissions, "accepted"); got != 1 {
		t.Fatalf("expected 1 accepted submission, got %v", got)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var chat *ChatMetrics
	chat.ObserveTurn("reply", 0.1)
	chat.ObserveRejected("busy")
	chat.ObserveToolCall("bookAppointment", false)
	chat.ObserveSession(nil)

	var site *SiteMetrics
	site.ObserveFormSubmission("accepted")
	site.SetActiveVisitors(1)
}
