package metrics

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fixedCallLog int64

func (f fixedCallLog) Count(context.Context) (int64, error) { return int64(f), nil }

type fixedRecordings int

func (f fixedRecordings) Count() (int, error) { return int(f), nil }

func TestCollector(t *testing.T) {
	c := NewCollector(fixedCallLog(7), fixedRecordings(3), time.Now())

	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		t.Fatalf("Register: %v", err)
	}

	expected := strings.NewReader(`
# HELP callserver_recordings_stored Voicemail recordings currently on disk
# TYPE callserver_recordings_stored gauge
callserver_recordings_stored 3
# HELP callserver_relay_calls_total Total agent-to-patient relay calls logged
# TYPE callserver_relay_calls_total counter
callserver_relay_calls_total 7
`)
	err := testutil.GatherAndCompare(reg, expected,
		"callserver_relay_calls_total",
		"callserver_recordings_stored",
	)
	if err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}
}

func TestCollectorNilProviders(t *testing.T) {
	c := NewCollector(nil, nil, time.Now())

	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		t.Fatalf("Register: %v", err)
	}
	// Only uptime should be exported; gathering must not panic.
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(mfs) != 1 || mfs[0].GetName() != "callserver_uptime_seconds" {
		t.Errorf("expected only uptime metric, got %d families", len(mfs))
	}
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCounters(reg)

	c.CallbacksTotal.WithLabelValues("menu").Inc()
	c.CallbacksTotal.WithLabelValues("menu").Inc()
	c.VoicemailsStored.Inc()

	if got := testutil.ToFloat64(c.CallbacksTotal.WithLabelValues("menu")); got != 2 {
		t.Errorf("callbacks{menu} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.VoicemailsStored); got != 1 {
		t.Errorf("voicemails stored = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.NotifyFailures); got != 0 {
		t.Errorf("notify failures = %v, want 0", got)
	}
}
