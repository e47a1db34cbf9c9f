package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CallLogCounter returns the number of logged relay calls.
type CallLogCounter interface {
	Count(ctx context.Context) (int64, error)
}

// RecordingCounter returns the number of stored voicemail recordings.
type RecordingCounter interface {
	Count() (int, error)
}

// Counters are the event counters the webhook handlers and the recording
// pipeline increment directly.
type Counters struct {
	CallbacksTotal   *prometheus.CounterVec
	VoicemailsStored prometheus.Counter
	NotifyFailures   prometheus.Counter
}

// NewCounters creates and registers the event counters.
func NewCounters(reg prometheus.Registerer) *Counters {
	c := &Counters{
		CallbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "callserver_callbacks_total",
			Help: "Provider callbacks handled, by routing state",
		}, []string{"state"}),
		VoicemailsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "callserver_voicemails_stored_total",
			Help: "Voicemail recordings downloaded and persisted",
		}),
		NotifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "callserver_notify_failures_total",
			Help: "Chat webhook notification attempts that failed",
		}),
	}
	reg.MustRegister(c.CallbacksTotal, c.VoicemailsStored, c.NotifyFailures)
	return c
}

// Collector is a prometheus.Collector that gathers call server state at
// scrape time.
type Collector struct {
	callLog    CallLogCounter
	recordings RecordingCounter
	startTime  time.Time

	// Metric descriptors.
	callLogDesc    *prometheus.Desc
	recordingsDesc *prometheus.Desc
	uptimeDesc     *prometheus.Desc
}

// NewCollector creates a new metrics collector. Any provider may be nil if
// unavailable.
func NewCollector(callLog CallLogCounter, recordings RecordingCounter, startTime time.Time) *Collector {
	return &Collector{
		callLog:    callLog,
		recordings: recordings,
		startTime:  startTime,

		callLogDesc: prometheus.NewDesc(
			"callserver_relay_calls_total",
			"Total agent-to-patient relay calls logged",
			nil, nil,
		),
		recordingsDesc: prometheus.NewDesc(
			"callserver_recordings_stored",
			"Voicemail recordings currently on disk",
			nil, nil,
		),
		uptimeDesc: prometheus.NewDesc(
			"callserver_uptime_seconds",
			"Seconds since the call server process started",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.callLogDesc
	ch <- c.recordingsDesc
	ch <- c.uptimeDesc
}

// Collect implements prometheus.Collector. It queries all providers at
// scrape time.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if c.callLog != nil {
		count, err := c.callLog.Count(ctx)
		if err != nil {
			slog.Error("metrics: failed to count call log", "error", err)
		} else {
			ch <- prometheus.MustNewConstMetric(
				c.callLogDesc, prometheus.CounterValue,
				float64(count),
			)
		}
	}

	if c.recordings != nil {
		count, err := c.recordings.Count()
		if err != nil {
			slog.Error("metrics: failed to count recordings", "error", err)
		} else {
			ch <- prometheus.MustNewConstMetric(
				c.recordingsDesc, prometheus.GaugeValue,
				float64(count),
			)
		}
	}

	ch <- prometheus.MustNewConstMetric(
		c.uptimeDesc, prometheus.GaugeValue,
		time.Since(c.startTime).Seconds(),
	)
}

// Ensure Collector satisfies the prometheus.Collector interface.
var _ prometheus.Collector = (*Collector)(nil)
