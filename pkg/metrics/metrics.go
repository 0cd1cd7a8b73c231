package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/emergingrobotics/go-efiscsi/pkg/raw"
)

// Recorder counts interface table calls and their latency. Pass it to
// scsi.WithMetrics.
type Recorder struct {
	CallsTotal   *prometheus.CounterVec
	CallDuration *prometheus.HistogramVec
}

// NewRecorder creates the collectors and registers them on reg
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		CallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scsi_calls_total",
				Help: "Number of SCSI interface table calls by protocol, operation and status",
			},
			[]string{"protocol", "op", "status"},
		),
		CallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scsi_call_duration_seconds",
				Help:    "Latency of SCSI interface table calls",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
			[]string{"protocol", "op"},
		),
	}

	if err := reg.Register(r.CallsTotal); err != nil {
		return nil, err
	}
	if err := reg.Register(r.CallDuration); err != nil {
		reg.Unregister(r.CallsTotal)
		return nil, err
	}
	return r, nil
}

// MustNewRecorder is NewRecorder that panics on registration failure
func MustNewRecorder(reg prometheus.Registerer) *Recorder {
	r, err := NewRecorder(reg)
	if err != nil {
		panic(err)
	}
	return r
}

// Observe records one call
func (r *Recorder) Observe(protocol, op string, status raw.Status, elapsed time.Duration) {
	r.CallsTotal.WithLabelValues(protocol, op, status.String()).Inc()
	r.CallDuration.WithLabelValues(protocol, op).Observe(elapsed.Seconds())
}
