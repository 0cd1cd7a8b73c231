package scsi

import (
	"time"

	"github.com/go-logr/logr"

	"github.com/emergingrobotics/go-efiscsi/pkg/raw"
)

// Observer receives one observation per interface table call
type Observer interface {
	Observe(protocol, op string, status raw.Status, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) Observe(string, string, raw.Status, time.Duration) {}

type options struct {
	log      logr.Logger
	observer Observer
}

// Option configures a handle
type Option func(*options)

// WithLogger sets the logger used for call tracing
func WithLogger(log logr.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithMetrics sets the observer notified after every call
func WithMetrics(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		log:      logr.Discard(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type execOptions struct {
	event raw.Event
}

// ExecOption configures a single command submission
type ExecOption func(*execOptions)

// Async submits the command without blocking. The table signals event once
// the command has completed; the caller then calls Request.Complete to read
// the outputs. A nil event keeps the call blocking.
func Async(event raw.Event) ExecOption {
	return func(o *execOptions) {
		o.event = event
	}
}

func newExecOptions(opts []ExecOption) execOptions {
	var o execOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
