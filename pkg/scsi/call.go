package scsi

import (
	"time"

	"github.com/go-logr/logr"

	"github.com/emergingrobotics/go-efiscsi/pkg/raw"
)

// tracer classifies a returned status, records it and turns it into an error
type tracer struct {
	protocol string
	log      logr.Logger
	observer Observer
}

func newTracer(protocol string, o options) tracer {
	return tracer{
		protocol: protocol,
		log:      o.log.WithValues("protocol", protocol),
		observer: o.observer,
	}
}

func (t tracer) finish(op string, start time.Time, st raw.Status) error {
	t.observer.Observe(t.protocol, op, st, time.Since(start))

	if st.IsSuccess() {
		t.log.V(1).Info("call", "op", op)
		return nil
	}

	err := NewError(st, op)
	switch {
	case st.IsWarning(), st == raw.StatusNotFound:
		t.log.V(1).Info("call", "op", op, "status", st.String())
	default:
		t.log.Error(err, "call failed", "op", op)
	}
	return err
}

// reject records an error raised before the table was reached
func (t tracer) reject(op string, err error) error {
	t.log.V(1).Info("call rejected", "op", op, "reason", err.Error())
	return err
}
