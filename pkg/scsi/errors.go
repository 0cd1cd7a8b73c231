package scsi

import (
	"errors"
	"fmt"

	"github.com/emergingrobotics/go-efiscsi/pkg/raw"
)

// Error carries the status an interface table returned for Op. Warnings are
// reported as errors too; none of the call's outputs are exposed alongside
// one. Cause is set when the status was derived from a host failure, such
// as an errno from a backend.
type Error struct {
	Status raw.Status
	Op     string
	Cause  error
}

// Error renders as "op: status" with the cause appended when present
func (e *Error) Error() string {
	if e.Op != "" {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Status.String(), e.Cause)
		}
		return fmt.Sprintf("%s: %s", e.Op, e.Status.String())
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Status.String(), e.Cause)
	}
	return e.Status.String()
}

// Unwrap exposes the host failure behind the status, if any
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on Status alone, ignoring Op and Cause. errors.Is(err,
// NewError(raw.StatusNotFound, "")) therefore detects the end of an
// enumeration from any call, and a short buffer status matches regardless
// of which transfer length was too small.
func (e *Error) Is(target error) bool {
	var scsiErr *Error
	if errors.As(target, &scsiErr) {
		return e.Status == scsiErr.Status
	}
	return false
}

// NewError reports status st for op
func NewError(st raw.Status, op string) *Error {
	return &Error{
		Status: st,
		Op:     op,
	}
}

// NewErrorWithCause reports status st for op, keeping the failure that
// produced it
func NewErrorWithCause(st raw.Status, op string, cause error) *Error {
	return &Error{
		Status: st,
		Op:     op,
		Cause:  cause,
	}
}

// Sentinel errors
var (
	ErrNilTable        = errors.New("scsi: nil interface table")
	ErrNilPool         = errors.New("scsi: nil pool")
	ErrHandleBusy      = errors.New("scsi: handle is held by another caller")
	ErrReleased        = errors.New("scsi: buffer already released")
	ErrSessionReleased = errors.New("scsi: session released")
	ErrRequestPending  = errors.New("scsi: request has an outstanding asynchronous submission")
	ErrNotPending      = errors.New("scsi: request has no asynchronous submission")
)

// StatusOf extracts the firmware status carried by err
func StatusOf(err error) (raw.Status, bool) {
	var scsiErr *Error
	if errors.As(err, &scsiErr) {
		return scsiErr.Status, true
	}
	return 0, false
}

// IsShortBuffer reports whether err signals that a supplied buffer was too
// small. The transfer length fields of the request hold the capacity the
// channel needs and no data was moved.
func IsShortBuffer(err error) bool {
	st, ok := StatusOf(err)
	return ok && (st == raw.StatusBadBufferSize || st == raw.StatusBufferTooSmall)
}

// IsNoMoreDevices reports whether err is the end of an enumeration
func IsNoMoreDevices(err error) bool {
	st, ok := StatusOf(err)
	return ok && st == raw.StatusNotFound
}

// IsWarning reports whether err carries a warning status
func IsWarning(err error) bool {
	st, ok := StatusOf(err)
	return ok && st.IsWarning()
}
