package scsi

import (
	"sync"
	"time"

	"github.com/emergingrobotics/go-efiscsi/pkg/raw"
)

// ScsiIo is a handle on one SCSI device. Queries may run concurrently;
// resets and command execution need an exclusive session.
type ScsiIo struct {
	table raw.ScsiIoProtocol
	pool  raw.Pool
	trace tracer
	mu    sync.RWMutex
}

// NewScsiIo wraps a SCSI I/O table handed over by protocol discovery
func NewScsiIo(table raw.ScsiIoProtocol, pool raw.Pool, opts ...Option) (*ScsiIo, error) {
	if table == nil {
		return nil, ErrNilTable
	}
	if pool == nil {
		return nil, ErrNilPool
	}
	return &ScsiIo{
		table: table,
		pool:  pool,
		trace: newTracer("scsi_io", newOptions(opts)),
	}, nil
}

// GUID returns the contract identifier of the wrapped table
func (s *ScsiIo) GUID() raw.GUID {
	return raw.ScsiIoProtocolGUID
}

// IoAlign returns the buffer alignment the device requires
func (s *ScsiIo) IoAlign() uint32 {
	return s.table.IoAlign()
}

// DeviceType queries the peripheral device type
func (s *ScsiIo) DeviceType() (raw.DeviceType, error) {
	if !s.mu.TryRLock() {
		return 0, s.trace.reject("GetDeviceType", ErrHandleBusy)
	}
	defer s.mu.RUnlock()
	return s.deviceType()
}

// DeviceLocation queries the device target and logical unit. The returned
// target is callee allocated; release it with Location.Release.
func (s *ScsiIo) DeviceLocation() (Location, error) {
	if !s.mu.TryRLock() {
		return Location{}, s.trace.reject("GetDeviceLocation", ErrHandleBusy)
	}
	defer s.mu.RUnlock()
	return s.deviceLocation()
}

// Exclusive acquires the handle for mutating operations. It fails with
// ErrHandleBusy while another session or any query holds the handle.
func (s *ScsiIo) Exclusive() (*ScsiIoSession, error) {
	if !s.mu.TryLock() {
		return nil, s.trace.reject("Exclusive", ErrHandleBusy)
	}
	return &ScsiIoSession{h: s}, nil
}

func (s *ScsiIo) deviceType() (raw.DeviceType, error) {
	const op = "GetDeviceType"
	dt := raw.DeviceTypeDisk

	start := time.Now()
	st := s.table.GetDeviceType(&dt)
	if err := s.trace.finish(op, start, st); err != nil {
		return 0, err
	}
	return dt, nil
}

func (s *ScsiIo) deviceLocation() (Location, error) {
	const op = "GetDeviceLocation"
	var target []byte
	var lun uint64

	start := time.Now()
	st := s.table.GetDeviceLocation(&target, &lun)
	if err := s.trace.finish(op, start, st); err != nil {
		return Location{}, err
	}
	if target == nil {
		return Location{}, NewError(raw.StatusProtocolError, op)
	}
	return Location{Target: newTarget(target, s.pool), Lun: lun}, nil
}

// ScsiIoSession is exclusive access to a ScsiIo handle. Calls on a session
// run one at a time in issue order.
type ScsiIoSession struct {
	session
	h *ScsiIo
}

// Release gives the handle back. Further calls fail with ErrSessionReleased.
func (ss *ScsiIoSession) Release() error {
	return ss.release(ss.h.mu.Unlock)
}

func (ss *ScsiIoSession) IoAlign() uint32 {
	return ss.h.IoAlign()
}

func (ss *ScsiIoSession) DeviceType() (raw.DeviceType, error) {
	if err := ss.acquire(); err != nil {
		return 0, err
	}
	defer ss.mu.Unlock()
	return ss.h.deviceType()
}

func (ss *ScsiIoSession) DeviceLocation() (Location, error) {
	if err := ss.acquire(); err != nil {
		return Location{}, err
	}
	defer ss.mu.Unlock()
	return ss.h.deviceLocation()
}

// ResetBus resets the bus the device is attached to
func (ss *ScsiIoSession) ResetBus() error {
	if err := ss.acquire(); err != nil {
		return err
	}
	defer ss.mu.Unlock()

	start := time.Now()
	st := ss.h.table.ResetBus()
	return ss.h.trace.finish("ResetBus", start, st)
}

// ResetDevice resets the device
func (ss *ScsiIoSession) ResetDevice() error {
	if err := ss.acquire(); err != nil {
		return err
	}
	defer ss.mu.Unlock()

	start := time.Now()
	st := ss.h.table.ResetDevice()
	return ss.h.trace.finish("ResetDevice", start, st)
}

// Execute sends req to the device. It blocks until the command completes
// unless Async is given.
func (ss *ScsiIoSession) Execute(req *Request, opts ...ExecOption) error {
	const op = "ExecuteScsiCommand"
	if err := ss.acquire(); err != nil {
		return err
	}
	defer ss.mu.Unlock()

	if req == nil {
		return ss.h.trace.reject(op, NewError(raw.StatusInvalidParameter, op))
	}
	if err := req.validate(op, ss.h.table.IoAlign()); err != nil {
		return ss.h.trace.reject(op, err)
	}

	eo := newExecOptions(opts)
	async := eo.event != nil
	p, err := req.begin(async)
	if err != nil {
		return ss.h.trace.reject(op, err)
	}

	start := time.Now()
	st := ss.h.table.ExecuteScsiCommand(p, eo.event)
	req.end(p, st, async)
	return ss.h.trace.finish(op, start, st)
}
