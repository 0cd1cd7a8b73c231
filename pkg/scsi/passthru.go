package scsi

import (
	"errors"
	"sync"
	"time"

	"github.com/emergingrobotics/go-efiscsi/pkg/devicepath"
	"github.com/emergingrobotics/go-efiscsi/pkg/raw"
)

// ExtScsiPassThru is a handle on a SCSI channel that can address and
// enumerate many devices. Everything except Mode needs an exclusive session.
type ExtScsiPassThru struct {
	table raw.ExtScsiPassThruProtocol
	pool  raw.Pool
	trace tracer
	mu    sync.RWMutex
}

// NewExtScsiPassThru wraps an extended pass thru table handed over by
// protocol discovery
func NewExtScsiPassThru(table raw.ExtScsiPassThruProtocol, pool raw.Pool, opts ...Option) (*ExtScsiPassThru, error) {
	if table == nil {
		return nil, ErrNilTable
	}
	if pool == nil {
		return nil, ErrNilPool
	}
	return &ExtScsiPassThru{
		table: table,
		pool:  pool,
		trace: newTracer("ext_scsi_pass_thru", newOptions(opts)),
	}, nil
}

// GUID returns the contract identifier of the wrapped table
func (e *ExtScsiPassThru) GUID() raw.GUID {
	return raw.ExtScsiPassThruProtocolGUID
}

// Mode returns a copy of the channel mode
func (e *ExtScsiPassThru) Mode() raw.ExtScsiPassThruMode {
	if m := e.table.Mode(); m != nil {
		return *m
	}
	return raw.ExtScsiPassThruMode{}
}

// Exclusive acquires the channel. It fails with ErrHandleBusy while another
// session holds it.
func (e *ExtScsiPassThru) Exclusive() (*PassThruSession, error) {
	if !e.mu.TryLock() {
		return nil, e.trace.reject("Exclusive", ErrHandleBusy)
	}
	return &PassThruSession{e: e}, nil
}

// PassThruSession is exclusive access to a channel
type PassThruSession struct {
	session
	e *ExtScsiPassThru
}

// Release gives the channel back. Further calls fail with ErrSessionReleased.
func (ps *PassThruSession) Release() error {
	return ps.release(ps.e.mu.Unlock)
}

func (ps *PassThruSession) Mode() raw.ExtScsiPassThruMode {
	return ps.e.Mode()
}

// PassThru sends req to the device at loc. It blocks until the command
// completes unless Async is given and the channel supports non-blocking I/O.
func (ps *PassThruSession) PassThru(loc Location, req *Request, opts ...ExecOption) error {
	const op = "PassThru"
	if err := ps.acquire(); err != nil {
		return err
	}
	defer ps.mu.Unlock()

	if req == nil {
		return ps.e.trace.reject(op, NewError(raw.StatusInvalidParameter, op))
	}
	target, err := loc.Target.wide(op)
	if err != nil {
		return ps.e.trace.reject(op, err)
	}
	if err := req.validate(op, ps.e.Mode().IoAlign); err != nil {
		return ps.e.trace.reject(op, err)
	}

	eo := newExecOptions(opts)
	async := eo.event != nil
	p, err := req.begin(async)
	if err != nil {
		return ps.e.trace.reject(op, err)
	}

	start := time.Now()
	st := ps.e.table.PassThru(target, loc.Lun, (*raw.ExtScsiIoScsiRequestPacket)(p), eo.event)
	req.end(p, st, async)
	return ps.e.trace.finish(op, start, st)
}

// NextTargetLun returns the device following cursor, or the first device
// when cursor is nil. The cursor is not modified and remains owned by the
// caller. The end of the channel is an error for which IsNoMoreDevices is
// true.
func (ps *PassThruSession) NextTargetLun(cursor *Location) (Location, error) {
	const op = "GetNextTargetLun"
	if err := ps.acquire(); err != nil {
		return Location{}, err
	}
	defer ps.mu.Unlock()

	target := raw.StartCursor()
	var lun uint64
	if cursor != nil {
		var err error
		if target, err = cursor.Target.wide(op); err != nil {
			return Location{}, ps.e.trace.reject(op, err)
		}
		lun = cursor.Lun
	}
	in := target

	start := time.Now()
	st := ps.e.table.GetNextTargetLun(&target, &lun)
	if err := ps.e.trace.finish(op, start, st); err != nil {
		return Location{}, err
	}
	if err := checkFresh(op, in, target); err != nil {
		return Location{}, err
	}
	return Location{Target: newTarget(target, ps.e.pool), Lun: lun}, nil
}

// NextTarget returns the target following cursor, or the first target when
// cursor is nil.
func (ps *PassThruSession) NextTarget(cursor *Target) (*Target, error) {
	const op = "GetNextTarget"
	if err := ps.acquire(); err != nil {
		return nil, err
	}
	defer ps.mu.Unlock()

	target := raw.StartCursor()
	if cursor != nil {
		var err error
		if target, err = cursor.wide(op); err != nil {
			return nil, ps.e.trace.reject(op, err)
		}
	}
	in := target

	start := time.Now()
	st := ps.e.table.GetNextTarget(&target)
	if err := ps.e.trace.finish(op, start, st); err != nil {
		return nil, err
	}
	if err := checkFresh(op, in, target); err != nil {
		return nil, err
	}
	return newTarget(target, ps.e.pool), nil
}

// BuildDevicePath returns the device path node for loc. The node is callee
// allocated; release it with DevicePath.Release.
func (ps *PassThruSession) BuildDevicePath(loc Location) (*DevicePath, error) {
	const op = "BuildDevicePath"
	if err := ps.acquire(); err != nil {
		return nil, err
	}
	defer ps.mu.Unlock()

	target, err := loc.Target.wide(op)
	if err != nil {
		return nil, ps.e.trace.reject(op, err)
	}

	var path []byte
	start := time.Now()
	st := ps.e.table.BuildDevicePath(target, loc.Lun, &path)
	if err := ps.e.trace.finish(op, start, st); err != nil {
		return nil, err
	}
	if path == nil {
		return nil, NewError(raw.StatusProtocolError, op)
	}
	return &DevicePath{o: owned{buf: path, pool: ps.e.pool}}, nil
}

// TargetLun resolves a device path node to a location. The node is only
// borrowed for the duration of the call.
func (ps *PassThruSession) TargetLun(path devicepath.Node) (Location, error) {
	const op = "GetTargetLun"
	if err := ps.acquire(); err != nil {
		return Location{}, err
	}
	defer ps.mu.Unlock()

	if !path.Valid() {
		return Location{}, ps.e.trace.reject(op, NewError(raw.StatusInvalidParameter, op))
	}

	var target []byte
	var lun uint64
	start := time.Now()
	st := ps.e.table.GetTargetLun(path.Bytes(), &target, &lun)
	if err := ps.e.trace.finish(op, start, st); err != nil {
		return Location{}, err
	}
	if target == nil {
		return Location{}, NewError(raw.StatusProtocolError, op)
	}
	return Location{Target: newTarget(target, ps.e.pool), Lun: lun}, nil
}

// ResetChannel resets the whole channel
func (ps *PassThruSession) ResetChannel() error {
	if err := ps.acquire(); err != nil {
		return err
	}
	defer ps.mu.Unlock()

	start := time.Now()
	st := ps.e.table.ResetChannel()
	return ps.e.trace.finish("ResetChannel", start, st)
}

// ResetTargetLun resets one device
func (ps *PassThruSession) ResetTargetLun(loc Location) error {
	const op = "ResetTargetLun"
	if err := ps.acquire(); err != nil {
		return err
	}
	defer ps.mu.Unlock()

	target, err := loc.Target.wide(op)
	if err != nil {
		return ps.e.trace.reject(op, err)
	}

	start := time.Now()
	st := ps.e.table.ResetTargetLun(target, loc.Lun)
	return ps.e.trace.finish(op, start, st)
}

// ForEachDevice walks the channel from the start and calls fn for every
// device. The walk keeps its own copy of each location as the cursor, so fn
// may release the location it is given; otherwise it is released when fn
// returns. fn must copy anything it keeps and may use the session.
func (ps *PassThruSession) ForEachDevice(fn func(Location) error) error {
	var cursor *Location
	for {
		loc, err := ps.NextTargetLun(cursor)
		if IsNoMoreDevices(err) {
			return nil
		}
		if err != nil {
			return err
		}
		cursor = &Location{Target: NewTarget(loc.Target.Bytes()), Lun: loc.Lun}

		err = fn(loc)
		if rerr := loc.Release(); rerr != nil && !errors.Is(rerr, ErrReleased) && err == nil {
			err = rerr
		}
		if err != nil {
			return err
		}
	}
}

// checkFresh rejects a table that handed back the cursor instead of a new
// allocation
func checkFresh(op string, in, out []byte) error {
	if out == nil {
		return NewError(raw.StatusProtocolError, op)
	}
	if len(in) > 0 && len(out) > 0 && &in[0] == &out[0] {
		return NewError(raw.StatusProtocolError, op)
	}
	return nil
}
