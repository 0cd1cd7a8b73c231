package testutil

import (
	"sync"

	"github.com/emergingrobotics/go-efiscsi/pkg/raw"
)

// Junk is the byte a FakeTable writes into every output it touches
const Junk = 0xa5

// FakeTable implements raw.ScsiIoProtocol and raw.ExtScsiPassThruProtocol.
// Every slot returns the configured status and overwrites its output
// parameters with Junk, including on failure, so callers can check that
// failed outputs are never surfaced. Buffers come from the pool only on
// success.
type FakeTable struct {
	mu     sync.Mutex
	status raw.Status
	mode   raw.ExtScsiPassThruMode
	pool   *FakePool
	calls  int
}

// NewFakeTable creates a table that succeeds until SetStatus is called
func NewFakeTable(pool *FakePool) *FakeTable {
	return &FakeTable{
		pool: pool,
		mode: raw.ExtScsiPassThruMode{AdapterId: Junk, IoAlign: 1},
	}
}

// SetStatus sets the status every slot returns
func (f *FakeTable) SetStatus(st raw.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = st
}

// Calls returns the number of slot invocations
func (f *FakeTable) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *FakeTable) enter() raw.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.status
}

// output returns an n byte junk buffer, pool allocated when st is success
func (f *FakeTable) output(st raw.Status, n int) []byte {
	var b []byte
	if st.IsSuccess() {
		b = f.pool.Allocate(n)
	} else {
		b = make([]byte, n)
	}
	for i := range b {
		b[i] = Junk
	}
	return b
}

func (f *FakeTable) scribble(p *raw.ScsiIoScsiRequestPacket) {
	if p == nil {
		return
	}
	p.InTransferLength = 0xa5a5a5a5
	p.OutTransferLength = 0xa5a5a5a5
	p.SenseDataLength = Junk
	p.HostAdapterStatus = Junk
	p.TargetStatus = Junk
}

func (f *FakeTable) GetDeviceType(deviceType *raw.DeviceType) raw.Status {
	st := f.enter()
	if deviceType != nil {
		*deviceType = Junk
	}
	return st
}

func (f *FakeTable) GetDeviceLocation(target *[]byte, lun *uint64) raw.Status {
	st := f.enter()
	if target != nil && lun != nil {
		*target = f.output(st, raw.TargetMaxBytes)
		*lun = Junk
	}
	return st
}

func (f *FakeTable) ResetBus() raw.Status {
	return f.enter()
}

func (f *FakeTable) ResetDevice() raw.Status {
	return f.enter()
}

func (f *FakeTable) ExecuteScsiCommand(packet *raw.ScsiIoScsiRequestPacket, event raw.Event) raw.Status {
	st := f.enter()
	f.scribble(packet)
	if st.IsSuccess() && event != nil {
		event.Signal()
	}
	return st
}

func (f *FakeTable) IoAlign() uint32 {
	return 1
}

func (f *FakeTable) Mode() *raw.ExtScsiPassThruMode {
	return &f.mode
}

func (f *FakeTable) PassThru(target []byte, lun uint64, packet *raw.ExtScsiIoScsiRequestPacket, event raw.Event) raw.Status {
	return f.ExecuteScsiCommand((*raw.ScsiIoScsiRequestPacket)(packet), event)
}

func (f *FakeTable) GetNextTargetLun(target *[]byte, lun *uint64) raw.Status {
	st := f.enter()
	if target != nil && lun != nil {
		*target = f.output(st, raw.TargetMaxBytes)
		*lun = Junk
	}
	return st
}

func (f *FakeTable) BuildDevicePath(target []byte, lun uint64, path *[]byte) raw.Status {
	st := f.enter()
	if path != nil {
		*path = f.output(st, 8)
	}
	return st
}

func (f *FakeTable) GetTargetLun(path []byte, target *[]byte, lun *uint64) raw.Status {
	st := f.enter()
	if target != nil && lun != nil {
		*target = f.output(st, raw.TargetMaxBytes)
		*lun = Junk
	}
	return st
}

func (f *FakeTable) ResetChannel() raw.Status {
	return f.enter()
}

func (f *FakeTable) ResetTargetLun(target []byte, lun uint64) raw.Status {
	return f.enter()
}

func (f *FakeTable) GetNextTarget(target *[]byte) raw.Status {
	st := f.enter()
	if target != nil {
		*target = f.output(st, raw.TargetMaxBytes)
	}
	return st
}

var (
	_ raw.ScsiIoProtocol          = (*FakeTable)(nil)
	_ raw.ExtScsiPassThruProtocol = (*FakeTable)(nil)
)

// FakePool implements raw.Pool and counts frees
type FakePool struct {
	mu         sync.Mutex
	live       map[*byte]struct{}
	frees      int
	failOnFree bool
}

// NewFakePool creates an empty fake pool
func NewFakePool() *FakePool {
	return &FakePool{live: make(map[*byte]struct{})}
}

// Allocate hands out a tracked buffer of n bytes
func (p *FakePool) Allocate(n int) []byte {
	b := make([]byte, n, max(n, 1))
	p.mu.Lock()
	defer p.mu.Unlock()
	p.live[&b[:1][0]] = struct{}{}
	return b
}

// FreePool returns a tracked buffer
func (p *FakePool) FreePool(buf []byte) raw.Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failOnFree {
		return raw.StatusDeviceError
	}
	if cap(buf) == 0 {
		return raw.StatusInvalidParameter
	}
	key := &buf[:1][0]
	if _, ok := p.live[key]; !ok {
		return raw.StatusInvalidParameter
	}
	delete(p.live, key)
	p.frees++
	return raw.StatusSuccess
}

// Outstanding returns the number of buffers not yet freed
func (p *FakePool) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}

// Frees returns the number of successful FreePool calls
func (p *FakePool) Frees() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frees
}

// SetFailOnFree makes FreePool fail
func (p *FakePool) SetFailOnFree(fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failOnFree = fail
}
