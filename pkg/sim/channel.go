package sim

import (
	"bytes"
	"encoding/binary"
	"slices"
	"sync"

	"github.com/go-logr/logr"

	"github.com/emergingrobotics/go-efiscsi/pkg/devicepath"
	"github.com/emergingrobotics/go-efiscsi/pkg/raw"
)

// Op names a table entry point for fault injection and call counting
type Op string

const (
	OpGetDeviceType      Op = "GetDeviceType"
	OpGetDeviceLocation  Op = "GetDeviceLocation"
	OpResetBus           Op = "ResetBus"
	OpResetDevice        Op = "ResetDevice"
	OpExecuteScsiCommand Op = "ExecuteScsiCommand"
	OpPassThru           Op = "PassThru"
	OpGetNextTargetLun   Op = "GetNextTargetLun"
	OpBuildDevicePath    Op = "BuildDevicePath"
	OpGetTargetLun       Op = "GetTargetLun"
	OpResetChannel       Op = "ResetChannel"
	OpResetTargetLun     Op = "ResetTargetLun"
	OpGetNextTarget      Op = "GetNextTarget"
)

// Channel is an emulated SCSI channel. It implements
// raw.ExtScsiPassThruProtocol and hands out per-device raw.ScsiIoProtocol
// tables through ScsiIo.
type Channel struct {
	mu          sync.Mutex
	mode        raw.ExtScsiPassThruMode
	pool        *Pool
	devices     []*Device
	maxTransfer uint32
	faults      map[Op]raw.Status
	calls       map[Op]int
	resets      int
	inflight    sync.WaitGroup
	log         logr.Logger
}

// ChannelOption configures a Channel
type ChannelOption func(*Channel)

// WithMaxTransfer limits the data length of a single command. Zero means no limit.
func WithMaxTransfer(n uint32) ChannelOption {
	return func(c *Channel) {
		c.maxTransfer = n
	}
}

// WithLogger sets the logger used to trace table calls
func WithLogger(log logr.Logger) ChannelOption {
	return func(c *Channel) {
		c.log = log
	}
}

// NewChannel creates a channel allocating its outputs from pool
func NewChannel(pool *Pool, mode raw.ExtScsiPassThruMode, devices []*Device, opts ...ChannelOption) *Channel {
	c := &Channel{
		mode:   mode,
		pool:   pool,
		faults: make(map[Op]raw.Status),
		calls:  make(map[Op]int),
		log:    logr.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	for _, d := range devices {
		c.insert(d)
	}
	return c
}

// Pool returns the allocator that backs the channel's outputs
func (c *Channel) Pool() *Pool {
	return c.pool
}

// AddDevice attaches a device. The enumeration order stays sorted by target then lun.
func (c *Channel) AddDevice(d *Device) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.insert(d)
}

func (c *Channel) insert(d *Device) {
	i, _ := slices.BinarySearchFunc(c.devices, d, compareDevices)
	c.devices = slices.Insert(c.devices, i, d)
}

// RemoveDevice detaches the device at target and lun
func (c *Channel) RemoveDevice(target []byte, lun uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, d := range c.devices {
		if d.matches(target, lun) {
			c.devices = slices.Delete(c.devices, i, i+1)
			return true
		}
	}
	return false
}

// Devices returns the attached devices in enumeration order
func (c *Channel) Devices() []*Device {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.devices)
}

// FailNext makes the next call of op return st without side effects
func (c *Channel) FailNext(op Op, st raw.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.faults[op] = st
}

// Calls returns how many times op has been called
func (c *Channel) Calls(op Op) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[op]
}

// Resets returns how many channel or bus resets have been issued
func (c *Channel) Resets() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resets
}

// Wait blocks until every asynchronous command has completed
func (c *Channel) Wait() {
	c.inflight.Wait()
}

// enter counts a call and consumes an injected fault. The caller holds c.mu.
func (c *Channel) enter(op Op) (raw.Status, bool) {
	c.calls[op]++
	if st, ok := c.faults[op]; ok {
		delete(c.faults, op)
		c.log.V(1).Info("injected fault", "op", string(op), "status", st.String())
		return st, true
	}
	return raw.StatusSuccess, false
}

func (c *Channel) find(target []byte, lun uint64) *Device {
	for _, d := range c.devices {
		if d.matches(target, lun) {
			return d
		}
	}
	return nil
}

func (c *Channel) Mode() *raw.ExtScsiPassThruMode {
	return &c.mode
}

func (c *Channel) PassThru(target []byte, lun uint64, packet *raw.ExtScsiIoScsiRequestPacket, event raw.Event) raw.Status {
	return c.execute(OpPassThru, target, lun, (*raw.ScsiIoScsiRequestPacket)(packet), event)
}

// execute runs a packet against the device at target and lun. With
// non-blocking I/O enabled and an event supplied the data phase runs on a
// goroutine; otherwise the call blocks and signals the event, if any,
// before returning.
func (c *Channel) execute(op Op, target []byte, lun uint64, p *raw.ScsiIoScsiRequestPacket, event raw.Event) raw.Status {
	c.mu.Lock()
	if st, failed := c.enter(op); failed {
		c.mu.Unlock()
		return st
	}
	if p == nil || len(target) != raw.TargetMaxBytes {
		c.mu.Unlock()
		return raw.StatusInvalidParameter
	}
	d := c.find(target, lun)
	if d == nil {
		c.mu.Unlock()
		return raw.StatusInvalidParameter
	}
	if st := prepare(d, p, c.maxTransfer); !st.IsSuccess() {
		c.mu.Unlock()
		return st
	}

	if event != nil && c.mode.Attributes&raw.ExtScsiPassThruAttributesNonBlockIO != 0 {
		c.inflight.Add(1)
		c.mu.Unlock()
		go func() {
			defer c.inflight.Done()
			c.mu.Lock()
			transfer(d, p)
			c.mu.Unlock()
			event.Signal()
		}()
		return raw.StatusSuccess
	}

	transfer(d, p)
	c.mu.Unlock()
	if event != nil {
		event.Signal()
	}
	return raw.StatusSuccess
}

// indexAfter returns the index of the first device after the cursor. The
// cursor must be the start sentinel or a currently attached device.
func (c *Channel) indexAfter(target []byte, lun uint64) (int, raw.Status) {
	if raw.IsStartCursor(target) {
		return 0, raw.StatusSuccess
	}
	for i, d := range c.devices {
		if d.matches(target, lun) {
			return i + 1, raw.StatusSuccess
		}
	}
	return 0, raw.StatusInvalidParameter
}

func (c *Channel) GetNextTargetLun(target *[]byte, lun *uint64) raw.Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	if st, failed := c.enter(OpGetNextTargetLun); failed {
		return st
	}
	if target == nil || lun == nil || len(*target) != raw.TargetMaxBytes {
		return raw.StatusInvalidParameter
	}

	i, st := c.indexAfter(*target, *lun)
	if !st.IsSuccess() {
		return st
	}
	if i >= len(c.devices) {
		return raw.StatusNotFound
	}
	d := c.devices[i]
	*target = c.pool.clone(d.target())
	*lun = d.Lun
	return raw.StatusSuccess
}

func (c *Channel) GetNextTarget(target *[]byte) raw.Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	if st, failed := c.enter(OpGetNextTarget); failed {
		return st
	}
	if target == nil || len(*target) != raw.TargetMaxBytes {
		return raw.StatusInvalidParameter
	}

	cursor := *target
	start := raw.IsStartCursor(cursor)
	if !start && !slices.ContainsFunc(c.devices, func(d *Device) bool {
		return bytes.Equal(d.target(), cursor)
	}) {
		return raw.StatusInvalidParameter
	}
	for _, d := range c.devices {
		if t := d.target(); start || bytes.Compare(t, cursor) > 0 {
			*target = c.pool.clone(t)
			return raw.StatusSuccess
		}
	}
	return raw.StatusNotFound
}

func (c *Channel) BuildDevicePath(target []byte, lun uint64, path *[]byte) raw.Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	if st, failed := c.enter(OpBuildDevicePath); failed {
		return st
	}
	if path == nil || len(target) != raw.TargetMaxBytes {
		return raw.StatusInvalidParameter
	}
	if c.find(target, lun) == nil {
		return raw.StatusNotFound
	}

	// A SCSI node carries a 16-bit target and lun
	if !isZero(target[2:]) || lun > 0xffff {
		return raw.StatusNotFound
	}
	node, err := devicepath.ScsiNode{
		Pun: binary.LittleEndian.Uint16(target[:2]),
		Lun: uint16(lun),
	}.Encode()
	if err != nil {
		return raw.StatusOutOfResources
	}
	*path = c.pool.clone(node)
	return raw.StatusSuccess
}

func (c *Channel) GetTargetLun(path []byte, target *[]byte, lun *uint64) raw.Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	if st, failed := c.enter(OpGetTargetLun); failed {
		return st
	}
	if target == nil || lun == nil {
		return raw.StatusInvalidParameter
	}
	n, err := devicepath.Parse(path)
	if err != nil {
		return raw.StatusInvalidParameter
	}
	s, err := devicepath.DecodeScsi(n)
	if err != nil {
		return raw.StatusUnsupported
	}

	t := make([]byte, raw.TargetMaxBytes)
	binary.LittleEndian.PutUint16(t, s.Pun)
	if c.find(t, uint64(s.Lun)) == nil {
		return raw.StatusNotFound
	}
	*target = c.pool.clone(t)
	*lun = uint64(s.Lun)
	return raw.StatusSuccess
}

func (c *Channel) ResetChannel() raw.Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	if st, failed := c.enter(OpResetChannel); failed {
		return st
	}
	c.resets++
	for _, d := range c.devices {
		d.Resets++
	}
	return raw.StatusSuccess
}

func (c *Channel) ResetTargetLun(target []byte, lun uint64) raw.Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	if st, failed := c.enter(OpResetTargetLun); failed {
		return st
	}
	if len(target) != raw.TargetMaxBytes {
		return raw.StatusInvalidParameter
	}
	d := c.find(target, lun)
	if d == nil {
		return raw.StatusNotFound
	}
	d.Resets++
	return raw.StatusSuccess
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

var _ raw.ExtScsiPassThruProtocol = (*Channel)(nil)
