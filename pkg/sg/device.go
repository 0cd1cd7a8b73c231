//go:build linux

// Package sg implements the SCSI tables on top of the Linux SCSI generic
// driver. A Device is one /dev/sgN node and serves the SCSI I/O table; a
// Host groups the nodes of one SCSI host and serves the pass thru table.
package sg

import (
	"encoding/binary"
	"math"
	"sync"
	"unsafe"

	"github.com/go-logr/logr"
	"golang.org/x/sys/unix"

	"github.com/emergingrobotics/go-efiscsi/pkg/raw"
	"github.com/emergingrobotics/go-efiscsi/pkg/scsi"
)

type options struct {
	pool    *Pool
	log     logr.Logger
	scanner *Scanner
}

// Option configures a Device or a Host
type Option func(*options)

// WithPool sets the pool that backs returned target ids
func WithPool(p *Pool) Option {
	return func(o *options) {
		o.pool = p
	}
}

// WithLogger sets the logger used for driver calls
func WithLogger(log logr.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithScanner sets the sysfs scanner a Host enumerates with
func WithScanner(s *Scanner) Option {
	return func(o *options) {
		o.scanner = s
	}
}

func newOptions(opts []Option) options {
	o := options{log: logr.Discard()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.pool == nil {
		o.pool = NewPool()
	}
	if o.scanner == nil {
		o.scanner = NewScanner()
	}
	return o
}

// Device is an open SCSI generic node. It implements raw.ScsiIoProtocol.
type Device struct {
	mu   sync.Mutex
	fd   int
	path string
	pool *Pool
	log  logr.Logger
}

// Open opens an sg node and checks that it speaks the sg_io_hdr interface
func Open(path string, opts ...Option) (*Device, error) {
	o := newOptions(opts)

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, StatusFromErrno(errnoOf(err), "opening device "+path)
	}
	d := &Device{fd: fd, path: path, pool: o.pool, log: o.log.WithValues("device", path)}

	v, err := d.Version()
	if err != nil {
		d.Close()
		return nil, err
	}
	if v < MinVersion {
		d.Close()
		return nil, scsi.NewError(raw.StatusIncompatibleVersion, "opening device "+path)
	}
	return d, nil
}

// Close closes the device file
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fd >= 0 {
		err := unix.Close(d.fd)
		d.fd = -1
		if err != nil {
			return StatusFromErrno(errnoOf(err), "closing device")
		}
	}
	return nil
}

// Fd returns the file descriptor
func (d *Device) Fd() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fd
}

// Path returns the device path
func (d *Device) Path() string {
	return d.path
}

// Pool returns the allocator behind GetDeviceLocation
func (d *Device) Pool() *Pool {
	return d.pool
}

func (d *Device) ioctl(cmd uintptr, arg unsafe.Pointer) unix.Errno {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fd < 0 {
		return unix.EBADF
	}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(d.fd), cmd, uintptr(arg))
	if errno != 0 {
		d.log.V(1).Info("ioctl failed", "cmd", cmd, "errno", errno.Error())
	}
	return errno
}

// Version returns the sg driver version number, e.g. 30536 for 3.5.36
func (d *Device) Version() (int, error) {
	var v int32
	if errno := d.ioctl(ioctlSgGetVersionNum, unsafe.Pointer(&v)); errno != 0 {
		return 0, StatusFromErrno(errno, "SG_GET_VERSION_NUM")
	}
	return int(v), nil
}

// ScsiID queries the host, channel, target, lun and peripheral type
func (d *Device) ScsiID() (*SgScsiID, error) {
	var id SgScsiID
	if errno := d.ioctl(ioctlSgGetScsiID, unsafe.Pointer(&id)); errno != 0 {
		return nil, StatusFromErrno(errno, "SG_GET_SCSI_ID")
	}
	return &id, nil
}

// ReservedSize returns the size of the driver's reserved transfer buffer
func (d *Device) ReservedSize() (int, error) {
	var n int32
	if errno := d.ioctl(ioctlSgGetReservedSize, unsafe.Pointer(&n)); errno != 0 {
		return 0, StatusFromErrno(errno, "SG_GET_RESERVED_SIZE")
	}
	return int(n), nil
}

func (d *Device) GetDeviceType(deviceType *raw.DeviceType) raw.Status {
	if deviceType == nil {
		return raw.StatusInvalidParameter
	}
	var id SgScsiID
	if errno := d.ioctl(ioctlSgGetScsiID, unsafe.Pointer(&id)); errno != 0 {
		return ErrnoToStatus(errno)
	}
	*deviceType = raw.DeviceType(id.ScsiType & 0x1f)
	return raw.StatusSuccess
}

func (d *Device) GetDeviceLocation(target *[]byte, lun *uint64) raw.Status {
	if target == nil || lun == nil {
		return raw.StatusInvalidParameter
	}
	var id SgScsiID
	if errno := d.ioctl(ioctlSgGetScsiID, unsafe.Pointer(&id)); errno != 0 {
		return ErrnoToStatus(errno)
	}
	*target = d.pool.clone(encodeTarget(uint32(id.ScsiID), uint32(id.Channel)))
	*lun = uint64(id.Lun)
	return raw.StatusSuccess
}

func (d *Device) ResetBus() raw.Status {
	return d.reset(resetBus)
}

func (d *Device) ResetDevice() raw.Status {
	return d.reset(resetDevice)
}

func (d *Device) reset(kind int32) raw.Status {
	return ErrnoToStatus(d.ioctl(ioctlSgScsiReset, unsafe.Pointer(&kind)))
}

// ExecuteScsiCommand runs the packet through SG_IO. The ioctl blocks, so
// the event, if any, is signalled before the call returns. A delivered
// command reports success; its outcome is in HostAdapterStatus and
// TargetStatus.
func (d *Device) ExecuteScsiCommand(packet *raw.ScsiIoScsiRequestPacket, event raw.Event) raw.Status {
	if packet == nil {
		return raw.StatusInvalidParameter
	}
	hdr, st := newHdr(packet)
	if !st.IsSuccess() {
		return st
	}
	if errno := d.ioctl(ioctlSgIO, unsafe.Pointer(&hdr)); errno != 0 {
		return ErrnoToStatus(errno)
	}
	if timedOut(&hdr) {
		return raw.StatusTimeout
	}
	complete(packet, &hdr)
	if event != nil {
		event.Signal()
	}
	return raw.StatusSuccess
}

// IoAlign is 1: the driver bounces unaligned buffers itself
func (d *Device) IoAlign() uint32 {
	return 1
}

func newHdr(p *raw.ScsiIoScsiRequestPacket) (SgIoHdr, raw.Status) {
	h := SgIoHdr{
		InterfaceID:    interfaceID,
		DxferDirection: dxferNone,
		CmdLen:         p.CdbLength,
		Cmdp:           p.Cdb,
		Timeout:        timeoutMillis(p.Timeout),
	}
	if p.Cdb == nil || p.CdbLength == 0 {
		return h, raw.StatusInvalidParameter
	}
	if p.SenseData != nil && p.SenseDataLength > 0 {
		h.Sbp = p.SenseData
		h.MxSbLen = p.SenseDataLength
	}

	switch p.DataDirection {
	case raw.DataDirectionRead:
		if p.InTransferLength > 0 {
			h.DxferDirection = dxferFromDev
			h.Dxferp = p.InDataBuffer
			h.DxferLen = p.InTransferLength
		}
	case raw.DataDirectionWrite:
		if p.OutTransferLength > 0 {
			h.DxferDirection = dxferToDev
			h.Dxferp = p.OutDataBuffer
			h.DxferLen = p.OutTransferLength
		}
	default:
		// sg_io_hdr carries a single data buffer
		return h, raw.StatusUnsupported
	}
	if h.DxferLen > 0 && h.Dxferp == nil {
		return h, raw.StatusInvalidParameter
	}
	return h, raw.StatusSuccess
}

// complete copies the driver's results into the packet
func complete(p *raw.ScsiIoScsiRequestPacket, h *SgIoHdr) {
	p.HostAdapterStatus = hostStatus(h.HostStatus)
	p.TargetStatus = raw.TargetStatus(h.Status)
	p.SenseDataLength = min(h.SbLenWr, h.MxSbLen)

	moved := uint32(0)
	if h.Resid >= 0 && uint32(h.Resid) < h.DxferLen {
		moved = h.DxferLen - uint32(h.Resid)
	}
	switch h.DxferDirection {
	case dxferFromDev:
		p.InTransferLength = moved
	case dxferToDev:
		p.OutTransferLength = moved
	}
}

func timedOut(h *SgIoHdr) bool {
	return h.HostStatus == didTimeOut || h.DriverStatus&0x0f == driverTimeout
}

// timeoutMillis converts 100ns ticks to the driver's milliseconds, rounding
// up. Zero means wait forever.
func timeoutMillis(ticks uint64) uint32 {
	if ticks == 0 {
		return math.MaxUint32
	}
	ms := ticks/10000 + min(ticks%10000, 1)
	if ms >= math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(ms)
}

// encodeTarget packs a Linux target and channel into a firmware target id
func encodeTarget(target, channel uint32) []byte {
	b := make([]byte, raw.TargetMaxBytes)
	binary.LittleEndian.PutUint32(b[0:4], target)
	binary.LittleEndian.PutUint32(b[4:8], channel)
	return b
}

// decodeTarget reverses encodeTarget
func decodeTarget(b []byte) (target, channel uint32, ok bool) {
	if len(b) != raw.TargetMaxBytes {
		return 0, 0, false
	}
	for _, v := range b[8:] {
		if v != 0 {
			return 0, 0, false
		}
	}
	return binary.LittleEndian.Uint32(b[0:4]), binary.LittleEndian.Uint32(b[4:8]), true
}

var _ raw.ScsiIoProtocol = (*Device)(nil)
