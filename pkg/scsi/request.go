package scsi

import (
	"fmt"
	"math"
	"sync"
	"time"
	"unsafe"

	"github.com/emergingrobotics/go-efiscsi/pkg/raw"
)

// Request packet limits
const (
	MaxCDBLength   = math.MaxUint8
	MaxSenseLength = math.MaxUint8
	MaxTransfer    = math.MaxUint32
)

// Request describes one command. The buffers are owned by the caller and
// must stay untouched until the call returns, or for an asynchronous
// submission until Complete.
//
// The output fields are written only when the call succeeds. When the call
// fails with a short buffer status the transfer lengths hold the capacity
// the channel requires; every other failure leaves all outputs zero.
type Request struct {
	// Timeout is rounded up to 100ns units. Zero waits forever.
	Timeout   time.Duration
	Direction raw.DataDirection
	CDB       []byte
	In        []byte
	Out       []byte
	Sense     []byte

	InTransferLength  uint32
	OutTransferLength uint32
	SenseDataLength   uint8
	HostAdapterStatus raw.HostAdapterStatus
	TargetStatus      raw.TargetStatus

	mu      sync.Mutex
	pending *raw.ScsiIoScsiRequestPacket
}

// InData returns the portion of In that was transferred
func (r *Request) InData() []byte {
	return r.In[:min(int(r.InTransferLength), len(r.In))]
}

// SenseData returns the portion of Sense that was filled
func (r *Request) SenseData() []byte {
	return r.Sense[:min(int(r.SenseDataLength), len(r.Sense))]
}

// Complete decodes the outputs of an asynchronous submission. Call it only
// after the event passed to Async has been signalled.
func (r *Request) Complete() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pending == nil {
		return ErrNotPending
	}
	r.decode(r.pending, raw.StatusSuccess)
	r.pending = nil
	return nil
}

// Pending reports whether an asynchronous submission awaits Complete
func (r *Request) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending != nil
}

func (r *Request) validate(op string, ioAlign uint32) error {
	invalid := func(format string, args ...any) error {
		return NewErrorWithCause(raw.StatusInvalidParameter, op, fmt.Errorf(format, args...))
	}

	switch {
	case len(r.CDB) == 0:
		return invalid("empty command block")
	case len(r.CDB) > MaxCDBLength:
		return invalid("command block is %d bytes, limit %d", len(r.CDB), MaxCDBLength)
	case len(r.Sense) > MaxSenseLength:
		return invalid("sense buffer is %d bytes, limit %d", len(r.Sense), MaxSenseLength)
	case uint64(len(r.In)) > MaxTransfer:
		return invalid("in buffer is %d bytes, limit %d", len(r.In), uint64(MaxTransfer))
	case uint64(len(r.Out)) > MaxTransfer:
		return invalid("out buffer is %d bytes, limit %d", len(r.Out), uint64(MaxTransfer))
	case !r.Direction.Known():
		return invalid("data direction %s", r.Direction)
	case r.Direction == raw.DataDirectionRead && len(r.Out) > 0:
		return invalid("out buffer supplied for a read")
	case r.Direction == raw.DataDirectionWrite && len(r.In) > 0:
		return invalid("in buffer supplied for a write")
	}

	if ioAlign > 1 {
		buffers := []struct {
			name string
			b    []byte
		}{{"in", r.In}, {"out", r.Out}, {"sense", r.Sense}}
		for _, buf := range buffers {
			if len(buf.b) > 0 && !aligned(buf.b, ioAlign) {
				return invalid("%s buffer not aligned to %d", buf.name, ioAlign)
			}
		}
	}
	return nil
}

// begin builds the packet for a submission. For asynchronous submissions the
// packet is parked on the request before the table is called, since the
// event may fire before the call returns.
func (r *Request) begin(async bool) (*raw.ScsiIoScsiRequestPacket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pending != nil {
		return nil, ErrRequestPending
	}
	r.resetOutputs()

	p := &raw.ScsiIoScsiRequestPacket{
		Timeout:           timeoutTicks(r.Timeout),
		InDataBuffer:      bufferPointer(r.In),
		OutDataBuffer:     bufferPointer(r.Out),
		SenseData:         bufferPointer(r.Sense),
		Cdb:               bufferPointer(r.CDB),
		InTransferLength:  uint32(len(r.In)),
		OutTransferLength: uint32(len(r.Out)),
		CdbLength:         uint8(len(r.CDB)),
		DataDirection:     r.Direction,
		SenseDataLength:   uint8(len(r.Sense)),
	}
	if async {
		r.pending = p
	}
	return p, nil
}

// end decodes the outputs of a blocking call, or of an asynchronous
// submission the table rejected.
func (r *Request) end(p *raw.ScsiIoScsiRequestPacket, st raw.Status, async bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if async {
		if st.IsSuccess() {
			return
		}
		r.pending = nil
	}
	r.decode(p, st)
}

func (r *Request) decode(p *raw.ScsiIoScsiRequestPacket, st raw.Status) {
	r.resetOutputs()
	switch {
	case st.IsSuccess():
		r.InTransferLength = p.InTransferLength
		r.OutTransferLength = p.OutTransferLength
		r.SenseDataLength = p.SenseDataLength
		r.HostAdapterStatus = p.HostAdapterStatus
		r.TargetStatus = p.TargetStatus
	case st == raw.StatusBadBufferSize, st == raw.StatusBufferTooSmall:
		r.InTransferLength = p.InTransferLength
		r.OutTransferLength = p.OutTransferLength
	}
}

func (r *Request) resetOutputs() {
	r.InTransferLength = 0
	r.OutTransferLength = 0
	r.SenseDataLength = 0
	r.HostAdapterStatus = raw.HostAdapterStatusOK
	r.TargetStatus = raw.TargetStatusGood
}

func bufferPointer(b []byte) unsafe.Pointer {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Pointer(&b[0])
}

func aligned(b []byte, align uint32) bool {
	return uintptr(unsafe.Pointer(&b[0]))%uintptr(align) == 0
}

func timeoutTicks(d time.Duration) uint64 {
	if d <= 0 {
		return 0
	}
	return uint64((d + 99) / 100)
}

// AllocAligned returns a zeroed buffer of n bytes whose first byte is aligned
// to align, the IoAlign value reported by a table. Alignments of 0 and 1
// impose no constraint.
func AllocAligned(n int, align uint32) []byte {
	if align <= 1 || n == 0 {
		return make([]byte, n)
	}
	b := make([]byte, n+int(align)-1)
	off := 0
	if rem := uintptr(unsafe.Pointer(&b[0])) % uintptr(align); rem != 0 {
		off = int(uintptr(align) - rem)
	}
	return b[off : off+n : off+n]
}
