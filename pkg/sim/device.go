package sim

import (
	"bytes"
	"unsafe"

	"github.com/emergingrobotics/go-efiscsi/pkg/raw"
)

// Device is one emulated logical unit. Its command behaviour is fixed: data-in
// commands receive Responses[opcode] or Response, data-out payloads are
// appended to Written.
type Device struct {
	Target         []byte // at most raw.TargetMaxBytes, zero padded
	Lun            uint64
	Type           raw.DeviceType
	Response       []byte
	Responses      map[uint8][]byte
	Sense          []byte
	CheckCondition bool

	// Recorded by the channel
	Written [][]byte
	LastCDB []byte
	Resets  int
}

func (d *Device) target() []byte {
	t := make([]byte, raw.TargetMaxBytes)
	copy(t, d.Target)
	return t
}

func (d *Device) matches(target []byte, lun uint64) bool {
	return d.Lun == lun && bytes.Equal(d.target(), padTarget(target))
}

func (d *Device) response(opcode uint8) []byte {
	if r, ok := d.Responses[opcode]; ok {
		return r
	}
	return d.Response
}

func padTarget(t []byte) []byte {
	if len(t) >= raw.TargetMaxBytes {
		return t[:raw.TargetMaxBytes]
	}
	p := make([]byte, raw.TargetMaxBytes)
	copy(p, t)
	return p
}

func compareDevices(a, b *Device) int {
	if c := bytes.Compare(a.target(), b.target()); c != 0 {
		return c
	}
	switch {
	case a.Lun < b.Lun:
		return -1
	case a.Lun > b.Lun:
		return 1
	}
	return 0
}

// prepare checks a packet against the device and the transfer limit without
// moving data. A short buffer rewrites the length fields to the capacity the
// command needs.
func prepare(d *Device, p *raw.ScsiIoScsiRequestPacket, maxTransfer uint32) raw.Status {
	if p.Cdb == nil || p.CdbLength == 0 {
		return raw.StatusInvalidParameter
	}
	if (p.InTransferLength > 0 && p.InDataBuffer == nil) ||
		(p.OutTransferLength > 0 && p.OutDataBuffer == nil) ||
		(p.SenseDataLength > 0 && p.SenseData == nil) {
		return raw.StatusInvalidParameter
	}
	if !p.DataDirection.Known() {
		return raw.StatusInvalidParameter
	}

	if maxTransfer > 0 && (p.InTransferLength > maxTransfer || p.OutTransferLength > maxTransfer) {
		p.InTransferLength = min(p.InTransferLength, maxTransfer)
		p.OutTransferLength = min(p.OutTransferLength, maxTransfer)
		return raw.StatusBadBufferSize
	}

	if p.DataDirection != raw.DataDirectionWrite {
		opcode := *(*uint8)(p.Cdb)
		if need := uint32(len(d.response(opcode))); need > p.InTransferLength {
			p.InTransferLength = need
			return raw.StatusBadBufferSize
		}
	}
	return raw.StatusSuccess
}

// transfer runs a prepared packet
func transfer(d *Device, p *raw.ScsiIoScsiRequestPacket) {
	cdb := unsafe.Slice((*byte)(p.Cdb), p.CdbLength)
	d.LastCDB = append([]byte(nil), cdb...)

	in, out := uint32(0), uint32(0)
	if p.DataDirection != raw.DataDirectionWrite && p.InTransferLength > 0 {
		buf := unsafe.Slice((*byte)(p.InDataBuffer), p.InTransferLength)
		in = uint32(copy(buf, d.response(cdb[0])))
	}
	if p.DataDirection != raw.DataDirectionRead && p.OutTransferLength > 0 {
		buf := unsafe.Slice((*byte)(p.OutDataBuffer), p.OutTransferLength)
		d.Written = append(d.Written, append([]byte(nil), buf...))
		out = p.OutTransferLength
	}
	p.InTransferLength = in
	p.OutTransferLength = out

	p.HostAdapterStatus = raw.HostAdapterStatusOK
	p.TargetStatus = raw.TargetStatusGood
	sense := uint8(0)
	if d.CheckCondition {
		p.TargetStatus = raw.TargetStatusCheckCondition
		if p.SenseDataLength > 0 {
			buf := unsafe.Slice((*byte)(p.SenseData), p.SenseDataLength)
			sense = uint8(copy(buf, d.Sense))
		}
	}
	p.SenseDataLength = sense
}
