package devicepath

import (
	"bytes"
	"fmt"

	"github.com/HewlettPackard/structex"
)

// ScsiNodeLength is the encoded size of a SCSI messaging node
const ScsiNodeLength = 8

// ScsiNode is the Messaging/SCSI device path node (SCSI_DEVICE_PATH)
type ScsiNode struct {
	Pun uint16 // physical unit number (target id)
	Lun uint16
}

// scsiNodeWire is the on-wire shape; structex encodes little endian and packed
type scsiNodeWire struct {
	Type    uint8
	SubType uint8
	Length  uint16
	Pun     uint16
	Lun     uint16
}

// Encode returns the 8-byte node
func (s ScsiNode) Encode() ([]byte, error) {
	w := &scsiNodeWire{
		Type:    TypeMessaging,
		SubType: SubTypeScsi,
		Length:  ScsiNodeLength,
		Pun:     s.Pun,
		Lun:     s.Lun,
	}
	buf := structex.NewBuffer(w)
	if buf == nil {
		return nil, fmt.Errorf("scsi node: cannot allocate buffer")
	}
	if err := structex.Encode(buf, w); err != nil {
		return nil, fmt.Errorf("scsi node: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeScsi decodes n as a SCSI messaging node
func DecodeScsi(n Node) (ScsiNode, error) {
	if !n.Valid() {
		return ScsiNode{}, ErrShortNode
	}
	if n.Type() != TypeMessaging || n.SubType() != SubTypeScsi {
		return ScsiNode{}, fmt.Errorf("not a scsi node: type %d subtype %d", n.Type(), n.SubType())
	}
	if n.Length() != ScsiNodeLength {
		return ScsiNode{}, fmt.Errorf("%w: scsi node length %d", ErrBadLength, n.Length())
	}

	w := new(scsiNodeWire)
	if err := structex.DecodeByteBuffer(bytes.NewBuffer(n.Bytes()), w); err != nil {
		return ScsiNode{}, fmt.Errorf("scsi node: %w", err)
	}
	return ScsiNode{Pun: w.Pun, Lun: w.Lun}, nil
}

func (s ScsiNode) String() string {
	return fmt.Sprintf("Scsi(0x%x,0x%x)", s.Pun, s.Lun)
}
