// Package devicepath provides read-only views over firmware device path
// nodes and the SCSI messaging node produced by pass thru channels.
package devicepath

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/emergingrobotics/go-efiscsi/pkg/raw"
)

// Node types
const (
	TypeHardware  uint8 = 0x01
	TypeACPI      uint8 = 0x02
	TypeMessaging uint8 = 0x03
	TypeMedia     uint8 = 0x04
	TypeBIOSBoot  uint8 = 0x05
	TypeEnd       uint8 = 0x7f
)

// Sub types
const (
	SubTypeScsi        uint8 = 0x02
	SubTypeEndInstance uint8 = 0x01
	SubTypeEndEntire   uint8 = 0xff
)

var (
	ErrShortNode = errors.New("device path node shorter than header")
	ErrBadLength = errors.New("device path node length invalid")
	ErrNoEnd     = errors.New("device path not terminated")
)

// Node is a borrowed view of one device path node. It does not own the
// underlying bytes; callers must keep them alive while the Node is in use.
type Node struct {
	b []byte
}

// Parse validates the node header at the start of b and returns a view
// limited to the node's declared length.
func Parse(b []byte) (Node, error) {
	if len(b) < raw.SizeOfDevicePathProtocol {
		return Node{}, fmt.Errorf("%w: %d bytes", ErrShortNode, len(b))
	}
	n := int(binary.LittleEndian.Uint16(b[2:4]))
	if n < raw.SizeOfDevicePathProtocol || n > len(b) {
		return Node{}, fmt.Errorf("%w: declared %d, have %d", ErrBadLength, n, len(b))
	}
	return Node{b: b[:n]}, nil
}

// Split parses a whole path up to and including the End Entire node.
func Split(b []byte) ([]Node, error) {
	var nodes []Node
	for len(b) > 0 {
		n, err := Parse(b)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
		if n.IsEnd() {
			return nodes, nil
		}
		b = b[n.Length():]
	}
	return nil, ErrNoEnd
}

func (n Node) Type() uint8 {
	return n.b[0]
}

func (n Node) SubType() uint8 {
	return n.b[1]
}

// Length returns the declared node length including the header
func (n Node) Length() int {
	return int(binary.LittleEndian.Uint16(n.b[2:4]))
}

// Data returns the node payload following the header
func (n Node) Data() []byte {
	return n.b[raw.SizeOfDevicePathProtocol:]
}

// Bytes returns the node bytes. The slice aliases the borrowed buffer.
func (n Node) Bytes() []byte {
	return n.b
}

// Valid reports whether n was produced by Parse
func (n Node) Valid() bool {
	return len(n.b) >= raw.SizeOfDevicePathProtocol
}

// IsEnd reports whether n is an End Entire Device Path node
func (n Node) IsEnd() bool {
	return n.Type() == TypeEnd && n.SubType() == SubTypeEndEntire
}

// Header returns the generic node header
func (n Node) Header() raw.DevicePathProtocol {
	return raw.DevicePathProtocol{
		Type:    n.b[0],
		SubType: n.b[1],
		Length:  [2]uint8{n.b[2], n.b[3]},
	}
}

func (n Node) String() string {
	if !n.Valid() {
		return "<invalid>"
	}
	if n.IsEnd() {
		return "End"
	}
	if s, err := DecodeScsi(n); err == nil {
		return s.String()
	}
	return fmt.Sprintf("Path(%d,%d,%x)", n.Type(), n.SubType(), n.Data())
}

// EndEntire returns a freshly encoded End Entire Device Path node
func EndEntire() []byte {
	return []byte{TypeEnd, SubTypeEndEntire, uint8(raw.SizeOfDevicePathProtocol), 0}
}
