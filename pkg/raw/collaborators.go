package raw

import "unsafe"

// Event is an opaque completion-notification handle owned by the event
// services. Passing a nil Event to a blocking-capable call selects
// synchronous execution.
type Event interface {
	Signal()
}

// Pool is the firmware allocator that produces callee-allocated buffers.
// A buffer handed out by a table must be returned through FreePool of the
// same pool exactly once.
type Pool interface {
	FreePool(buf []byte) Status
}

// StartCursor returns the target id that starts an enumeration: all bytes 0xFF.
func StartCursor() []byte {
	c := make([]byte, TargetMaxBytes)
	for i := range c {
		c[i] = 0xff
	}
	return c
}

// IsStartCursor reports whether target is the enumeration start sentinel
func IsStartCursor(target []byte) bool {
	if len(target) != TargetMaxBytes {
		return false
	}
	for _, b := range target {
		if b != 0xff {
			return false
		}
	}
	return true
}

// DevicePathProtocol matches the generic EFI_DEVICE_PATH_PROTOCOL node header
type DevicePathProtocol struct {
	Type    uint8
	SubType uint8
	Length  [2]uint8 // little endian, includes the header
}

// SizeOfDevicePathProtocol is the size of a device path node header
const SizeOfDevicePathProtocol = int(unsafe.Sizeof(DevicePathProtocol{}))
