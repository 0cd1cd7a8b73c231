package raw

import (
	"github.com/google/uuid"
)

// GUID is a 128-bit contract identifier. It is held in RFC 4122 order and
// converted to the firmware's mixed-endian layout by Bytes.
type GUID uuid.UUID

// Contract identifiers used by protocol discovery
var (
	ScsiIoProtocolGUID          = MustParseGUID("932f47e6-2362-4002-803e-3cd54b138f85")
	ExtScsiPassThruProtocolGUID = MustParseGUID("143b7632-b81b-4cb7-abd3-b625a5b9bffe")
	DevicePathProtocolGUID      = MustParseGUID("09576e91-6d3f-11d2-8e39-00a0c969723b")
)

// ParseGUID parses the canonical textual form
func ParseGUID(s string) (GUID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return GUID{}, err
	}
	return GUID(u), nil
}

// MustParseGUID is ParseGUID that panics on malformed input
func MustParseGUID(s string) GUID {
	return GUID(uuid.MustParse(s))
}

// String returns the canonical lowercase textual form
func (g GUID) String() string {
	return uuid.UUID(g).String()
}

// Bytes returns the 16-byte firmware layout:
// Data1 (u32 LE), Data2 (u16 LE), Data3 (u16 LE), Data4 ([8]u8).
func (g GUID) Bytes() [16]byte {
	var b [16]byte
	b[0], b[1], b[2], b[3] = g[3], g[2], g[1], g[0]
	b[4], b[5] = g[5], g[4]
	b[6], b[7] = g[7], g[6]
	copy(b[8:], g[8:])
	return b
}

// GUIDFromBytes is the inverse of Bytes
func GUIDFromBytes(b [16]byte) GUID {
	var g GUID
	g[0], g[1], g[2], g[3] = b[3], b[2], b[1], b[0]
	g[4], g[5] = b[5], b[4]
	g[6], g[7] = b[7], b[6]
	copy(g[8:], b[8:])
	return g
}
