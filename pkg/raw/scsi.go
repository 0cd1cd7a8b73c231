package raw

import "fmt"

// TargetMaxBytes is the width of a target identifier on an extended pass thru channel
const TargetMaxBytes = 0x10

// DataDirection is the transfer direction of a request packet
type DataDirection uint8

const (
	DataDirectionRead          DataDirection = 0
	DataDirectionWrite         DataDirection = 1
	DataDirectionBidirectional DataDirection = 2
)

var dataDirectionNames = map[DataDirection]string{
	DataDirectionRead:          "read",
	DataDirectionWrite:         "write",
	DataDirectionBidirectional: "bidirectional",
}

// Known reports whether d is a defined direction code
func (d DataDirection) Known() bool {
	_, ok := dataDirectionNames[d]
	return ok
}

func (d DataDirection) String() string {
	return codeName(dataDirectionNames, d)
}

// HostAdapterStatus is the status of the controller that executed a packet
type HostAdapterStatus uint8

const (
	HostAdapterStatusOK                  HostAdapterStatus = 0x00
	HostAdapterStatusTimeoutCommand      HostAdapterStatus = 0x09
	HostAdapterStatusTimeout             HostAdapterStatus = 0x0b
	HostAdapterStatusMessageReject       HostAdapterStatus = 0x0d
	HostAdapterStatusBusReset            HostAdapterStatus = 0x0e
	HostAdapterStatusParityError         HostAdapterStatus = 0x0f
	HostAdapterStatusRequestSenseFailed  HostAdapterStatus = 0x10
	HostAdapterStatusSelectionTimeout    HostAdapterStatus = 0x11
	HostAdapterStatusDataOverrunUnderrun HostAdapterStatus = 0x12
	HostAdapterStatusBusFree             HostAdapterStatus = 0x13
	HostAdapterStatusPhaseError          HostAdapterStatus = 0x14
	HostAdapterStatusOther               HostAdapterStatus = 0x7f
)

var hostAdapterStatusNames = map[HostAdapterStatus]string{
	HostAdapterStatusOK:                  "ok",
	HostAdapterStatusTimeoutCommand:      "timeout command",
	HostAdapterStatusTimeout:             "timeout",
	HostAdapterStatusMessageReject:       "message reject",
	HostAdapterStatusBusReset:            "bus reset",
	HostAdapterStatusParityError:         "parity error",
	HostAdapterStatusRequestSenseFailed:  "request sense failed",
	HostAdapterStatusSelectionTimeout:    "selection timeout",
	HostAdapterStatusDataOverrunUnderrun: "data overrun/underrun",
	HostAdapterStatusBusFree:             "bus free",
	HostAdapterStatusPhaseError:          "phase error",
	HostAdapterStatusOther:               "other",
}

func (s HostAdapterStatus) Known() bool {
	_, ok := hostAdapterStatusNames[s]
	return ok
}

func (s HostAdapterStatus) String() string {
	return codeName(hostAdapterStatusNames, s)
}

// TargetStatus is the status returned by the device for a packet
type TargetStatus uint8

const (
	TargetStatusGood                     TargetStatus = 0x00
	TargetStatusCheckCondition           TargetStatus = 0x02
	TargetStatusConditionMet             TargetStatus = 0x04
	TargetStatusBusy                     TargetStatus = 0x08
	TargetStatusIntermediate             TargetStatus = 0x10
	TargetStatusIntermediateConditionMet TargetStatus = 0x14
	TargetStatusReservationConflict      TargetStatus = 0x18
	TargetStatusCommandTerminated        TargetStatus = 0x22
	TargetStatusQueueFull                TargetStatus = 0x28
)

var targetStatusNames = map[TargetStatus]string{
	TargetStatusGood:                     "good",
	TargetStatusCheckCondition:           "check condition",
	TargetStatusConditionMet:             "condition met",
	TargetStatusBusy:                     "busy",
	TargetStatusIntermediate:             "intermediate",
	TargetStatusIntermediateConditionMet: "intermediate condition met",
	TargetStatusReservationConflict:      "reservation conflict",
	TargetStatusCommandTerminated:        "command terminated",
	TargetStatusQueueFull:                "queue full",
}

func (s TargetStatus) Known() bool {
	_, ok := targetStatusNames[s]
	return ok
}

func (s TargetStatus) String() string {
	return codeName(targetStatusNames, s)
}

// DeviceType is the peripheral device type from the SCSI Primary Commands standard
type DeviceType uint8

const (
	DeviceTypeDisk          DeviceType = 0x00
	DeviceTypeTape          DeviceType = 0x01
	DeviceTypePrinter       DeviceType = 0x02
	DeviceTypeProcessor     DeviceType = 0x03
	DeviceTypeWorm          DeviceType = 0x04 // write-once read-multiple
	DeviceTypeCdrom         DeviceType = 0x05
	DeviceTypeScanner       DeviceType = 0x06
	DeviceTypeOptical       DeviceType = 0x07
	DeviceTypeMediumChanger DeviceType = 0x08
	DeviceTypeCommunication DeviceType = 0x09
	DeviceTypeMfiA          DeviceType = 0x0A // obsolete
	DeviceTypeMfiB          DeviceType = 0x0B // obsolete
	DeviceTypeMfiRaid       DeviceType = 0x0C // storage array controller
	DeviceTypeMfiSes        DeviceType = 0x0D // enclosure services
	DeviceTypeMfiRbc        DeviceType = 0x0E // simplified direct-access
	DeviceTypeMfiOcrw       DeviceType = 0x0F // optical card reader/writer
	DeviceTypeMfiBridge     DeviceType = 0x10 // bridge controller
	DeviceTypeMfiOsd        DeviceType = 0x11 // object-based storage
	DeviceTypeReservedLow   DeviceType = 0x12
	DeviceTypeReservedHigh  DeviceType = 0x1E
	DeviceTypeUnknown       DeviceType = 0x1F
)

var deviceTypeNames = map[DeviceType]string{
	DeviceTypeDisk:          "disk",
	DeviceTypeTape:          "tape",
	DeviceTypePrinter:       "printer",
	DeviceTypeProcessor:     "processor",
	DeviceTypeWorm:          "worm",
	DeviceTypeCdrom:         "cdrom",
	DeviceTypeScanner:       "scanner",
	DeviceTypeOptical:       "optical",
	DeviceTypeMediumChanger: "medium changer",
	DeviceTypeCommunication: "communication",
	DeviceTypeMfiA:          "mfi-a",
	DeviceTypeMfiB:          "mfi-b",
	DeviceTypeMfiRaid:       "raid",
	DeviceTypeMfiSes:        "enclosure services",
	DeviceTypeMfiRbc:        "rbc",
	DeviceTypeMfiOcrw:       "ocrw",
	DeviceTypeMfiBridge:     "bridge",
	DeviceTypeMfiOsd:        "osd",
	DeviceTypeUnknown:       "unknown",
}

// Known reports whether t is a named device type. The reserved range and
// codes above Unknown are not.
func (t DeviceType) Known() bool {
	_, ok := deviceTypeNames[t]
	return ok
}

// IsReserved reports whether t falls in the reserved range ReservedLow..ReservedHigh
func (t DeviceType) IsReserved() bool {
	return t >= DeviceTypeReservedLow && t <= DeviceTypeReservedHigh
}

func (t DeviceType) String() string {
	return codeName(deviceTypeNames, t)
}

// ParseDeviceType accepts a device type name as rendered by String
func ParseDeviceType(name string) (DeviceType, bool) {
	for t, n := range deviceTypeNames {
		if n == name {
			return t, true
		}
	}
	return 0, false
}

func codeName[T ~uint8](names map[T]string, v T) string {
	if n, ok := names[v]; ok {
		return n
	}
	return fmt.Sprintf("reserved (0x%02x)", uint8(v))
}
