package raw

import "unsafe"

// ScsiIoProtocol is the EFI_SCSI_IO_PROTOCOL call table. Method order
// follows the firmware slot order; the implicit receiver stands in for the
// `This` argument. Output parameters are only meaningful when the returned
// status is StatusSuccess.
type ScsiIoProtocol interface {
	GetDeviceType(deviceType *DeviceType) Status
	// GetDeviceLocation stores a callee-allocated target id in *target.
	// Ownership of that buffer passes to the caller on success.
	GetDeviceLocation(target *[]byte, lun *uint64) Status
	ResetBus() Status
	ResetDevice() Status
	// ExecuteScsiCommand blocks when event is nil. Otherwise it may return
	// immediately and signal event once the packet has been completed.
	ExecuteScsiCommand(packet *ScsiIoScsiRequestPacket, event Event) Status
	IoAlign() uint32
}

// ScsiIoProtocolLayout is the in-memory shape of EFI_SCSI_IO_PROTOCOL:
//
//	EFI_SCSI_IO_PROTOCOL_GET_DEVICE_TYPE     GetDeviceType;      // offset 0
//	EFI_SCSI_IO_PROTOCOL_GET_DEVICE_LOCATION GetDeviceLocation;  // offset 8
//	EFI_SCSI_IO_PROTOCOL_RESET_BUS           ResetBus;           // offset 16
//	EFI_SCSI_IO_PROTOCOL_RESET_DEVICE        ResetDevice;        // offset 24
//	EFI_SCSI_IO_PROTOCOL_EXEC_SCSI_CMD       ExecuteScsiCommand; // offset 32
//	UINT32                                   IoAlign;            // offset 40
//	                                         // 4 bytes tail padding to 48
type ScsiIoProtocolLayout struct {
	GetDeviceType      uintptr
	GetDeviceLocation  uintptr
	ResetBus           uintptr
	ResetDevice        uintptr
	ExecuteScsiCommand uintptr
	IoAlign            uint32
	_                  [4]byte // padding
}

// ExtScsiPassThruProtocol is the EFI_EXT_SCSI_PASS_THRU_PROTOCOL call table.
// Target ids are TargetMaxBytes wide.
type ExtScsiPassThruProtocol interface {
	Mode() *ExtScsiPassThruMode
	PassThru(target []byte, lun uint64, packet *ExtScsiIoScsiRequestPacket, event Event) Status
	// GetNextTargetLun reads the cursor from *target and *lun and, on
	// success, replaces *target with a freshly allocated id. The cursor
	// buffer itself is never written.
	GetNextTargetLun(target *[]byte, lun *uint64) Status
	// BuildDevicePath stores a callee-allocated device path node in *path.
	BuildDevicePath(target []byte, lun uint64, path *[]byte) Status
	// GetTargetLun only reads path; *target receives a callee-allocated id.
	GetTargetLun(path []byte, target *[]byte, lun *uint64) Status
	ResetChannel() Status
	ResetTargetLun(target []byte, lun uint64) Status
	GetNextTarget(target *[]byte) Status
}

// ExtScsiPassThruProtocolLayout is the in-memory shape of EFI_EXT_SCSI_PASS_THRU_PROTOCOL:
//
//	EFI_EXT_SCSI_PASS_THRU_MODE *Mode;               // offset 0
//	EFI_EXT_SCSI_PASS_THRU_PASSTHRU PassThru;        // offset 8
//	..._GET_NEXT_TARGET_LUN GetNextTargetLun;        // offset 16
//	..._BUILD_DEVICE_PATH BuildDevicePath;           // offset 24
//	..._GET_TARGET_LUN GetTargetLun;                 // offset 32
//	..._RESET_CHANNEL ResetChannel;                  // offset 40
//	..._RESET_TARGET_LUN ResetTargetLun;             // offset 48
//	..._GET_NEXT_TARGET GetNextTarget;               // offset 56
type ExtScsiPassThruProtocolLayout struct {
	Mode             uintptr
	PassThru         uintptr
	GetNextTargetLun uintptr
	BuildDevicePath  uintptr
	GetTargetLun     uintptr
	ResetChannel     uintptr
	ResetTargetLun   uintptr
	GetNextTarget    uintptr
}

// ExtScsiPassThruMode matches EFI_EXT_SCSI_PASS_THRU_MODE
type ExtScsiPassThruMode struct {
	AdapterId  uint32
	Attributes uint32
	IoAlign    uint32
}

// ExtScsiPassThruMode attribute bits
const (
	ExtScsiPassThruAttributesPhysical   uint32 = 0x0001
	ExtScsiPassThruAttributesLogical    uint32 = 0x0002
	ExtScsiPassThruAttributesNonBlockIO uint32 = 0x0004
)

// Size constants for struct validation
const (
	SizeOfScsiIoProtocolLayout          = int(unsafe.Sizeof(ScsiIoProtocolLayout{}))
	SizeOfExtScsiPassThruProtocolLayout = int(unsafe.Sizeof(ExtScsiPassThruProtocolLayout{}))
	SizeOfExtScsiPassThruMode           = int(unsafe.Sizeof(ExtScsiPassThruMode{}))
)
