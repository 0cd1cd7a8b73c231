//go:build linux

package sg

import "unsafe"

// ioctl request codes - must match scsi/sg.h
const (
	ioctlSgGetReservedSize = 0x2272
	ioctlSgGetScsiID       = 0x2276
	ioctlSgGetVersionNum   = 0x2282
	ioctlSgScsiReset       = 0x2284
	ioctlSgIO              = 0x2285
)

// SG_SCSI_RESET arguments
const (
	resetNothing = 0
	resetDevice  = 1
	resetBus     = 2
	resetHost    = 3
)

// Transfer directions of sg_io_hdr.dxfer_direction
const (
	dxferNone      int32 = -1
	dxferToDev     int32 = -2
	dxferFromDev   int32 = -3
	dxferToFromDev int32 = -4
)

// Linux host byte values (DID_*)
const (
	didOK         = 0x00
	didNoConnect  = 0x01
	didBusBusy    = 0x02
	didTimeOut    = 0x03
	didBadTarget  = 0x04
	didAbort      = 0x05
	didParity     = 0x06
	didError      = 0x07
	didReset      = 0x08
	didBadIntr    = 0x09
	didPassthru   = 0x0a
	didSoftError  = 0x0b
	didImmRetry   = 0x0c
	didRequeue    = 0x0d
	didTransportF = 0x0e
)

const (
	interfaceID = 'S'

	// MinVersion is the oldest sg driver exposing the sg_io_hdr interface
	MinVersion = 30000
)

// SgIoHdr matches struct sg_io_hdr. Layout on 64-bit:
//
//	int interface_id;           // 4 bytes, offset 0
//	int dxfer_direction;        // 4 bytes, offset 4
//	unsigned char cmd_len;      // 1 byte,  offset 8
//	unsigned char mx_sb_len;    // 1 byte,  offset 9
//	unsigned short iovec_count; // 2 bytes, offset 10
//	unsigned int dxfer_len;     // 4 bytes, offset 12
//	void *dxferp;               // 8 bytes, offset 16
//	unsigned char *cmdp;        // 8 bytes, offset 24
//	void *sbp;                  // 8 bytes, offset 32
//	unsigned int timeout;       // 4 bytes, offset 40 (milliseconds)
//	unsigned int flags;         // 4 bytes, offset 44
//	int pack_id;                // 4 bytes, offset 48 + 4 padding
//	void *usr_ptr;              // 8 bytes, offset 56
//	unsigned char status;       // 1 byte,  offset 64
//	unsigned char masked_status;
//	unsigned char msg_status;
//	unsigned char sb_len_wr;    // 1 byte,  offset 67
//	unsigned short host_status; // 2 bytes, offset 68
//	unsigned short driver_status;
//	int resid;                  // 4 bytes, offset 72
//	unsigned int duration;      // 4 bytes, offset 76
//	unsigned int info;          // 4 bytes, offset 80 + 4 padding
//	Total: 88 bytes
type SgIoHdr struct {
	InterfaceID    int32
	DxferDirection int32
	CmdLen         uint8
	MxSbLen        uint8
	IovecCount     uint16
	DxferLen       uint32
	Dxferp         unsafe.Pointer
	Cmdp           unsafe.Pointer
	Sbp            unsafe.Pointer
	Timeout        uint32
	Flags          uint32
	PackID         int32
	UsrPtr         uintptr
	Status         uint8
	MaskedStatus   uint8
	MsgStatus      uint8
	SbLenWr        uint8
	HostStatus     uint16
	DriverStatus   uint16
	Resid          int32
	Duration       uint32
	Info           uint32
}

// SgScsiID matches struct sg_scsi_id
type SgScsiID struct {
	HostNo      int32
	Channel     int32
	ScsiID      int32
	Lun         int32
	ScsiType    int32
	HCmdPerLun  int16
	DQueueDepth int16
	_           [2]int32 // unused
}

// Size constants for struct validation
const (
	SizeOfSgIoHdr  = int(unsafe.Sizeof(SgIoHdr{}))
	SizeOfSgScsiID = int(unsafe.Sizeof(SgScsiID{}))
)

// Driver byte values (DRIVER_*)
const (
	driverTimeout = 0x06
	driverSense   = 0x08
)
