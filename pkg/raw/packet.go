package raw

import "unsafe"

// ScsiIoScsiRequestPacket matches EFI_SCSI_IO_SCSI_REQUEST_PACKET.
// Layout on 64-bit:
//
//	UINT64 Timeout;              // 8 bytes, offset 0 (100ns units, 0 = wait forever)
//	VOID   *InDataBuffer;        // 8 bytes, offset 8
//	VOID   *OutDataBuffer;       // 8 bytes, offset 16
//	VOID   *SenseData;           // 8 bytes, offset 24
//	VOID   *Cdb;                 // 8 bytes, offset 32
//	UINT32 InTransferLength;     // 4 bytes, offset 40 (in/out)
//	UINT32 OutTransferLength;    // 4 bytes, offset 44 (in/out)
//	UINT8  CdbLength;            // 1 byte,  offset 48
//	UINT8  DataDirection;        // 1 byte,  offset 49
//	UINT8  HostAdapterStatus;    // 1 byte,  offset 50 (output)
//	UINT8  TargetStatus;         // 1 byte,  offset 51 (output)
//	UINT8  SenseDataLength;      // 1 byte,  offset 52 (in/out)
//	                             // 3 bytes tail padding to 56
type ScsiIoScsiRequestPacket struct {
	Timeout           uint64
	InDataBuffer      unsafe.Pointer
	OutDataBuffer     unsafe.Pointer
	SenseData         unsafe.Pointer
	Cdb               unsafe.Pointer
	InTransferLength  uint32
	OutTransferLength uint32
	CdbLength         uint8
	DataDirection     DataDirection
	HostAdapterStatus HostAdapterStatus
	TargetStatus      TargetStatus
	SenseDataLength   uint8
	_                 [3]byte // padding
}

// ExtScsiIoScsiRequestPacket matches EFI_EXT_SCSI_PASS_THRU_SCSI_REQUEST_PACKET.
// The field set and layout are identical to ScsiIoScsiRequestPacket.
type ExtScsiIoScsiRequestPacket struct {
	Timeout           uint64
	InDataBuffer      unsafe.Pointer
	OutDataBuffer     unsafe.Pointer
	SenseData         unsafe.Pointer
	Cdb               unsafe.Pointer
	InTransferLength  uint32
	OutTransferLength uint32
	CdbLength         uint8
	DataDirection     DataDirection
	HostAdapterStatus HostAdapterStatus
	TargetStatus      TargetStatus
	SenseDataLength   uint8
	_                 [3]byte // padding
}

// Size constants for struct validation
const (
	SizeOfScsiIoScsiRequestPacket    = int(unsafe.Sizeof(ScsiIoScsiRequestPacket{}))
	SizeOfExtScsiIoScsiRequestPacket = int(unsafe.Sizeof(ExtScsiIoScsiRequestPacket{}))
)
