package raw

import (
	"fmt"
	"math/bits"
)

// Status is the UINTN outcome returned by every firmware call
type Status uintptr

// ErrorBit marks a status as an error. Non-zero statuses without it are warnings.
const ErrorBit Status = 1 << (bits.UintSize - 1)

// Success and warning codes
const (
	StatusSuccess            Status = 0
	StatusWarnUnknownGlyph   Status = 1
	StatusWarnDeleteFailure  Status = 2
	StatusWarnWriteFailure   Status = 3
	StatusWarnBufferTooSmall Status = 4
	StatusWarnStaleData      Status = 5
	StatusWarnFileSystem     Status = 6
	StatusWarnResetRequired  Status = 7
)

// Error codes
const (
	StatusLoadError           Status = ErrorBit | 1
	StatusInvalidParameter    Status = ErrorBit | 2
	StatusUnsupported         Status = ErrorBit | 3
	StatusBadBufferSize       Status = ErrorBit | 4
	StatusBufferTooSmall      Status = ErrorBit | 5
	StatusNotReady            Status = ErrorBit | 6
	StatusDeviceError         Status = ErrorBit | 7
	StatusWriteProtected      Status = ErrorBit | 8
	StatusOutOfResources      Status = ErrorBit | 9
	StatusVolumeCorrupted     Status = ErrorBit | 10
	StatusVolumeFull          Status = ErrorBit | 11
	StatusNoMedia             Status = ErrorBit | 12
	StatusMediaChanged        Status = ErrorBit | 13
	StatusNotFound            Status = ErrorBit | 14
	StatusAccessDenied        Status = ErrorBit | 15
	StatusNoResponse          Status = ErrorBit | 16
	StatusNoMapping           Status = ErrorBit | 17
	StatusTimeout             Status = ErrorBit | 18
	StatusNotStarted          Status = ErrorBit | 19
	StatusAlreadyStarted      Status = ErrorBit | 20
	StatusAborted             Status = ErrorBit | 21
	StatusIcmpError           Status = ErrorBit | 22
	StatusTftpError           Status = ErrorBit | 23
	StatusProtocolError       Status = ErrorBit | 24
	StatusIncompatibleVersion Status = ErrorBit | 25
	StatusSecurityViolation   Status = ErrorBit | 26
	StatusCrcError            Status = ErrorBit | 27
	StatusEndOfMedia          Status = ErrorBit | 28
	StatusEndOfFile           Status = ErrorBit | 31
	StatusInvalidLanguage     Status = ErrorBit | 32
	StatusCompromisedData     Status = ErrorBit | 33
	StatusIpAddressConflict   Status = ErrorBit | 34
	StatusHttpError           Status = ErrorBit | 35
)

var statusMessages = map[Status]string{
	StatusSuccess:             "success",
	StatusWarnUnknownGlyph:    "warning: unknown glyph",
	StatusWarnDeleteFailure:   "warning: delete failure",
	StatusWarnWriteFailure:    "warning: write failure",
	StatusWarnBufferTooSmall:  "warning: buffer too small",
	StatusWarnStaleData:       "warning: stale data",
	StatusWarnFileSystem:      "warning: file system",
	StatusWarnResetRequired:   "warning: reset required",
	StatusLoadError:           "load error",
	StatusInvalidParameter:    "invalid parameter",
	StatusUnsupported:         "unsupported",
	StatusBadBufferSize:       "bad buffer size",
	StatusBufferTooSmall:      "buffer too small",
	StatusNotReady:            "not ready",
	StatusDeviceError:         "device error",
	StatusWriteProtected:      "write protected",
	StatusOutOfResources:      "out of resources",
	StatusVolumeCorrupted:     "volume corrupted",
	StatusVolumeFull:          "volume full",
	StatusNoMedia:             "no media",
	StatusMediaChanged:        "media changed",
	StatusNotFound:            "not found",
	StatusAccessDenied:        "access denied",
	StatusNoResponse:          "no response",
	StatusNoMapping:           "no mapping",
	StatusTimeout:             "timeout",
	StatusNotStarted:          "not started",
	StatusAlreadyStarted:      "already started",
	StatusAborted:             "aborted",
	StatusIcmpError:           "ICMP error",
	StatusTftpError:           "TFTP error",
	StatusProtocolError:       "protocol error",
	StatusIncompatibleVersion: "incompatible version",
	StatusSecurityViolation:   "security violation",
	StatusCrcError:            "CRC error",
	StatusEndOfMedia:          "end of media",
	StatusEndOfFile:           "end of file",
	StatusInvalidLanguage:     "invalid language",
	StatusCompromisedData:     "compromised data",
	StatusIpAddressConflict:   "IP address conflict",
	StatusHttpError:           "HTTP error",
}

// String returns the human-readable status message
func (s Status) String() string {
	if msg, ok := statusMessages[s]; ok {
		return msg
	}
	if s.IsError() {
		return fmt.Sprintf("unknown error status (0x%x)", uintptr(s&^ErrorBit))
	}
	return fmt.Sprintf("unknown status (0x%x)", uintptr(s))
}

// IsSuccess reports whether s is exactly StatusSuccess
func (s Status) IsSuccess() bool {
	return s == StatusSuccess
}

// IsWarning reports whether s is a non-zero status without the error bit
func (s Status) IsWarning() bool {
	return s != StatusSuccess && s&ErrorBit == 0
}

// IsError reports whether the error bit is set
func (s Status) IsError() bool {
	return s&ErrorBit != 0
}
