//go:build linux

package sg

import (
	"golang.org/x/sys/unix"

	"github.com/emergingrobotics/go-efiscsi/pkg/raw"
	"github.com/emergingrobotics/go-efiscsi/pkg/scsi"
)

// ErrnoToStatus converts a Linux errno to a firmware status
func ErrnoToStatus(errno unix.Errno) raw.Status {
	switch errno {
	case 0:
		return raw.StatusSuccess
	case unix.ENOMEM, unix.ENOBUFS:
		return raw.StatusOutOfResources
	case unix.EFAULT, unix.EINVAL, unix.EMSGSIZE:
		return raw.StatusInvalidParameter
	case unix.ENOTTY, unix.EOPNOTSUPP, unix.ENOSYS:
		return raw.StatusUnsupported
	case unix.ETIMEDOUT:
		return raw.StatusTimeout
	case unix.EINTR, unix.ECANCELED:
		return raw.StatusAborted
	case unix.EBUSY, unix.EAGAIN:
		return raw.StatusNotReady
	case unix.EACCES, unix.EPERM:
		return raw.StatusAccessDenied
	case unix.ENOENT:
		return raw.StatusNotFound
	case unix.ENODEV, unix.ENXIO:
		return raw.StatusNoMedia
	case unix.EROFS:
		return raw.StatusWriteProtected
	default:
		return raw.StatusDeviceError
	}
}

// errnoOf extracts the errno from a syscall error. Errors that are not an
// errno map to EIO.
func errnoOf(err error) unix.Errno {
	if err == nil {
		return 0
	}
	if errno, ok := err.(unix.Errno); ok {
		return errno
	}
	return unix.EIO
}

// StatusFromErrno creates a scsi.Error from an errno
func StatusFromErrno(errno unix.Errno, op string) *scsi.Error {
	return scsi.NewErrorWithCause(ErrnoToStatus(errno), op, errno)
}

// hostStatus maps a Linux host byte onto the firmware host adapter status
func hostStatus(did uint16) raw.HostAdapterStatus {
	switch did {
	case didOK:
		return raw.HostAdapterStatusOK
	case didNoConnect, didBadTarget:
		return raw.HostAdapterStatusSelectionTimeout
	case didTimeOut:
		return raw.HostAdapterStatusTimeout
	case didParity:
		return raw.HostAdapterStatusParityError
	case didReset:
		return raw.HostAdapterStatusBusReset
	case didBusBusy:
		return raw.HostAdapterStatusBusFree
	default:
		return raw.HostAdapterStatusOther
	}
}
