package sim

import (
	"github.com/emergingrobotics/go-efiscsi/pkg/raw"
)

// ScsiIo returns a SCSI I/O table bound to d. The device does not need to
// stay attached; once removed its calls fail with StatusNoMedia.
func (c *Channel) ScsiIo(d *Device) raw.ScsiIoProtocol {
	return &scsiIo{c: c, d: d}
}

type scsiIo struct {
	c *Channel
	d *Device
}

func (s *scsiIo) attached() bool {
	for _, d := range s.c.devices {
		if d == s.d {
			return true
		}
	}
	return false
}

func (s *scsiIo) GetDeviceType(deviceType *raw.DeviceType) raw.Status {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()

	if st, failed := s.c.enter(OpGetDeviceType); failed {
		return st
	}
	if deviceType == nil {
		return raw.StatusInvalidParameter
	}
	if !s.attached() {
		return raw.StatusNoMedia
	}
	*deviceType = s.d.Type
	return raw.StatusSuccess
}

func (s *scsiIo) GetDeviceLocation(target *[]byte, lun *uint64) raw.Status {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()

	if st, failed := s.c.enter(OpGetDeviceLocation); failed {
		return st
	}
	if target == nil || lun == nil {
		return raw.StatusInvalidParameter
	}
	if !s.attached() {
		return raw.StatusNoMedia
	}
	*target = s.c.pool.clone(s.d.target())
	*lun = s.d.Lun
	return raw.StatusSuccess
}

func (s *scsiIo) ResetBus() raw.Status {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()

	if st, failed := s.c.enter(OpResetBus); failed {
		return st
	}
	s.c.resets++
	for _, d := range s.c.devices {
		d.Resets++
	}
	return raw.StatusSuccess
}

func (s *scsiIo) ResetDevice() raw.Status {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()

	if st, failed := s.c.enter(OpResetDevice); failed {
		return st
	}
	if !s.attached() {
		return raw.StatusNoMedia
	}
	s.d.Resets++
	return raw.StatusSuccess
}

func (s *scsiIo) ExecuteScsiCommand(packet *raw.ScsiIoScsiRequestPacket, event raw.Event) raw.Status {
	s.c.mu.Lock()
	attached := s.attached()
	s.c.mu.Unlock()
	if !attached {
		return raw.StatusNoMedia
	}
	return s.c.execute(OpExecuteScsiCommand, s.d.target(), s.d.Lun, packet, event)
}

func (s *scsiIo) IoAlign() uint32 {
	return s.c.mode.IoAlign
}
