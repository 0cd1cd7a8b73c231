//go:build linux

package sg

import (
	"bytes"
	"slices"
	"sync"

	"github.com/go-logr/logr"

	"github.com/emergingrobotics/go-efiscsi/pkg/devicepath"
	"github.com/emergingrobotics/go-efiscsi/pkg/raw"
	"github.com/emergingrobotics/go-efiscsi/pkg/scsi"
)

// Host serves the pass thru table for one Linux SCSI host. Each command
// opens the unit's sg node for the duration of the call.
type Host struct {
	mu      sync.Mutex
	number  int
	mode    raw.ExtScsiPassThruMode
	pool    *Pool
	scanner *Scanner
	units   []Unit
	log     logr.Logger
	opts    []Option
}

// NewHost scans sysfs for the units of SCSI host number
func NewHost(number int, opts ...Option) (*Host, error) {
	o := newOptions(opts)
	h := &Host{
		number: number,
		mode: raw.ExtScsiPassThruMode{
			AdapterId:  uint32(number),
			Attributes: raw.ExtScsiPassThruAttributesPhysical | raw.ExtScsiPassThruAttributesLogical,
			IoAlign:    1,
		},
		pool:    o.pool,
		scanner: o.scanner,
		log:     o.log.WithValues("host", number),
	}
	// Devices opened for a command share the host's pool and logger
	h.opts = []Option{WithPool(h.pool), WithLogger(o.log)}

	if err := h.Rescan(); err != nil {
		return nil, err
	}
	return h, nil
}

// Rescan refreshes the unit list from sysfs
func (h *Host) Rescan() error {
	units, err := h.scanner.ScanHost(h.number)
	if err != nil {
		return scsi.NewErrorWithCause(raw.StatusNotFound, "scanning host", err)
	}
	slices.SortFunc(units, compareUnits)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.units = units
	h.log.V(1).Info("scanned host", "units", len(units))
	return nil
}

// Units returns the units in enumeration order
func (h *Host) Units() []Unit {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.units)
}

// Pool returns the allocator backing the host's outputs
func (h *Host) Pool() *Pool {
	return h.pool
}

func compareUnits(a, b Unit) int {
	if c := bytes.Compare(a.target(), b.target()); c != 0 {
		return c
	}
	switch {
	case a.Lun < b.Lun:
		return -1
	case a.Lun > b.Lun:
		return 1
	}
	return 0
}

func (h *Host) find(target []byte, lun uint64) (Unit, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, u := range h.units {
		if u.Lun == lun && bytes.Equal(u.target(), target) {
			return u, true
		}
	}
	return Unit{}, false
}

// open opens the unit's node and maps failures onto a status
func (h *Host) open(u Unit) (*Device, raw.Status) {
	d, err := Open(u.Path, h.opts...)
	if err != nil {
		st, _ := scsi.StatusOf(err)
		return nil, st
	}
	return d, raw.StatusSuccess
}

func (h *Host) Mode() *raw.ExtScsiPassThruMode {
	return &h.mode
}

func (h *Host) PassThru(target []byte, lun uint64, packet *raw.ExtScsiIoScsiRequestPacket, event raw.Event) raw.Status {
	if packet == nil || len(target) != raw.TargetMaxBytes {
		return raw.StatusInvalidParameter
	}
	u, ok := h.find(target, lun)
	if !ok {
		return raw.StatusInvalidParameter
	}
	d, st := h.open(u)
	if !st.IsSuccess() {
		return st
	}
	defer d.Close()
	return d.ExecuteScsiCommand((*raw.ScsiIoScsiRequestPacket)(packet), event)
}

func (h *Host) GetNextTargetLun(target *[]byte, lun *uint64) raw.Status {
	if target == nil || lun == nil || len(*target) != raw.TargetMaxBytes {
		return raw.StatusInvalidParameter
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	i := 0
	if !raw.IsStartCursor(*target) {
		i = slices.IndexFunc(h.units, func(u Unit) bool {
			return u.Lun == *lun && bytes.Equal(u.target(), *target)
		})
		if i < 0 {
			return raw.StatusInvalidParameter
		}
		i++
	}
	if i >= len(h.units) {
		return raw.StatusNotFound
	}
	u := h.units[i]
	*target = h.pool.clone(u.target())
	*lun = u.Lun
	return raw.StatusSuccess
}

func (h *Host) GetNextTarget(target *[]byte) raw.Status {
	if target == nil || len(*target) != raw.TargetMaxBytes {
		return raw.StatusInvalidParameter
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	cursor := *target
	start := raw.IsStartCursor(cursor)
	if !start && !slices.ContainsFunc(h.units, func(u Unit) bool {
		return bytes.Equal(u.target(), cursor)
	}) {
		return raw.StatusInvalidParameter
	}
	for _, u := range h.units {
		if t := u.target(); start || bytes.Compare(t, cursor) > 0 {
			*target = h.pool.clone(t)
			return raw.StatusSuccess
		}
	}
	return raw.StatusNotFound
}

func (h *Host) BuildDevicePath(target []byte, lun uint64, path *[]byte) raw.Status {
	if path == nil || len(target) != raw.TargetMaxBytes {
		return raw.StatusInvalidParameter
	}
	if _, ok := h.find(target, lun); !ok {
		return raw.StatusNotFound
	}

	// A SCSI node has no channel and carries a 16-bit target and lun
	t, channel, ok := decodeTarget(target)
	if !ok || channel != 0 || t > 0xffff || lun > 0xffff {
		return raw.StatusNotFound
	}
	node, err := devicepath.ScsiNode{Pun: uint16(t), Lun: uint16(lun)}.Encode()
	if err != nil {
		return raw.StatusOutOfResources
	}
	*path = h.pool.clone(node)
	return raw.StatusSuccess
}

func (h *Host) GetTargetLun(path []byte, target *[]byte, lun *uint64) raw.Status {
	if target == nil || lun == nil {
		return raw.StatusInvalidParameter
	}
	n, err := devicepath.Parse(path)
	if err != nil {
		return raw.StatusInvalidParameter
	}
	s, err := devicepath.DecodeScsi(n)
	if err != nil {
		return raw.StatusUnsupported
	}

	t := encodeTarget(uint32(s.Pun), 0)
	if _, ok := h.find(t, uint64(s.Lun)); !ok {
		return raw.StatusNotFound
	}
	*target = h.pool.clone(t)
	*lun = uint64(s.Lun)
	return raw.StatusSuccess
}

// ResetChannel issues a bus reset through the first unit of the host
func (h *Host) ResetChannel() raw.Status {
	h.mu.Lock()
	if len(h.units) == 0 {
		h.mu.Unlock()
		return raw.StatusUnsupported
	}
	u := h.units[0]
	h.mu.Unlock()

	d, st := h.open(u)
	if !st.IsSuccess() {
		return st
	}
	defer d.Close()
	return d.ResetBus()
}

func (h *Host) ResetTargetLun(target []byte, lun uint64) raw.Status {
	if len(target) != raw.TargetMaxBytes {
		return raw.StatusInvalidParameter
	}
	u, ok := h.find(target, lun)
	if !ok {
		return raw.StatusNotFound
	}
	d, st := h.open(u)
	if !st.IsSuccess() {
		return st
	}
	defer d.Close()
	return d.ResetDevice()
}

var _ raw.ExtScsiPassThruProtocol = (*Host)(nil)
