// Package inventory records the devices attached to a pass thru channel and
// serializes the record in protobuf wire format.
package inventory

import (
	"fmt"
	"time"

	"github.com/emergingrobotics/go-efiscsi/pkg/devicepath"
	"github.com/emergingrobotics/go-efiscsi/pkg/raw"
	"github.com/emergingrobotics/go-efiscsi/pkg/scsi"
)

// Entry is one enumerated logical unit
type Entry struct {
	Target []byte
	Lun    uint64
	Path   []byte // device path node, empty when the channel cannot build one
}

// Snapshot is the channel state at one point in time
type Snapshot struct {
	AdapterID   uint32
	Attributes  uint32
	IoAlign     uint32
	CollectedAt time.Time
	Devices     []Entry
}

// Collect walks the channel held by s. Every callee-allocated buffer is
// copied into the snapshot and released before Collect returns.
func Collect(s *scsi.PassThruSession) (*Snapshot, error) {
	mode := s.Mode()
	snap := &Snapshot{
		AdapterID:   mode.AdapterId,
		Attributes:  mode.Attributes,
		IoAlign:     mode.IoAlign,
		CollectedAt: time.Now().UTC(),
	}

	err := s.ForEachDevice(func(loc scsi.Location) error {
		e := Entry{Target: loc.Target.Bytes(), Lun: loc.Lun}

		path, err := s.BuildDevicePath(loc)
		switch st, _ := scsi.StatusOf(err); {
		case err == nil:
			e.Path = path.Bytes()
			if err := path.Release(); err != nil {
				return err
			}
		case st == raw.StatusNotFound, st == raw.StatusUnsupported:
		default:
			return fmt.Errorf("device path for %s: %w", loc, err)
		}

		snap.Devices = append(snap.Devices, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// PathString renders an entry's device path for display
func (e Entry) PathString() string {
	if len(e.Path) == 0 {
		return "-"
	}
	n, err := devicepath.Parse(e.Path)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return n.String()
}
