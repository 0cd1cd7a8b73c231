//go:build unit

package inventory

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/emergingrobotics/go-efiscsi/pkg/raw"
	"github.com/emergingrobotics/go-efiscsi/pkg/scsi"
	"github.com/emergingrobotics/go-efiscsi/pkg/sim"
)

func TestCollect(t *testing.T) {
	mode := raw.ExtScsiPassThruMode{AdapterId: 3, Attributes: raw.ExtScsiPassThruAttributesPhysical, IoAlign: 2}
	devices := []*sim.Device{
		{Target: []byte{1}, Lun: 0},
		{Target: []byte{0, 0, 1}, Lun: 0}, // does not fit a SCSI node
	}
	c := sim.NewChannel(sim.NewPool(), mode, devices)
	e, err := scsi.NewExtScsiPassThru(c, c.Pool())
	if err != nil {
		t.Fatalf("NewExtScsiPassThru failed: %v", err)
	}
	s, err := e.Exclusive()
	if err != nil {
		t.Fatalf("Exclusive failed: %v", err)
	}
	defer s.Release()

	snap, err := Collect(s)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if snap.AdapterID != 3 || snap.IoAlign != 2 {
		t.Errorf("snapshot mode = (%d, %d), expected (3, 2)", snap.AdapterID, snap.IoAlign)
	}
	if len(snap.Devices) != 2 {
		t.Fatalf("Devices = %d, expected 2", len(snap.Devices))
	}
	// sorted by target bytes: 00 00 01 sorts before 01
	if len(snap.Devices[0].Path) != 0 {
		t.Errorf("wide target got a path: %x", snap.Devices[0].Path)
	}
	if snap.Devices[1].PathString() != "Scsi(0x1,0x0)" {
		t.Errorf("PathString() = %q", snap.Devices[1].PathString())
	}
	if c.Pool().Outstanding() != 0 {
		t.Errorf("Outstanding() = %d, expected 0", c.Pool().Outstanding())
	}
}

func TestCollectPropagatesFailure(t *testing.T) {
	c := sim.NewChannel(sim.NewPool(), raw.ExtScsiPassThruMode{}, []*sim.Device{{Target: []byte{1}}})
	e, err := scsi.NewExtScsiPassThru(c, c.Pool())
	if err != nil {
		t.Fatalf("NewExtScsiPassThru failed: %v", err)
	}
	s, err := e.Exclusive()
	if err != nil {
		t.Fatalf("Exclusive failed: %v", err)
	}
	defer s.Release()

	c.FailNext(sim.OpBuildDevicePath, raw.StatusDeviceError)
	if _, err := Collect(s); !errors.Is(err, scsi.NewError(raw.StatusDeviceError, "")) {
		t.Errorf("Collect() = %v, expected device error", err)
	}
	if c.Pool().Outstanding() != 0 {
		t.Errorf("Outstanding() = %d, expected 0", c.Pool().Outstanding())
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	snap := &Snapshot{
		AdapterID:   7,
		Attributes:  raw.ExtScsiPassThruAttributesLogical,
		IoAlign:     4,
		CollectedAt: time.Unix(1700000000, 123).UTC(),
		Devices: []Entry{
			{Target: []byte{1, 0, 0, 0}, Lun: 0, Path: []byte{3, 2, 8, 0, 1, 0, 0, 0}},
			{Target: []byte{2}, Lun: 5},
		},
	}

	got, err := Unmarshal(Marshal(snap))
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if diff := cmp.Diff(snap, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestUnmarshalSkipsUnknownFields(t *testing.T) {
	b := Marshal(&Snapshot{AdapterID: 1})
	b = protowire.AppendTag(b, 99, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte("future"))
	b = protowire.AppendTag(b, 98, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, 5)

	got, err := Unmarshal(b)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if got.AdapterID != 1 {
		t.Errorf("AdapterID = %d, expected 1", got.AdapterID)
	}
}

func TestUnmarshalTruncated(t *testing.T) {
	b := Marshal(&Snapshot{Devices: []Entry{{Target: []byte{1, 2, 3}}}})
	if _, err := Unmarshal(b[:len(b)-1]); !errors.Is(err, ErrTruncated) {
		t.Errorf("Unmarshal(truncated) = %v, expected ErrTruncated", err)
	}
}
