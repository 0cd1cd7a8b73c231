//go:build unit

package scsi

import (
	"errors"
	"testing"

	"github.com/emergingrobotics/go-efiscsi/pkg/devicepath"
	"github.com/emergingrobotics/go-efiscsi/pkg/raw"
	"github.com/emergingrobotics/go-efiscsi/testutil"
)

func inquiryRequest() *Request {
	return &Request{
		CDB:   []byte{0x12, 0, 0, 0, 36, 0},
		In:    make([]byte, 36),
		Sense: make([]byte, 18),
	}
}

func TestFailedCallsNeverExposeOutputs(t *testing.T) {
	statuses := []raw.Status{
		raw.StatusDeviceError,
		raw.StatusNotFound,
		raw.StatusTimeout,
		raw.StatusWarnStaleData,
	}

	for _, st := range statuses {
		t.Run(st.String(), func(t *testing.T) {
			pool := testutil.NewFakePool()
			table := testutil.NewFakeTable(pool)
			table.SetStatus(st)

			h, err := NewScsiIo(table, pool)
			testutil.AssertNoError(t, err, "NewScsiIo")

			dt, err := h.DeviceType()
			testutil.AssertError(t, err, "DeviceType")
			if dt != 0 {
				t.Errorf("DeviceType = %v, expected 0", dt)
			}
			loc, err := h.DeviceLocation()
			testutil.AssertError(t, err, "DeviceLocation")
			if loc.Target != nil || loc.Lun != 0 {
				t.Errorf("DeviceLocation = %v, expected zero location", loc)
			}

			s, err := h.Exclusive()
			testutil.AssertNoError(t, err, "Exclusive")
			req := inquiryRequest()
			testutil.AssertError(t, s.Execute(req), "Execute")
			if req.InTransferLength != 0 || req.OutTransferLength != 0 || req.SenseDataLength != 0 {
				t.Errorf("lengths = (%d, %d, %d), expected zero",
					req.InTransferLength, req.OutTransferLength, req.SenseDataLength)
			}
			if req.HostAdapterStatus != raw.HostAdapterStatusOK || req.TargetStatus != raw.TargetStatusGood {
				t.Errorf("statuses = (%v, %v), expected zero", req.HostAdapterStatus, req.TargetStatus)
			}
			testutil.AssertNoError(t, s.Release(), "Release")

			e, err := NewExtScsiPassThru(table, pool)
			testutil.AssertNoError(t, err, "NewExtScsiPassThru")
			ps, err := e.Exclusive()
			testutil.AssertNoError(t, err, "Exclusive")
			defer ps.Release()

			next, err := ps.NextTargetLun(nil)
			testutil.AssertError(t, err, "NextTargetLun")
			if next.Target != nil || next.Lun != 0 {
				t.Errorf("NextTargetLun = %v, expected zero location", next)
			}
			tgt, err := ps.NextTarget(nil)
			testutil.AssertError(t, err, "NextTarget")
			if tgt != nil {
				t.Errorf("NextTarget = %v, expected nil", tgt)
			}
			path, err := ps.BuildDevicePath(Location{Target: NewTarget([]byte{1})})
			testutil.AssertError(t, err, "BuildDevicePath")
			if path != nil {
				t.Errorf("BuildDevicePath = %v, expected nil", path)
			}
			node, err := devicepath.Parse(devicepath.EndEntire())
			testutil.AssertNoError(t, err, "Parse")
			byPath, err := ps.TargetLun(node)
			testutil.AssertError(t, err, "TargetLun")
			if byPath.Target != nil || byPath.Lun != 0 {
				t.Errorf("TargetLun = %v, expected zero location", byPath)
			}

			if got, _ := StatusOf(err); got != st {
				t.Errorf("StatusOf = %v, expected %v", got, st)
			}
			if pool.Outstanding() != 0 {
				t.Errorf("Outstanding() = %d, expected 0", pool.Outstanding())
			}
		})
	}
}

func TestShortBufferExposesOnlyLengths(t *testing.T) {
	for _, st := range []raw.Status{raw.StatusBadBufferSize, raw.StatusBufferTooSmall} {
		pool := testutil.NewFakePool()
		table := testutil.NewFakeTable(pool)
		table.SetStatus(st)

		h, err := NewScsiIo(table, pool)
		testutil.AssertNoError(t, err, "NewScsiIo")
		s, err := h.Exclusive()
		testutil.AssertNoError(t, err, "Exclusive")

		req := inquiryRequest()
		err = s.Execute(req)
		if !IsShortBuffer(err) {
			t.Errorf("Execute() = %v, expected short buffer", err)
		}
		if req.InTransferLength != 0xa5a5a5a5 || req.OutTransferLength != 0xa5a5a5a5 {
			t.Errorf("lengths = (%#x, %#x), expected required capacity", req.InTransferLength, req.OutTransferLength)
		}
		if req.SenseDataLength != 0 || req.TargetStatus != raw.TargetStatusGood {
			t.Errorf("sense length %d and target status %v leaked", req.SenseDataLength, req.TargetStatus)
		}
		testutil.AssertNoError(t, s.Release(), "Release")
	}
}

func TestSuccessfulOutputsReturnToPool(t *testing.T) {
	pool := testutil.NewFakePool()
	table := testutil.NewFakeTable(pool)

	h, err := NewScsiIo(table, pool)
	testutil.AssertNoError(t, err, "NewScsiIo")
	loc, err := h.DeviceLocation()
	testutil.AssertNoError(t, err, "DeviceLocation")
	testutil.AssertBytesEqual(t, loc.Target.Bytes(), []byte{
		0xa5, 0xa5, 0xa5, 0xa5, 0xa5, 0xa5, 0xa5, 0xa5,
		0xa5, 0xa5, 0xa5, 0xa5, 0xa5, 0xa5, 0xa5, 0xa5,
	}, "target")

	pool.SetFailOnFree(true)
	err = loc.Release()
	if st, _ := StatusOf(err); st != raw.StatusDeviceError {
		t.Errorf("Release() = %v, expected device error", err)
	}
	pool.SetFailOnFree(false)
	if err := loc.Release(); !errors.Is(err, ErrReleased) {
		t.Errorf("second Release() = %v, expected ErrReleased", err)
	}
	if pool.Frees() != 0 {
		t.Errorf("Frees() = %d, expected 0", pool.Frees())
	}
}
