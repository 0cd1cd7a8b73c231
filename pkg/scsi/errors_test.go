//go:build unit

package scsi

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/emergingrobotics/go-efiscsi/pkg/raw"
	"github.com/emergingrobotics/go-efiscsi/pkg/sim"
)

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		err      *Error
		expected string
	}{
		{NewError(raw.StatusNotFound, ""), "not found"},
		{NewError(raw.StatusNotFound, "GetNextTargetLun"), "GetNextTargetLun: not found"},
		{NewErrorWithCause(raw.StatusInvalidParameter, "PassThru", errors.New("empty command block")),
			"PassThru: invalid parameter: empty command block"},
		{NewErrorWithCause(raw.StatusDeviceError, "", errors.New("boom")), "device error: boom"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.expected {
			t.Errorf("Error() = %q, expected %q", got, tt.expected)
		}
	}
}

func TestErrorIsMatchesStatus(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewError(raw.StatusTimeout, "ResetBus"))

	if !errors.Is(err, NewError(raw.StatusTimeout, "other op")) {
		t.Error("errors.Is should match on status")
	}
	if errors.Is(err, NewError(raw.StatusNotReady, "")) {
		t.Error("errors.Is matched a different status")
	}
	st, ok := StatusOf(err)
	if !ok || st != raw.StatusTimeout {
		t.Errorf("StatusOf() = (%v, %v), expected (timeout, true)", st, ok)
	}
}

func TestErrorIsDetectsEnumerationEnd(t *testing.T) {
	e, _ := newTestChannel(t, &sim.Device{Target: []byte{1}})
	s := exclusive(t, e)

	loc, err := s.NextTargetLun(nil)
	if err != nil {
		t.Fatalf("NextTargetLun failed: %v", err)
	}
	defer loc.Release()

	_, err = s.NextTargetLun(&loc)
	if !errors.Is(err, NewError(raw.StatusNotFound, "")) {
		t.Errorf("end of enumeration = %v, expected not found", err)
	}
	if errors.Is(err, NewError(raw.StatusBufferTooSmall, "")) {
		t.Error("not found matched a short buffer status")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("cause")
	err := NewErrorWithCause(raw.StatusDeviceError, "op", cause)
	if !errors.Is(err, cause) {
		t.Error("cause not reachable through Unwrap")
	}
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		short    bool
		noMore   bool
		warning  bool
		hasState bool
	}{
		{"bad buffer size", NewError(raw.StatusBadBufferSize, ""), true, false, false, true},
		{"buffer too small", NewError(raw.StatusBufferTooSmall, ""), true, false, false, true},
		{"warning buffer too small", NewError(raw.StatusWarnBufferTooSmall, ""), false, false, true, true},
		{"not found", NewError(raw.StatusNotFound, ""), false, true, false, true},
		{"sentinel", ErrHandleBusy, false, false, false, false},
		{"nil", nil, false, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsShortBuffer(tt.err); got != tt.short {
				t.Errorf("IsShortBuffer() = %v, expected %v", got, tt.short)
			}
			if got := IsNoMoreDevices(tt.err); got != tt.noMore {
				t.Errorf("IsNoMoreDevices() = %v, expected %v", got, tt.noMore)
			}
			if got := IsWarning(tt.err); got != tt.warning {
				t.Errorf("IsWarning() = %v, expected %v", got, tt.warning)
			}
			if _, ok := StatusOf(tt.err); ok != tt.hasState {
				t.Errorf("StatusOf() ok = %v, expected %v", ok, tt.hasState)
			}
		})
	}
}

func TestTimeoutTicks(t *testing.T) {
	tests := []struct {
		d        time.Duration
		expected uint64
	}{
		{0, 0},
		{-time.Second, 0},
		{1, 1},
		{100, 1},
		{101, 2},
		{time.Second, 10_000_000},
	}
	for _, tt := range tests {
		if got := timeoutTicks(tt.d); got != tt.expected {
			t.Errorf("timeoutTicks(%v) = %d, expected %d", tt.d, got, tt.expected)
		}
	}
}

func TestRequestPacketFields(t *testing.T) {
	req := &Request{
		Timeout:   time.Millisecond,
		Direction: raw.DataDirectionBidirectional,
		CDB:       make([]byte, 16),
		In:        make([]byte, 512),
		Out:       make([]byte, 128),
		Sense:     make([]byte, 18),
	}
	p, err := req.begin(false)
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	if p.Timeout != 10_000 || p.CdbLength != 16 || p.InTransferLength != 512 ||
		p.OutTransferLength != 128 || p.SenseDataLength != 18 {
		t.Errorf("packet = %+v", p)
	}
	if p.InDataBuffer == nil || p.OutDataBuffer == nil || p.SenseData == nil || p.Cdb == nil {
		t.Error("packet buffer pointers not set")
	}
	if p.DataDirection != raw.DataDirectionBidirectional {
		t.Errorf("DataDirection = %v", p.DataDirection)
	}

	empty, err := (&Request{CDB: []byte{0}}).begin(false)
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	if empty.InDataBuffer != nil || empty.InTransferLength != 0 {
		t.Error("empty In produced a buffer reference")
	}
}

func TestAllocAligned(t *testing.T) {
	for _, align := range []uint32{0, 1, 2, 8, 64, 4096} {
		b := AllocAligned(100, align)
		if len(b) != 100 || cap(b) != 100 {
			t.Errorf("AllocAligned(100, %d) len/cap = %d/%d", align, len(b), cap(b))
		}
		if align > 1 && !aligned(b, align) {
			t.Errorf("AllocAligned(100, %d) not aligned", align)
		}
	}
	if b := AllocAligned(0, 8); len(b) != 0 {
		t.Errorf("AllocAligned(0, 8) len = %d", len(b))
	}
}

func TestTargetOwnership(t *testing.T) {
	tgt := NewTarget([]byte{1, 2})
	b := tgt.Bytes()
	b[0] = 0xff
	if tgt.Bytes()[0] != 1 {
		t.Error("Bytes() exposed internal storage")
	}
	if tgt.String() != "0102" {
		t.Errorf("String() = %q", tgt.String())
	}
	if err := tgt.Release(); err != nil {
		t.Errorf("Release of caller-owned target failed: %v", err)
	}
	if !tgt.Released() || tgt.Bytes() != nil || tgt.String() != "<released>" {
		t.Error("released target still readable")
	}
	if err := tgt.Release(); !errors.Is(err, ErrReleased) {
		t.Errorf("second Release = %v, expected ErrReleased", err)
	}

	var nilTarget *Target
	if nilTarget.Release() != nil || nilTarget.Bytes() != nil || nilTarget.String() != "<nil>" {
		t.Error("nil target not handled")
	}
}

type failingPool struct{}

func (failingPool) FreePool([]byte) raw.Status { return raw.StatusInvalidParameter }

func TestReleaseReportsPoolFailure(t *testing.T) {
	tgt := newTarget([]byte{1}, failingPool{})
	err := tgt.Release()
	st, ok := StatusOf(err)
	if !ok || st != raw.StatusInvalidParameter {
		t.Errorf("Release() = %v, expected invalid parameter", err)
	}
	if !tgt.Released() {
		t.Error("target usable after failed release")
	}
}
