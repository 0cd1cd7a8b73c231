//go:build linux && unit

package sg

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/emergingrobotics/go-efiscsi/pkg/raw"
	"github.com/emergingrobotics/go-efiscsi/pkg/scsi"
)

func TestSgIoHdrLayout(t *testing.T) {
	if unsafe.Sizeof(uintptr(0)) != 8 {
		t.Skip("layout checked on 64-bit only")
	}
	if SizeOfSgIoHdr != 88 {
		t.Errorf("SgIoHdr size = %d, expected 88", SizeOfSgIoHdr)
	}
	if SizeOfSgScsiID != 32 {
		t.Errorf("SgScsiID size = %d, expected 32", SizeOfSgScsiID)
	}

	var h SgIoHdr
	tests := []struct {
		name     string
		offset   uintptr
		expected uintptr
	}{
		{"DxferLen", unsafe.Offsetof(h.DxferLen), 12},
		{"Dxferp", unsafe.Offsetof(h.Dxferp), 16},
		{"Cmdp", unsafe.Offsetof(h.Cmdp), 24},
		{"Sbp", unsafe.Offsetof(h.Sbp), 32},
		{"Timeout", unsafe.Offsetof(h.Timeout), 40},
		{"PackID", unsafe.Offsetof(h.PackID), 48},
		{"UsrPtr", unsafe.Offsetof(h.UsrPtr), 56},
		{"Status", unsafe.Offsetof(h.Status), 64},
		{"SbLenWr", unsafe.Offsetof(h.SbLenWr), 67},
		{"HostStatus", unsafe.Offsetof(h.HostStatus), 68},
		{"Resid", unsafe.Offsetof(h.Resid), 72},
		{"Info", unsafe.Offsetof(h.Info), 80},
	}
	for _, tt := range tests {
		if tt.offset != tt.expected {
			t.Errorf("offset of %s = %d, expected %d", tt.name, tt.offset, tt.expected)
		}
	}
}

func TestErrnoToStatus(t *testing.T) {
	tests := []struct {
		errno    unix.Errno
		expected raw.Status
	}{
		{0, raw.StatusSuccess},
		{unix.ENOMEM, raw.StatusOutOfResources},
		{unix.EINVAL, raw.StatusInvalidParameter},
		{unix.ENOTTY, raw.StatusUnsupported},
		{unix.ETIMEDOUT, raw.StatusTimeout},
		{unix.EINTR, raw.StatusAborted},
		{unix.EBUSY, raw.StatusNotReady},
		{unix.EACCES, raw.StatusAccessDenied},
		{unix.ENOENT, raw.StatusNotFound},
		{unix.ENXIO, raw.StatusNoMedia},
		{unix.EIO, raw.StatusDeviceError},
	}
	for _, tt := range tests {
		if got := ErrnoToStatus(tt.errno); got != tt.expected {
			t.Errorf("ErrnoToStatus(%v) = %v, expected %v", tt.errno, got, tt.expected)
		}
	}
}

func TestHostStatus(t *testing.T) {
	tests := []struct {
		did      uint16
		expected raw.HostAdapterStatus
	}{
		{didOK, raw.HostAdapterStatusOK},
		{didNoConnect, raw.HostAdapterStatusSelectionTimeout},
		{didBadTarget, raw.HostAdapterStatusSelectionTimeout},
		{didTimeOut, raw.HostAdapterStatusTimeout},
		{didParity, raw.HostAdapterStatusParityError},
		{didReset, raw.HostAdapterStatusBusReset},
		{didError, raw.HostAdapterStatusOther},
	}
	for _, tt := range tests {
		if got := hostStatus(tt.did); got != tt.expected {
			t.Errorf("hostStatus(%#x) = %v, expected %v", tt.did, got, tt.expected)
		}
	}
}

func TestTimeoutMillis(t *testing.T) {
	tests := []struct {
		ticks    uint64
		expected uint32
	}{
		{0, math.MaxUint32},
		{1, 1},
		{10000, 1},
		{10001, 2},
		{30 * 10000 * 1000, 30000},
		{math.MaxUint64, math.MaxUint32},
	}
	for _, tt := range tests {
		if got := timeoutMillis(tt.ticks); got != tt.expected {
			t.Errorf("timeoutMillis(%d) = %d, expected %d", tt.ticks, got, tt.expected)
		}
	}
}

func TestNewHdr(t *testing.T) {
	cdb := []byte{0x12, 0, 0, 0, 36, 0}
	in := make([]byte, 36)
	out := make([]byte, 512)
	sense := make([]byte, 18)

	read := &raw.ScsiIoScsiRequestPacket{
		Cdb:              unsafe.Pointer(&cdb[0]),
		CdbLength:        uint8(len(cdb)),
		InDataBuffer:     unsafe.Pointer(&in[0]),
		InTransferLength: uint32(len(in)),
		SenseData:        unsafe.Pointer(&sense[0]),
		SenseDataLength:  uint8(len(sense)),
		DataDirection:    raw.DataDirectionRead,
	}
	h, st := newHdr(read)
	if st != raw.StatusSuccess {
		t.Fatalf("newHdr(read) = %v", st)
	}
	if h.InterfaceID != 'S' || h.DxferDirection != dxferFromDev || h.DxferLen != 36 || h.MxSbLen != 18 {
		t.Errorf("read header = %+v", h)
	}
	if h.Timeout != math.MaxUint32 {
		t.Errorf("Timeout = %d, expected %d", h.Timeout, uint32(math.MaxUint32))
	}

	write := &raw.ScsiIoScsiRequestPacket{
		Cdb:               unsafe.Pointer(&cdb[0]),
		CdbLength:         uint8(len(cdb)),
		OutDataBuffer:     unsafe.Pointer(&out[0]),
		OutTransferLength: uint32(len(out)),
		DataDirection:     raw.DataDirectionWrite,
	}
	if h, _ := newHdr(write); h.DxferDirection != dxferToDev || h.Sbp != nil {
		t.Errorf("write header = %+v", h)
	}

	noData := &raw.ScsiIoScsiRequestPacket{Cdb: unsafe.Pointer(&cdb[0]), CdbLength: 6}
	if h, _ := newHdr(noData); h.DxferDirection != dxferNone {
		t.Errorf("DxferDirection = %d, expected %d", h.DxferDirection, dxferNone)
	}

	bidi := &raw.ScsiIoScsiRequestPacket{Cdb: unsafe.Pointer(&cdb[0]), CdbLength: 6, DataDirection: raw.DataDirectionBidirectional}
	if _, st := newHdr(bidi); st != raw.StatusUnsupported {
		t.Errorf("newHdr(bidirectional) = %v, expected unsupported", st)
	}
	if _, st := newHdr(&raw.ScsiIoScsiRequestPacket{}); st != raw.StatusInvalidParameter {
		t.Errorf("newHdr(no cdb) = %v, expected invalid parameter", st)
	}
}

func TestCompleteAppliesResidual(t *testing.T) {
	p := &raw.ScsiIoScsiRequestPacket{InTransferLength: 96, DataDirection: raw.DataDirectionRead}
	h := &SgIoHdr{
		DxferDirection: dxferFromDev,
		DxferLen:       96,
		Resid:          60,
		Status:         uint8(raw.TargetStatusCheckCondition),
		HostStatus:     didOK,
		MxSbLen:        18,
		SbLenWr:        14,
	}
	complete(p, h)

	if p.InTransferLength != 36 {
		t.Errorf("InTransferLength = %d, expected 36", p.InTransferLength)
	}
	if p.TargetStatus != raw.TargetStatusCheckCondition {
		t.Errorf("TargetStatus = %v, expected check condition", p.TargetStatus)
	}
	if p.SenseDataLength != 14 {
		t.Errorf("SenseDataLength = %d, expected 14", p.SenseDataLength)
	}
}

func TestTargetEncoding(t *testing.T) {
	b := encodeTarget(0x1234, 2)
	if len(b) != raw.TargetMaxBytes {
		t.Fatalf("len = %d, expected %d", len(b), raw.TargetMaxBytes)
	}
	tgt, ch, ok := decodeTarget(b)
	if !ok || tgt != 0x1234 || ch != 2 {
		t.Errorf("decodeTarget = (%#x, %d, %v), expected (0x1234, 2, true)", tgt, ch, ok)
	}
	b[15] = 1
	if _, _, ok := decodeTarget(b); ok {
		t.Error("expected decode failure with high bytes set")
	}
}

func TestParseHCTL(t *testing.T) {
	u, err := parseHCTL("2:0:5:1")
	if err != nil {
		t.Fatalf("parseHCTL failed: %v", err)
	}
	if u.Host != 2 || u.Channel != 0 || u.Target != 5 || u.Lun != 1 {
		t.Errorf("parseHCTL = %+v", u)
	}
	if u.String() != "2:0:5:1" {
		t.Errorf("String() = %q", u.String())
	}

	for _, bad := range []string{"", "1:2:3", "a:0:0:0", "0:0:-1:0", "host0"} {
		if _, err := parseHCTL(bad); err == nil {
			t.Errorf("parseHCTL(%q) expected error", bad)
		}
	}
}

// mockSysfs lays out /sys/class/scsi_generic and /dev for the given
// sg name to H:C:T:L mapping
func mockSysfs(t *testing.T, nodes map[string]string) *Scanner {
	t.Helper()
	root := t.TempDir()
	sysfs := filepath.Join(root, "sys", "class", "scsi_generic")
	dev := filepath.Join(root, "dev")
	for _, dir := range []string{sysfs, dev} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("failed to create %s: %v", dir, err)
		}
	}

	for name, hctl := range nodes {
		nodeDir := filepath.Join(sysfs, name)
		if err := os.Mkdir(nodeDir, 0755); err != nil {
			t.Fatalf("failed to create node dir: %v", err)
		}
		link := filepath.Join("..", "..", "..", "devices", "target", hctl)
		if err := os.Symlink(link, filepath.Join(nodeDir, "device")); err != nil {
			t.Fatalf("failed to create device link: %v", err)
		}
		f, err := os.Create(filepath.Join(dev, name))
		if err != nil {
			t.Fatalf("failed to create device file: %v", err)
		}
		f.Close()
	}
	return NewScannerAt(sysfs, dev)
}

func TestScanFindsUnitsInMockSysfs(t *testing.T) {
	s := mockSysfs(t, map[string]string{
		"sg0": "0:0:0:0",
		"sg1": "1:0:2:0",
		"sg2": "1:0:2:1",
	})

	all, err := s.Scan()
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("found %d units, expected 3", len(all))
	}

	host1, err := s.ScanHost(1)
	if err != nil {
		t.Fatalf("ScanHost failed: %v", err)
	}
	if len(host1) != 2 {
		t.Errorf("found %d units on host 1, expected 2", len(host1))
	}
}

func TestScanMissingSysfs(t *testing.T) {
	s := NewScannerAt(filepath.Join(t.TempDir(), "missing"), t.TempDir())
	if _, err := s.Scan(); err == nil {
		t.Error("expected error for missing sysfs directory")
	}
}

func TestHostEnumeration(t *testing.T) {
	s := mockSysfs(t, map[string]string{
		"sg0": "0:0:0:0",
		"sg1": "3:0:2:1",
		"sg2": "3:0:2:0",
		"sg3": "3:1:4:0",
	})
	h, err := NewHost(3, WithScanner(s))
	if err != nil {
		t.Fatalf("NewHost failed: %v", err)
	}
	if got := len(h.Units()); got != 3 {
		t.Fatalf("Units() = %d, expected 3", got)
	}

	e, err := scsi.NewExtScsiPassThru(h, h.Pool())
	if err != nil {
		t.Fatalf("NewExtScsiPassThru failed: %v", err)
	}
	session, err := e.Exclusive()
	if err != nil {
		t.Fatalf("Exclusive failed: %v", err)
	}
	defer session.Release()

	var seen []string
	var paths int
	err = session.ForEachDevice(func(loc scsi.Location) error {
		seen = append(seen, loc.String())
		path, err := session.BuildDevicePath(loc)
		if err != nil {
			if st, _ := scsi.StatusOf(err); st != raw.StatusNotFound {
				return err
			}
			return nil
		}
		paths++
		return path.Release()
	})
	if err != nil {
		t.Fatalf("ForEachDevice failed: %v", err)
	}
	if len(seen) != 3 {
		t.Errorf("enumerated %v, expected 3 units", seen)
	}
	// The unit on channel 1 has no SCSI node
	if paths != 2 {
		t.Errorf("built %d paths, expected 2", paths)
	}
	if h.Pool().Outstanding() != 0 {
		t.Errorf("Outstanding() = %d, expected 0", h.Pool().Outstanding())
	}
}

func TestHostTargetLunRoundTrip(t *testing.T) {
	s := mockSysfs(t, map[string]string{"sg0": "0:0:6:2"})
	h, err := NewHost(0, WithScanner(s))
	if err != nil {
		t.Fatalf("NewHost failed: %v", err)
	}

	var path []byte
	if st := h.BuildDevicePath(encodeTarget(6, 0), 2, &path); st != raw.StatusSuccess {
		t.Fatalf("BuildDevicePath = %v", st)
	}
	var target []byte
	var lun uint64
	if st := h.GetTargetLun(path, &target, &lun); st != raw.StatusSuccess {
		t.Fatalf("GetTargetLun = %v", st)
	}
	if tgt, _, _ := decodeTarget(target); tgt != 6 || lun != 2 {
		t.Errorf("GetTargetLun = (%d, %d), expected (6, 2)", tgt, lun)
	}
	for _, b := range [][]byte{path, target} {
		if st := h.Pool().FreePool(b); st != raw.StatusSuccess {
			t.Errorf("FreePool = %v", st)
		}
	}
	if st := h.Pool().FreePool(target); st != raw.StatusInvalidParameter {
		t.Errorf("double FreePool = %v, expected invalid parameter", st)
	}
}

func TestHostUnknownUnit(t *testing.T) {
	s := mockSysfs(t, map[string]string{"sg0": "0:0:0:0"})
	h, err := NewHost(0, WithScanner(s))
	if err != nil {
		t.Fatalf("NewHost failed: %v", err)
	}

	if st := h.ResetTargetLun(encodeTarget(9, 0), 0); st != raw.StatusNotFound {
		t.Errorf("ResetTargetLun = %v, expected not found", st)
	}
	p := &raw.ExtScsiIoScsiRequestPacket{}
	if st := h.PassThru(encodeTarget(9, 0), 0, p, nil); st != raw.StatusInvalidParameter {
		t.Errorf("PassThru = %v, expected invalid parameter", st)
	}
	target := encodeTarget(9, 0)
	lun := uint64(0)
	if st := h.GetNextTargetLun(&target, &lun); st != raw.StatusInvalidParameter {
		t.Errorf("GetNextTargetLun(unknown cursor) = %v, expected invalid parameter", st)
	}
}

func TestOpenNonExistentDevice(t *testing.T) {
	_, err := Open("/dev/sg_nonexistent_device_12345")
	if err == nil {
		t.Fatal("expected error when opening non-existent device")
	}
	if !errors.Is(err, scsi.NewError(raw.StatusNotFound, "")) {
		t.Errorf("Open() = %v, expected not found", err)
	}
}
