//go:build unit

package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/emergingrobotics/go-efiscsi/pkg/inventory"
	"github.com/emergingrobotics/go-efiscsi/testutil"
)

const testFixture = `
adapter_id: 7
attributes: [physical, logical]
devices:
  - target: "01"
    lun: 0
    type: disk
    vendor: ACME
    product: Virtual Disk
    revision: "1.0"
  - target: "02"
    lun: 3
    type: tape
`

func writeFixture(t *testing.T) string {
	t.Helper()
	return testutil.TempFile(t, "channel.yaml", []byte(testFixture))
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := run(args, &out, &errOut)
	return out.String() + errOut.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	if err != nil {
		t.Errorf("version should not error: %v", err)
	}
	if !strings.Contains(out, "version") {
		t.Error("version output should contain version info")
	}
}

func TestNoArgsPrintsUsage(t *testing.T) {
	out, err := runCLI(t)
	if err != nil {
		t.Errorf("no args should not error: %v", err)
	}
	if !strings.Contains(out, "Usage") {
		t.Error("output should contain Usage")
	}
}

func TestUnknownCommand(t *testing.T) {
	out, err := runCLI(t, "frobnicate")
	if !errors.Is(err, errUsage) {
		t.Errorf("err = %v, expected errUsage", err)
	}
	if !strings.Contains(out, "Unknown command: frobnicate") {
		t.Errorf("output = %q", out)
	}
}

func TestLayoutCommand(t *testing.T) {
	out, err := runCLI(t, "layout")
	if err != nil {
		t.Fatalf("layout failed: %v", err)
	}
	for _, want := range []string{"ScsiIoScsiRequestPacket:", "SenseDataLength:", "932f47e6-2362-4002-803e-3cd54b138f85"} {
		if !strings.Contains(out, want) {
			t.Errorf("layout output missing %q", want)
		}
	}
}

func TestInquiryFixture(t *testing.T) {
	out, err := runCLI(t, "inquiry", "-fixture", writeFixture(t))
	if err != nil {
		t.Fatalf("inquiry failed: %v", err)
	}
	for _, want := range []string{"Vendor:   ACME", "Product:  Virtual Disk", "Revision: 1.0"} {
		if !strings.Contains(out, want) {
			t.Errorf("inquiry output missing %q:\n%s", want, out)
		}
	}
}

func TestEnumerateFixtureWritesInventory(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "inventory.pb")
	out, err := runCLI(t, "enumerate", "-fixture", writeFixture(t), "-o", dst, "-metrics")
	if err != nil {
		t.Fatalf("enumerate failed: %v", err)
	}
	if !strings.Contains(out, "Scsi(0x1,0x0)") || !strings.Contains(out, "Scsi(0x2,0x3)") {
		t.Errorf("enumerate output missing device paths:\n%s", out)
	}
	if !strings.Contains(out, `scsi_calls_total{op="GetNextTargetLun",protocol="ext_scsi_pass_thru",status="success"} 2`) {
		t.Errorf("enumerate output missing call counters:\n%s", out)
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("failed to read inventory: %v", err)
	}
	snap, err := inventory.Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if snap.AdapterID != 7 {
		t.Errorf("AdapterID = %d, expected 7", snap.AdapterID)
	}
	if len(snap.Devices) != 2 {
		t.Errorf("Devices = %d, expected 2", len(snap.Devices))
	}
}

func TestEnumerateRejectsBothSources(t *testing.T) {
	if _, err := runCLI(t, "enumerate", "-fixture", "x.yaml", "-host", "0"); err == nil {
		t.Error("expected error for -fixture with -host")
	}
}

func TestEnumerateMissingFixture(t *testing.T) {
	if _, err := runCLI(t, "enumerate", "-fixture", filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing fixture")
	}
}

func TestDecodeInquiry(t *testing.T) {
	b := make([]byte, 36)
	b[0] = 0x05
	copy(b[8:], "VENDOR  PRODUCT         REV1")
	inq, err := decodeInquiry(b)
	if err != nil {
		t.Fatalf("decodeInquiry failed: %v", err)
	}
	if inq.Vendor != "VENDOR" || inq.Product != "PRODUCT" || inq.Revision != "REV1" {
		t.Errorf("decodeInquiry = %+v", inq)
	}
	if _, err := decodeInquiry(b[:10]); err == nil {
		t.Error("expected error for short data")
	}
}

func TestLoggerVerbosity(t *testing.T) {
	var buf bytes.Buffer
	log, sync, err := newLogger(1, &buf)
	if err != nil {
		t.Fatalf("newLogger failed: %v", err)
	}
	log.V(1).Info("visible")
	log.V(2).Info("hidden")
	sync()

	if !strings.Contains(buf.String(), "visible") || strings.Contains(buf.String(), "hidden") {
		t.Errorf("log output = %q", buf.String())
	}
	if _, _, err := newLogger(-1, &buf); err == nil {
		t.Error("expected error for negative verbosity")
	}
}
