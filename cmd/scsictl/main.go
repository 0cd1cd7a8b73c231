package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"unsafe"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/emergingrobotics/go-efiscsi/pkg/inventory"
	"github.com/emergingrobotics/go-efiscsi/pkg/metrics"
	"github.com/emergingrobotics/go-efiscsi/pkg/raw"
	"github.com/emergingrobotics/go-efiscsi/pkg/scsi"
	"github.com/emergingrobotics/go-efiscsi/pkg/sim"
)

// Version information (set by ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GoVersion = "unknown"
)

var errUsage = errors.New("usage")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

type cli struct {
	out io.Writer
	log logr.Logger
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("scsictl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	verbosity := fs.Int("v", 0, "log verbosity (1 traces every table call)")
	fs.Usage = func() { printUsage(stderr) }
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return errUsage
	}

	rest := fs.Args()
	if len(rest) == 0 {
		printUsage(stdout)
		return nil
	}

	log, sync, err := newLogger(*verbosity, stderr)
	if err != nil {
		return err
	}
	defer sync()

	c := &cli{out: stdout, log: log}
	cmd, cmdArgs := rest[0], rest[1:]
	switch cmd {
	case "scan":
		return c.scan(cmdArgs)
	case "info":
		return c.info(cmdArgs)
	case "inquiry":
		return c.inquiry(cmdArgs)
	case "enumerate":
		return c.enumerate(cmdArgs)
	case "layout":
		c.layout()
		return nil
	case "version":
		printVersion(stdout)
		return nil
	case "help":
		printUsage(stdout)
		return nil
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", cmd)
		printUsage(stderr)
		return errUsage
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "SCSI channel CLI")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: scsictl [-v N] <command> [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  scan                          Probe all SCSI generic nodes")
	fmt.Fprintln(w, "  info <device>                 Show type and location of an sg node")
	fmt.Fprintln(w, "  inquiry [-fixture f] [dev]    Issue a standard INQUIRY")
	fmt.Fprintln(w, "  enumerate [-fixture f | -host n] [-o file]")
	fmt.Fprintln(w, "                                List logical units and device paths")
	fmt.Fprintln(w, "  layout                        Print binary layout of interface structs")
	fmt.Fprintln(w, "  version                       Print version information")
	fmt.Fprintln(w, "  help                          Show this help")
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "scsictl version %s\n", Version)
	fmt.Fprintf(w, "  Build time: %s\n", BuildTime)
	fmt.Fprintf(w, "  Go version: %s\n", GoVersion)
}

// newLogger builds a zap logger writing to w and adapts it to logr. Each
// verbosity step enables one more logr V level.
func newLogger(verbosity int, w io.Writer) (logr.Logger, func(), error) {
	if verbosity < 0 || verbosity > 127 {
		return logr.Logger{}, nil, fmt.Errorf("verbosity %d out of range", verbosity)
	}
	encoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	core := zapcore.NewCore(encoder, zapcore.AddSync(w), zap.NewAtomicLevelAt(zapcore.Level(-verbosity)))
	z := zap.New(core)
	return zapr.NewLogger(z), func() { _ = z.Sync() }, nil
}

func (c *cli) info(args []string) error {
	fs := flag.NewFlagSet("info", flag.ContinueOnError)
	fs.SetOutput(c.out)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(c.out, "Usage: scsictl info <device>")
		return errUsage
	}
	path := fs.Arg(0)

	dev, err := openDevice(path, c.log)
	if err != nil {
		return err
	}
	defer dev.close()

	h, err := scsi.NewScsiIo(dev.table, dev.pool, scsi.WithLogger(c.log))
	if err != nil {
		return err
	}
	dt, err := h.DeviceType()
	if err != nil {
		return fmt.Errorf("device type: %w", err)
	}
	loc, err := h.DeviceLocation()
	if err != nil {
		return fmt.Errorf("device location: %w", err)
	}
	defer loc.Release()

	fmt.Fprintf(c.out, "Device: %s\n", path)
	fmt.Fprintf(c.out, "  Type: %s\n", dt)
	fmt.Fprintf(c.out, "  Target: %s\n", loc.Target)
	fmt.Fprintf(c.out, "  Lun: %d\n", loc.Lun)
	fmt.Fprintf(c.out, "  IoAlign: %d\n", h.IoAlign())
	for _, kv := range dev.details {
		fmt.Fprintf(c.out, "  %s: %s\n", kv[0], kv[1])
	}
	return nil
}

// inquiryResult is the decoded part of standard INQUIRY data
type inquiryResult struct {
	Type     raw.DeviceType
	Vendor   string
	Product  string
	Revision string
}

func decodeInquiry(b []byte) (inquiryResult, error) {
	if len(b) < 36 {
		return inquiryResult{}, fmt.Errorf("short INQUIRY data: %d bytes", len(b))
	}
	return inquiryResult{
		Type:     raw.DeviceType(b[0] & 0x1f),
		Vendor:   strings.TrimSpace(string(b[8:16])),
		Product:  strings.TrimSpace(string(b[16:32])),
		Revision: strings.TrimSpace(string(b[32:36])),
	}, nil
}

func (c *cli) inquiry(args []string) error {
	fs := flag.NewFlagSet("inquiry", flag.ContinueOnError)
	fs.SetOutput(c.out)
	fixture := fs.String("fixture", "", "run against the first device of a simulator fixture")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var dev *deviceHandle
	switch {
	case *fixture != "":
		f, err := sim.LoadFixture(*fixture)
		if err != nil {
			return err
		}
		if len(f.Devices) == 0 {
			return fmt.Errorf("fixture %s has no devices", *fixture)
		}
		ch := f.Channel(sim.NewPool(), sim.WithLogger(c.log))
		dev = &deviceHandle{table: ch.ScsiIo(ch.Devices()[0]), pool: ch.Pool(), close: func() error { return nil }}
	case fs.NArg() == 1:
		d, err := openDevice(fs.Arg(0), c.log)
		if err != nil {
			return err
		}
		dev = d
	default:
		fmt.Fprintln(c.out, "Usage: scsictl inquiry [-fixture file] [device]")
		return errUsage
	}
	defer dev.close()

	h, err := scsi.NewScsiIo(dev.table, dev.pool, scsi.WithLogger(c.log))
	if err != nil {
		return err
	}
	s, err := h.Exclusive()
	if err != nil {
		return err
	}
	defer s.Release()

	req := &scsi.Request{
		Direction: raw.DataDirectionRead,
		CDB:       []byte{0x12, 0, 0, 0, 96, 0},
		In:        scsi.AllocAligned(96, s.IoAlign()),
		Sense:     scsi.AllocAligned(scsi.MaxSenseLength, s.IoAlign()),
	}
	if err := s.Execute(req); err != nil {
		return fmt.Errorf("INQUIRY: %w", err)
	}
	if req.TargetStatus != raw.TargetStatusGood {
		return fmt.Errorf("INQUIRY: target status %s, sense %x", req.TargetStatus, req.SenseData())
	}

	inq, err := decodeInquiry(req.InData())
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Type:     %s\n", inq.Type)
	fmt.Fprintf(c.out, "Vendor:   %s\n", inq.Vendor)
	fmt.Fprintf(c.out, "Product:  %s\n", inq.Product)
	fmt.Fprintf(c.out, "Revision: %s\n", inq.Revision)
	return nil
}

func (c *cli) enumerate(args []string) error {
	fs := flag.NewFlagSet("enumerate", flag.ContinueOnError)
	fs.SetOutput(c.out)
	fixture := fs.String("fixture", "", "simulator fixture file")
	host := fs.Int("host", -1, "Linux SCSI host number")
	output := fs.String("o", "", "write the inventory in protobuf wire format to this file")
	showMetrics := fs.Bool("metrics", false, "print call counters after enumerating")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var table raw.ExtScsiPassThruProtocol
	var pool raw.Pool
	switch {
	case *fixture != "" && *host >= 0:
		return fmt.Errorf("-fixture and -host are mutually exclusive")
	case *fixture != "":
		f, err := sim.LoadFixture(*fixture)
		if err != nil {
			return err
		}
		ch := f.Channel(sim.NewPool(), sim.WithLogger(c.log))
		table, pool = ch, ch.Pool()
	case *host >= 0:
		t, p, err := openHost(*host, c.log)
		if err != nil {
			return err
		}
		table, pool = t, p
	default:
		fmt.Fprintln(c.out, "Usage: scsictl enumerate [-fixture file | -host n] [-o file]")
		return errUsage
	}

	reg := prometheus.NewRegistry()
	rec, err := metrics.NewRecorder(reg)
	if err != nil {
		return err
	}
	e, err := scsi.NewExtScsiPassThru(table, pool, scsi.WithLogger(c.log), scsi.WithMetrics(rec))
	if err != nil {
		return err
	}
	s, err := e.Exclusive()
	if err != nil {
		return err
	}
	defer s.Release()

	snap, err := inventory.Collect(s)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Adapter %d, attributes 0x%x, io align %d\n", snap.AdapterID, snap.Attributes, snap.IoAlign)
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TARGET\tLUN\tPATH")
	for _, d := range snap.Devices {
		fmt.Fprintf(tw, "%x\t%d\t%s\n", d.Target, d.Lun, d.PathString())
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if *output != "" {
		if err := os.WriteFile(*output, inventory.Marshal(snap), 0644); err != nil {
			return fmt.Errorf("write inventory: %w", err)
		}
		c.log.Info("wrote inventory", "path", *output, "devices", len(snap.Devices))
	}
	if *showMetrics {
		return c.printMetrics(reg)
	}
	return nil
}

func (c *cli) printMetrics(g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if mf.GetType() != dto.MetricType_COUNTER {
			continue
		}
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			sort.Strings(labels)
			fmt.Fprintf(c.out, "%s{%s} %g\n", mf.GetName(), strings.Join(labels, ","), m.GetCounter().GetValue())
		}
	}
	return nil
}

type layoutRow struct {
	name string
	size uintptr
}

func (c *cli) layout() {
	var p raw.ScsiIoScsiRequestPacket
	fmt.Fprintln(c.out, "Struct Sizes:")
	rows := []layoutRow{
		{"ScsiIoScsiRequestPacket", unsafe.Sizeof(raw.ScsiIoScsiRequestPacket{})},
		{"ExtScsiIoScsiRequestPacket", unsafe.Sizeof(raw.ExtScsiIoScsiRequestPacket{})},
		{"ScsiIoProtocol", unsafe.Sizeof(raw.ScsiIoProtocolLayout{})},
		{"ExtScsiPassThruProtocol", unsafe.Sizeof(raw.ExtScsiPassThruProtocolLayout{})},
		{"ExtScsiPassThruMode", unsafe.Sizeof(raw.ExtScsiPassThruMode{})},
		{"DevicePathProtocol", unsafe.Sizeof(raw.DevicePathProtocol{})},
	}
	rows = append(rows, backendLayout()...)
	for _, r := range rows {
		fmt.Fprintf(c.out, "  %-28s %3d bytes\n", r.name+":", r.size)
	}

	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, "Request Packet Offsets:")
	offsets := []layoutRow{
		{"Timeout", unsafe.Offsetof(p.Timeout)},
		{"InDataBuffer", unsafe.Offsetof(p.InDataBuffer)},
		{"OutDataBuffer", unsafe.Offsetof(p.OutDataBuffer)},
		{"SenseData", unsafe.Offsetof(p.SenseData)},
		{"Cdb", unsafe.Offsetof(p.Cdb)},
		{"InTransferLength", unsafe.Offsetof(p.InTransferLength)},
		{"OutTransferLength", unsafe.Offsetof(p.OutTransferLength)},
		{"CdbLength", unsafe.Offsetof(p.CdbLength)},
		{"DataDirection", unsafe.Offsetof(p.DataDirection)},
		{"HostAdapterStatus", unsafe.Offsetof(p.HostAdapterStatus)},
		{"TargetStatus", unsafe.Offsetof(p.TargetStatus)},
		{"SenseDataLength", unsafe.Offsetof(p.SenseDataLength)},
	}
	for _, r := range offsets {
		fmt.Fprintf(c.out, "  %-28s %3d\n", r.name+":", r.size)
	}

	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, "Protocol GUIDs:")
	fmt.Fprintf(c.out, "  %-28s %s\n", "ScsiIo:", raw.ScsiIoProtocolGUID)
	fmt.Fprintf(c.out, "  %-28s %s\n", "ExtScsiPassThru:", raw.ExtScsiPassThruProtocolGUID)
	fmt.Fprintf(c.out, "  %-28s %s\n", "DevicePath:", raw.DevicePathProtocolGUID)
}

// deviceHandle bundles a SCSI I/O table with its pool and cleanup
type deviceHandle struct {
	table   raw.ScsiIoProtocol
	pool    raw.Pool
	close   func() error
	details [][2]string
}
