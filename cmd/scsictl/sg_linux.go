//go:build linux

package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/emergingrobotics/go-efiscsi/pkg/raw"
	"github.com/emergingrobotics/go-efiscsi/pkg/scsi"
	"github.com/emergingrobotics/go-efiscsi/pkg/sg"
)

func openDevice(path string, log logr.Logger) (*deviceHandle, error) {
	d, err := sg.Open(path, sg.WithLogger(log))
	if err != nil {
		return nil, err
	}

	h := &deviceHandle{table: d, pool: d.Pool(), close: d.Close}
	if v, err := d.Version(); err == nil {
		h.details = append(h.details, [2]string{"Driver Version", fmt.Sprintf("%d.%d.%d", v/10000, v/100%100, v%100)})
	}
	if n, err := d.ReservedSize(); err == nil {
		h.details = append(h.details, [2]string{"Reserved Buffer", strconv.Itoa(n) + " bytes"})
	}
	return h, nil
}

func openHost(number int, log logr.Logger) (raw.ExtScsiPassThruProtocol, raw.Pool, error) {
	h, err := sg.NewHost(number, sg.WithLogger(log))
	if err != nil {
		return nil, nil, err
	}
	if len(h.Units()) == 0 {
		return nil, nil, fmt.Errorf("no sg nodes found on host %d", number)
	}
	return h, h.Pool(), nil
}

// scanRow is the probe result for one sg node
type scanRow struct {
	unit sg.Unit
	typ  raw.DeviceType
	err  error
}

func (c *cli) scan(args []string) error {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	fs.SetOutput(c.out)
	sysfs := fs.String("sysfs", "/sys/class/scsi_generic", "sysfs class directory")
	dev := fs.String("dev", "/dev", "device node directory")
	strict := fs.Bool("strict", false, "fail if any node cannot be probed")
	if err := fs.Parse(args); err != nil {
		return err
	}

	units, err := sg.NewScannerAt(*sysfs, *dev).Scan()
	if err != nil {
		return fmt.Errorf("scanning %s: %w", *sysfs, err)
	}
	if len(units) == 0 {
		fmt.Fprintln(c.out, "No SCSI generic devices found")
		return nil
	}

	rows := make([]scanRow, len(units))
	g, ctx := errgroup.WithContext(context.Background())
	for i, u := range units {
		i, u := i, u
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			rows[i] = c.probe(u)
			if *strict && rows[i].err != nil {
				return fmt.Errorf("%s: %w", u.Path, rows[i].err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Found %d SCSI generic device(s):\n", len(units))
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DEVICE\tH:C:T:L\tTYPE")
	for _, r := range rows {
		typ := r.typ.String()
		if r.err != nil {
			typ = "<" + r.err.Error() + ">"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.unit.Path, r.unit, typ)
	}
	return tw.Flush()
}

func (c *cli) probe(u sg.Unit) scanRow {
	row := scanRow{unit: u}
	d, err := sg.Open(u.Path, sg.WithLogger(c.log))
	if err != nil {
		row.err = err
		return row
	}
	defer d.Close()

	h, err := scsi.NewScsiIo(d, d.Pool(), scsi.WithLogger(c.log))
	if err != nil {
		row.err = err
		return row
	}
	row.typ, row.err = h.DeviceType()
	return row
}

func backendLayout() []layoutRow {
	return []layoutRow{
		{"SgIoHdr", uintptr(sg.SizeOfSgIoHdr)},
		{"SgScsiID", uintptr(sg.SizeOfSgScsiID)},
	}
}
