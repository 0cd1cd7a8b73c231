package sim

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/emergingrobotics/go-efiscsi/pkg/raw"
)

// Fixture describes an emulated channel
type Fixture struct {
	AdapterID   uint32          `yaml:"adapter_id"`
	Attributes  []string        `yaml:"attributes"`
	IoAlign     uint32          `yaml:"io_align"`
	MaxTransfer uint32          `yaml:"max_transfer"`
	Devices     []DeviceFixture `yaml:"devices"`
}

// DeviceFixture describes one logical unit. Byte fields are hex strings.
type DeviceFixture struct {
	Target         string            `yaml:"target"`
	Lun            uint64            `yaml:"lun"`
	Type           string            `yaml:"type"`
	Response       string            `yaml:"response"`
	Responses      map[string]string `yaml:"responses"` // keyed by hex opcode
	Sense          string            `yaml:"sense"`
	CheckCondition bool              `yaml:"check_condition"`

	// Standard INQUIRY data is generated from these when set
	Vendor   string `yaml:"vendor"`
	Product  string `yaml:"product"`
	Revision string `yaml:"revision"`
}

var attributeBits = map[string]uint32{
	"physical":   raw.ExtScsiPassThruAttributesPhysical,
	"logical":    raw.ExtScsiPassThruAttributesLogical,
	"nonblockio": raw.ExtScsiPassThruAttributesNonBlockIO,
}

const opInquiry = 0x12

// LoadFixture reads, validates and normalizes a fixture file
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return ParseFixture(data)
}

// ParseFixture decodes, validates and normalizes fixture YAML
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	if err := Validate(&f); err != nil {
		return nil, err
	}
	Normalize(&f)
	return &f, nil
}

// Validate checks a fixture without modifying it
func Validate(f *Fixture) error {
	for _, a := range f.Attributes {
		if _, ok := attributeBits[strings.ToLower(a)]; !ok {
			return fmt.Errorf("unknown attribute %q", a)
		}
	}
	if f.IoAlign > 1 && f.IoAlign&(f.IoAlign-1) != 0 {
		return fmt.Errorf("io_align %d is not a power of two", f.IoAlign)
	}

	seen := make(map[string]bool)
	for i, d := range f.Devices {
		t, err := hex.DecodeString(d.Target)
		if err != nil {
			return fmt.Errorf("device %d: target: %w", i, err)
		}
		if len(t) > raw.TargetMaxBytes {
			return fmt.Errorf("device %d: target is %d bytes, limit %d", i, len(t), raw.TargetMaxBytes)
		}
		if raw.IsStartCursor(padTarget(t)) {
			return fmt.Errorf("device %d: target collides with the enumeration start cursor", i)
		}

		key := fmt.Sprintf("%x/%d", padTarget(t), d.Lun)
		if seen[key] {
			return fmt.Errorf("device %d: duplicate target %s lun %d", i, d.Target, d.Lun)
		}
		seen[key] = true

		if d.Type != "" {
			if _, ok := raw.ParseDeviceType(strings.ToLower(d.Type)); !ok {
				return fmt.Errorf("device %d: unknown type %q", i, d.Type)
			}
		}
		for name, s := range map[string]string{"response": d.Response, "sense": d.Sense} {
			if _, err := hex.DecodeString(s); err != nil {
				return fmt.Errorf("device %d: %s: %w", i, name, err)
			}
		}
		for op, s := range d.Responses {
			if _, err := strconv.ParseUint(strings.TrimPrefix(op, "0x"), 16, 8); err != nil {
				return fmt.Errorf("device %d: opcode %q: %w", i, op, err)
			}
			if _, err := hex.DecodeString(s); err != nil {
				return fmt.Errorf("device %d: response for %s: %w", i, op, err)
			}
		}
		if len(d.Vendor) > 8 || len(d.Product) > 16 || len(d.Revision) > 4 {
			return fmt.Errorf("device %d: inquiry strings exceed 8/16/4 characters", i)
		}
	}
	return nil
}

// Normalize fills defaults. Call it only after Validate.
func Normalize(f *Fixture) {
	if len(f.Attributes) == 0 {
		f.Attributes = []string{"physical", "logical"}
	}
	for i := range f.Attributes {
		f.Attributes[i] = strings.ToLower(f.Attributes[i])
	}
	if f.IoAlign == 0 {
		f.IoAlign = 1
	}
	for i := range f.Devices {
		d := &f.Devices[i]
		d.Type = strings.ToLower(d.Type)
		if d.Type == "" {
			d.Type = "disk"
		}
	}
}

// Mode returns the channel mode the fixture describes
func (f *Fixture) Mode() raw.ExtScsiPassThruMode {
	var attrs uint32
	for _, a := range f.Attributes {
		attrs |= attributeBits[a]
	}
	return raw.ExtScsiPassThruMode{
		AdapterId:  f.AdapterID,
		Attributes: attrs,
		IoAlign:    f.IoAlign,
	}
}

// Channel builds a channel from a validated fixture
func (f *Fixture) Channel(pool *Pool, opts ...ChannelOption) *Channel {
	devices := make([]*Device, 0, len(f.Devices))
	for _, df := range f.Devices {
		devices = append(devices, df.device())
	}
	opts = append([]ChannelOption{WithMaxTransfer(f.MaxTransfer)}, opts...)
	return NewChannel(pool, f.Mode(), devices, opts...)
}

func (df DeviceFixture) device() *Device {
	// hex fields were checked by Validate
	target, _ := hex.DecodeString(df.Target)
	response, _ := hex.DecodeString(df.Response)
	sense, _ := hex.DecodeString(df.Sense)
	dt, _ := raw.ParseDeviceType(df.Type)

	d := &Device{
		Target:         target,
		Lun:            df.Lun,
		Type:           dt,
		Response:       response,
		Sense:          sense,
		CheckCondition: df.CheckCondition,
		Responses:      make(map[uint8][]byte),
	}
	if df.Vendor != "" || df.Product != "" || df.Revision != "" {
		d.Responses[opInquiry] = inquiryData(dt, df.Vendor, df.Product, df.Revision)
	}
	for op, s := range df.Responses {
		code, _ := strconv.ParseUint(strings.TrimPrefix(op, "0x"), 16, 8)
		d.Responses[uint8(code)], _ = hex.DecodeString(s)
	}
	return d
}

// inquiryData builds 36 bytes of standard INQUIRY data
func inquiryData(dt raw.DeviceType, vendor, product, revision string) []byte {
	b := make([]byte, 36)
	b[0] = uint8(dt) & 0x1f
	b[2] = 0x06 // SPC-4
	b[3] = 0x02 // response data format
	b[4] = 36 - 5
	pad := func(dst []byte, s string) {
		copy(dst, s+strings.Repeat(" ", len(dst)))
	}
	pad(b[8:16], vendor)
	pad(b[16:32], product)
	pad(b[32:36], revision)
	return b
}
