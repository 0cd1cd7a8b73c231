package inventory

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the Snapshot message
const (
	fieldAdapterID   protowire.Number = 1
	fieldAttributes  protowire.Number = 2
	fieldIoAlign     protowire.Number = 3
	fieldCollectedAt protowire.Number = 4 // unix nanoseconds
	fieldDevice      protowire.Number = 5 // repeated Entry
)

// Field numbers of the Entry message
const (
	fieldTarget protowire.Number = 1
	fieldLun    protowire.Number = 2
	fieldPath   protowire.Number = 3
)

var ErrTruncated = errors.New("inventory: truncated message")

// Marshal encodes s in protobuf wire format
func Marshal(s *Snapshot) []byte {
	var b []byte
	b = appendVarintField(b, fieldAdapterID, uint64(s.AdapterID))
	b = appendVarintField(b, fieldAttributes, uint64(s.Attributes))
	b = appendVarintField(b, fieldIoAlign, uint64(s.IoAlign))
	if !s.CollectedAt.IsZero() {
		b = appendVarintField(b, fieldCollectedAt, uint64(s.CollectedAt.UnixNano()))
	}
	for _, e := range s.Devices {
		b = protowire.AppendTag(b, fieldDevice, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalEntry(e))
	}
	return b
}

func marshalEntry(e Entry) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldTarget, protowire.BytesType)
	b = protowire.AppendBytes(b, e.Target)
	b = appendVarintField(b, fieldLun, e.Lun)
	if len(e.Path) > 0 {
		b = protowire.AppendTag(b, fieldPath, protowire.BytesType)
		b = protowire.AppendBytes(b, e.Path)
	}
	return b
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// Unmarshal decodes a snapshot. Unknown fields are skipped.
func Unmarshal(b []byte) (*Snapshot, error) {
	s := &Snapshot{}
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldDevice && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			e, err := unmarshalEntry(v)
			if err != nil {
				return 0, err
			}
			s.Devices = append(s.Devices, e)
			return n, nil
		case typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return n, nil
			}
			switch num {
			case fieldAdapterID:
				s.AdapterID = uint32(v)
			case fieldAttributes:
				s.Attributes = uint32(v)
			case fieldIoAlign:
				s.IoAlign = uint32(v)
			case fieldCollectedAt:
				s.CollectedAt = time.Unix(0, int64(v)).UTC()
			}
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func unmarshalEntry(b []byte) (Entry, error) {
	var e Entry
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case (num == fieldTarget || num == fieldPath) && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			if num == fieldTarget {
				e.Target = append([]byte{}, v...)
			} else {
				e.Path = append([]byte{}, v...)
			}
			return n, nil
		case num == fieldLun && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			e.Lun = v
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	return e, err
}

// walk calls field for every tag in b. field returns the number of value
// bytes consumed, negative on a wire error.
func walk(b []byte, field func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrTruncated, protowire.ParseError(n))
		}
		b = b[n:]

		m, err := field(num, typ, b)
		if err != nil {
			return err
		}
		if m < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrTruncated, num, protowire.ParseError(m))
		}
		b = b[m:]
	}
	return nil
}
