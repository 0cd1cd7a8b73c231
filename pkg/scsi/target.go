package scsi

import (
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/emergingrobotics/go-efiscsi/pkg/devicepath"
	"github.com/emergingrobotics/go-efiscsi/pkg/raw"
)

// owned is a buffer handed over by an interface table. It remembers the pool
// that produced it so it can be returned there exactly once.
type owned struct {
	mu       sync.Mutex
	buf      []byte
	pool     raw.Pool
	released bool
}

func (o *owned) bytes() ([]byte, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.released {
		return nil, false
	}
	return o.buf, true
}

func (o *owned) release(op string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.released {
		return ErrReleased
	}
	o.released = true
	buf := o.buf
	o.buf = nil

	if o.pool == nil {
		return nil
	}
	if st := o.pool.FreePool(buf); !st.IsSuccess() {
		return NewError(st, op)
	}
	return nil
}

// Target is a device target identifier. Targets returned by a table are
// callee allocated and must be released; targets built with NewTarget are
// caller owned and Release only invalidates them.
type Target struct {
	o owned
}

func newTarget(buf []byte, pool raw.Pool) *Target {
	return &Target{o: owned{buf: buf, pool: pool}}
}

// NewTarget returns a caller-owned target holding a copy of id
func NewTarget(id []byte) *Target {
	return newTarget(append([]byte(nil), id...), nil)
}

// Bytes returns a copy of the identifier, or nil after Release
func (t *Target) Bytes() []byte {
	if t == nil {
		return nil
	}
	b, ok := t.o.bytes()
	if !ok {
		return nil
	}
	return append([]byte(nil), b...)
}

// Released reports whether Release has been called
func (t *Target) Released() bool {
	if t == nil {
		return false
	}
	_, ok := t.o.bytes()
	return !ok
}

// Release returns a callee-allocated identifier to its pool. A second call
// returns ErrReleased.
func (t *Target) Release() error {
	if t == nil {
		return nil
	}
	return t.o.release("FreePool(target)")
}

func (t *Target) String() string {
	if t == nil {
		return "<nil>"
	}
	b, ok := t.o.bytes()
	if !ok {
		return "<released>"
	}
	return hex.EncodeToString(b)
}

// wide returns the identifier padded to raw.TargetMaxBytes for a pass thru
// channel. It fails for released targets and identifiers that do not fit.
func (t *Target) wide(op string) ([]byte, error) {
	if t == nil {
		return nil, NewError(raw.StatusInvalidParameter, op)
	}
	b, ok := t.o.bytes()
	if !ok {
		return nil, ErrReleased
	}
	if len(b) > raw.TargetMaxBytes {
		return nil, NewErrorWithCause(raw.StatusInvalidParameter, op,
			fmt.Errorf("target id is %d bytes, limit %d", len(b), raw.TargetMaxBytes))
	}
	w := make([]byte, raw.TargetMaxBytes)
	copy(w, b)
	return w, nil
}

// Location identifies one logical unit on a channel
type Location struct {
	Target *Target
	Lun    uint64
}

// Release releases the target identifier
func (l Location) Release() error {
	return l.Target.Release()
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d", l.Target, l.Lun)
}

// DevicePath is a callee-allocated device path node built by a channel
type DevicePath struct {
	o owned
}

// Node parses the owned bytes into a borrowed accessor view. The view is
// valid until Release.
func (p *DevicePath) Node() (devicepath.Node, error) {
	b, ok := p.o.bytes()
	if !ok {
		return devicepath.Node{}, ErrReleased
	}
	return devicepath.Parse(b)
}

// Bytes returns a copy of the node bytes, or nil after Release
func (p *DevicePath) Bytes() []byte {
	b, ok := p.o.bytes()
	if !ok {
		return nil
	}
	return append([]byte(nil), b...)
}

// Release returns the node to its pool
func (p *DevicePath) Release() error {
	return p.o.release("FreePool(device path)")
}

func (p *DevicePath) String() string {
	n, err := p.Node()
	if err != nil {
		return "<" + err.Error() + ">"
	}
	return n.String()
}
