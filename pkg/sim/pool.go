// Package sim emulates firmware SCSI tables in memory. It implements both
// the SCSI I/O and the extended pass thru tables over a configurable set of
// devices and is used by tests and by scsictl when no hardware is present.
package sim

import (
	"sync"

	"github.com/emergingrobotics/go-efiscsi/pkg/raw"
)

// Pool is a tracking allocator standing in for the firmware pool services.
// Every buffer it hands out must come back through FreePool exactly once.
type Pool struct {
	mu        sync.Mutex
	live      map[*byte]int
	allocated int
	freed     int
}

// NewPool creates an empty pool
func NewPool() *Pool {
	return &Pool{live: make(map[*byte]int)}
}

// Allocate returns a zeroed buffer of n bytes owned by the pool
func (p *Pool) Allocate(n int) []byte {
	buf := make([]byte, n, max(n, 1))

	p.mu.Lock()
	defer p.mu.Unlock()
	p.live[&buf[:1][0]] = n
	p.allocated++
	return buf
}

// FreePool releases a buffer obtained from Allocate. Unknown buffers and
// double frees fail with StatusInvalidParameter.
func (p *Pool) FreePool(buf []byte) raw.Status {
	if cap(buf) == 0 {
		return raw.StatusInvalidParameter
	}
	key := &buf[:1][0]

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.live[key]; !ok {
		return raw.StatusInvalidParameter
	}
	delete(p.live, key)
	p.freed++
	return raw.StatusSuccess
}

// Outstanding returns the number of buffers not yet freed
func (p *Pool) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}

// Allocated returns the number of buffers handed out so far
func (p *Pool) Allocated() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocated
}

// Freed returns the number of successful FreePool calls
func (p *Pool) Freed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.freed
}

func (p *Pool) clone(b []byte) []byte {
	buf := p.Allocate(len(b))
	copy(buf, b)
	return buf
}
