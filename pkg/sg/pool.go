//go:build linux

package sg

import (
	"sync"

	"github.com/emergingrobotics/go-efiscsi/pkg/raw"
)

// Pool hands out the buffers the backend returns to its caller. It plays
// the part of the firmware pool services and refuses foreign or already
// freed buffers.
type Pool struct {
	mu   sync.Mutex
	live map[*byte]struct{}
}

// NewPool creates an empty pool
func NewPool() *Pool {
	return &Pool{live: make(map[*byte]struct{})}
}

func (p *Pool) clone(b []byte) []byte {
	buf := make([]byte, len(b), max(len(b), 1))
	copy(buf, b)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.live[&buf[:1][0]] = struct{}{}
	return buf
}

// FreePool releases a buffer handed out by the backend
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
	return raw.StatusSuccess
}

// Outstanding returns the number of buffers not yet freed
func (p *Pool) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}
