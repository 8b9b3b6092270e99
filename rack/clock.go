package rack

import (
	"sync"

	"go-sixteenstep/sequencer"
)

// SharedClock hands every engine of a rack the same millisecond reading.
// The source is sampled once per loop iteration by Latch, so engines that
// poll one after another cannot drift apart.
type SharedClock struct {
	mu  sync.Mutex
	src sequencer.Clock
	now uint32
}

// NewSharedClock wraps src and takes a first reading
func NewSharedClock(src sequencer.Clock) *SharedClock {
	if src == nil {
		src = sequencer.NewSystemClock()
	}
	return &SharedClock{src: src, now: src.NowMillis()}
}

// Latch samples the source and returns the new reading
func (c *SharedClock) Latch() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.src.NowMillis()
	return c.now
}

// NowMillis returns the last latched reading
func (c *SharedClock) NowMillis() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}
