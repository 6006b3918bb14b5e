package session

import (
	"sync"
	"time"

	"github.com/selight/designo/internal/platform/clock"
	"github.com/selight/designo/internal/scene/protocol"
)

// DefaultCameraWindow is the window camera updates are coalesced over.
const DefaultCameraWindow = 500 * time.Millisecond

// cameraCoalescer throttles camera moves to at most one per window. The
// first push while no window is open starts one; later pushes only replace
// the pending values, and the window closes on schedule with the latest
// ones. It does not wait for movement to stop, so a continuous drag still
// emits once per window.
type cameraCoalescer struct {
	mu      sync.Mutex
	clock   clock.Clock
	window  time.Duration
	emit    func(protocol.CameraMove)
	pending *protocol.CameraMove
	timer   clock.Timer
	gen     uint64
}

func newCameraCoalescer(c clock.Clock, window time.Duration, emit func(protocol.CameraMove)) *cameraCoalescer {
	return &cameraCoalescer{clock: c, window: window, emit: emit}
}

func (c *cameraCoalescer) push(move protocol.CameraMove) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = &move
	if c.timer != nil {
		return
	}
	gen := c.gen
	c.timer = c.clock.AfterFunc(c.window, func() { c.flush(gen) })
}

func (c *cameraCoalescer) flush(gen uint64) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	move := c.pending
	c.pending = nil
	c.timer = nil
	c.gen++
	c.mu.Unlock()

	if move != nil {
		c.emit(*move)
	}
}

// stop drops the pending window without emitting.
func (c *cameraCoalescer) stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = nil
	c.pending = nil
	c.gen++
}
