package device

import (
	"context"
	"sync"

	"github.com/grailbio/base/errors"
)

// MockG2Device is a synthetic G2Device used to drive PF32G2Processor in
// tests without hardware. Frames are supplied in advance via Enqueue;
// NextFrame pops one per call and errors once the supply is exhausted.
type MockG2Device struct {
	framePeriodNs uint64

	mu     sync.Mutex
	frames []G2Frame
}

// NewMockG2Device constructs a MockG2Device reporting the given frame period.
func NewMockG2Device(framePeriodNs uint64) *MockG2Device {
	return &MockG2Device{framePeriodNs: framePeriodNs}
}

// Enqueue appends one frame, to be returned by a future NextFrame call in
// FIFO order.
func (d *MockG2Device) Enqueue(frame G2Frame) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frames = append(d.frames, frame)
}

// Start begins a no-op session; cfg is ignored since a MockG2Device's
// frames are supplied directly via Enqueue.
func (d *MockG2Device) Start(ctx context.Context, cfg Config) (Session, error) {
	return mockSession{}, nil
}

// FramePeriodNs reports the value passed to NewMockG2Device.
func (d *MockG2Device) FramePeriodNs() uint64 { return d.framePeriodNs }

// NextFrame pops one enqueued frame, or errors if the supply is exhausted.
func (d *MockG2Device) NextFrame(ctx context.Context) (G2Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.frames) == 0 {
		return G2Frame{}, errors.E(ErrProcessingTooSlow, "device: no enqueued g2 frame")
	}
	frame := d.frames[0]
	d.frames = d.frames[1:]
	return frame, nil
}
