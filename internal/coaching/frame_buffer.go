package coaching

import (
	"sync"

	"github.com/ashureev/motion-coach/internal/domain"
)

// FrameBuffer is a fixed-size ring of recent frames, newest last.
// When full, pushing overwrites the oldest frame.
type FrameBuffer struct {
	frames []domain.Frame
	size   int
	head   int // next write position
	count  int
	mu     sync.RWMutex
}

// NewFrameBuffer creates a ring holding up to size frames.
func NewFrameBuffer(size int) *FrameBuffer {
	if size <= 0 {
		size = FrameBufferCapacity
	}
	return &FrameBuffer{
		frames: make([]domain.Frame, size),
		size:   size,
	}
}

// Push appends a frame, evicting the oldest on overflow.
func (b *FrameBuffer) Push(f domain.Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.frames[b.head] = f
	b.head = (b.head + 1) % b.size
	if b.count < b.size {
		b.count++
	}
}

// TakeLastN returns up to n most recent frames, oldest first, without
// removing them.
func (b *FrameBuffer) TakeLastN(n int) []domain.Frame {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n > b.count {
		n = b.count
	}
	if n <= 0 {
		return nil
	}

	out := make([]domain.Frame, n)
	start := (b.head - n + b.size) % b.size
	for i := 0; i < n; i++ {
		out[i] = b.frames[(start+i)%b.size]
	}
	return out
}

// Clear drops every buffered frame.
func (b *FrameBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	clear(b.frames)
	b.head = 0
	b.count = 0
}

// Len returns the number of buffered frames.
func (b *FrameBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Capacity returns the maximum number of frames held.
func (b *FrameBuffer) Capacity() int {
	return b.size
}
