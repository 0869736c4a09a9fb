package source

import (
	"context"
	"sync"

	"github.com/vizmon/headcount/pkg/types"
)

// SliceSource serves a fixed set of frames from memory and then reports end
// of stream. It stands in for cameras and files in tests and can replay
// previously decoded frames.
type SliceSource struct {
	mu     sync.Mutex
	frames []*types.Frame
	errAt  map[int]error
	next   int
	closed bool
}

// NewSliceSource creates a SliceSource over the given frames.
func NewSliceSource(frames ...*types.Frame) *SliceSource {
	return &SliceSource{frames: frames}
}

// InjectError makes the Read at the given index return err instead of a
// frame. The index is still consumed, so the following Read moves on.
func (s *SliceSource) InjectError(index int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errAt == nil {
		s.errAt = make(map[int]error)
	}
	s.errAt[index] = err
}

// Read returns the next frame, an injected error, or ErrEndOfStream.
func (s *SliceSource) Read(ctx context.Context) (*types.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.next >= len(s.frames) {
		return nil, ErrEndOfStream
	}

	i := s.next
	s.next++
	if err, ok := s.errAt[i]; ok {
		return nil, err
	}
	return s.frames[i], nil
}

// Close marks the source exhausted.
func (s *SliceSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Reads reports how many Read calls consumed an index.
func (s *SliceSource) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}
