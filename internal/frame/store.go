package frame

import (
	"errors"
	"sync/atomic"
	"time"
)

var ErrEmptyFrame = errors.New("frame: empty frame")

// Frame is an immutable snapshot of one published image. Callers must not
// modify Data.
type Frame struct {
	Data       []byte
	Seq        uint64
	ReceivedAt time.Time
}

func (f *Frame) Len() int {
	return len(f.Data)
}

// Store holds the most recently published frame. Publish swaps a pointer, so
// readers never block a publish and never observe a partial frame.
type Store struct {
	current atomic.Pointer[Frame]
	seq     atomic.Uint64
}

func NewStore() *Store {
	return &Store{}
}

// Publish replaces the current frame with a copy of data. Empty input is
// rejected and leaves the current frame in place.
func (s *Store) Publish(data []byte) (*Frame, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFrame
	}
	buf := make([]byte, len(data))
	copy(buf, data)

	f := &Frame{
		Data:       buf,
		Seq:        s.seq.Add(1),
		ReceivedAt: time.Now(),
	}
	s.current.Store(f)
	return f, nil
}

// Current returns the latest frame, or nil if nothing has been published.
func (s *Store) Current() *Frame {
	return s.current.Load()
}

// Published returns how many frames have been accepted so far.
func (s *Store) Published() uint64 {
	return s.seq.Load()
}

func (s *Store) HasFrame() bool {
	return s.current.Load() != nil
}
