package surface

import (
	"fmt"

	"github.com/lucasb-eyer/go-colorful"
)

// Recorder is a surface that remembers everything done to it.
// Set FailAlloc or FailRelease to inject errors.
type Recorder struct {
	Buffers []*RecordedBuffer
	Frames  []Frame

	FailAlloc   error // returned by NewBuffer when set
	FailRelease error // returned by every Release when set
	FailPresent error // returned by Present when set
}

// NewRecorder creates a recording surface.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// NewBuffer records and returns a new buffer.
func (r *Recorder) NewBuffer(key Key, capacity int) (Buffer, error) {
	if r.FailAlloc != nil {
		return nil, r.FailAlloc
	}
	b := &RecordedBuffer{owner: r, Key: key, Capacity: capacity}
	r.Buffers = append(r.Buffers, b)
	return b, nil
}

// Present records a copy of the frame.
func (r *Recorder) Present(f Frame) error {
	if r.FailPresent != nil {
		return r.FailPresent
	}
	f.Sets = append([]Set(nil), f.Sets...)
	r.Frames = append(r.Frames, f)
	return nil
}

// Live returns the number of buffers not yet released.
func (r *Recorder) Live() int {
	n := 0
	for _, b := range r.Buffers {
		if !b.Released {
			n++
		}
	}
	return n
}

// LastFrame returns the most recent frame, or false if none was presented.
func (r *Recorder) LastFrame() (Frame, bool) {
	if len(r.Frames) == 0 {
		return Frame{}, false
	}
	return r.Frames[len(r.Frames)-1], true
}

// RecordedBuffer is a buffer handed out by a Recorder.
type RecordedBuffer struct {
	owner *Recorder

	Key      Key
	Capacity int
	Vertices []float32
	Color    colorful.Color
	Uploads  int
	Colors   int
	Released bool
}

// Upload copies the vertices.
func (b *RecordedBuffer) Upload(vertices []float32) {
	b.Vertices = append(b.Vertices[:0], vertices...)
	b.Uploads++
}

// SetColor records the color.
func (b *RecordedBuffer) SetColor(c colorful.Color) {
	b.Color = c
	b.Colors++
}

// Release marks the buffer released unless the owner injects a failure.
func (b *RecordedBuffer) Release() error {
	if b.owner.FailRelease != nil {
		return fmt.Errorf("release %v: %w", b.Key, b.owner.FailRelease)
	}
	if b.Released {
		return errDoubleRelease
	}
	b.Released = true
	return nil
}
