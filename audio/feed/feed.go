// Package feed is an audio.Device whose fragments are pushed by the caller,
// typically a browser uploading MediaRecorder chunks over HTTP.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kbukum/hvacform/audio"
)

var (
	// ErrBusy is returned by Open while another stream holds the device.
	ErrBusy = errors.New("feed: device already in use")
	// ErrNotRecording is returned by Push when no stream is open.
	ErrNotRecording = errors.New("feed: not recording")
	// ErrNoFormats is returned by Open when the client declared no formats
	// and the platform default was not selected.
	ErrNoFormats = fmt.Errorf("%w: no formats declared", audio.ErrNotSupported)
)

// Device accepts fragments for one stream at a time.
type Device struct {
	formats []audio.Format
	buffer  int

	mu     sync.Mutex
	stream *stream
}

// New creates a device that can encode the given formats. A fragment buffer
// of 16 is used unless changed with WithBuffer.
func New(formats ...audio.Format) *Device {
	return &Device{formats: formats, buffer: 16}
}

// WithBuffer sets how many fragments may queue before Push blocks.
func (d *Device) WithBuffer(n int) *Device {
	if n > 0 {
		d.buffer = n
	}
	return d
}

// Supports matches f exactly, or by base type when the declared format
// carries no codec parameter.
func (d *Device) Supports(f audio.Format) bool {
	for _, have := range d.formats {
		if have == f {
			return true
		}
		if have.Codec() == "" && f.Codec() == "" && have.Base() == f.Base() {
			return true
		}
	}
	return false
}

// Open implements audio.Device. Constraints and timeslice are advisory:
// the pushing client applies them.
func (d *Device) Open(ctx context.Context, _ audio.Constraints, f audio.Format, _ time.Duration) (audio.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stream != nil {
		return nil, ErrBusy
	}
	if f.IsDefault() && len(d.formats) == 0 {
		return nil, ErrNoFormats
	}
	d.stream = &stream{device: d, format: f, ch: make(chan []byte, d.buffer)}
	return d.stream, nil
}

// Push delivers one fragment to the open stream. The data is copied.
func (d *Device) Push(data []byte) error {
	d.mu.Lock()
	s := d.stream
	d.mu.Unlock()
	if s == nil {
		return ErrNotRecording
	}
	return s.push(data)
}

// Holding reports whether a stream currently holds the device.
func (d *Device) Holding() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stream != nil
}

func (d *Device) detach(s *stream) {
	d.mu.Lock()
	if d.stream == s {
		d.stream = nil
	}
	d.mu.Unlock()
}

type stream struct {
	device *Device
	format audio.Format
	ch     chan []byte

	mu     sync.Mutex
	closed bool
}

func (s *stream) Format() audio.Format     { return s.format }
func (s *stream) Fragments() <-chan []byte { return s.ch }

func (s *stream) push(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrNotRecording
	}
	s.ch <- append([]byte(nil), data...)
	return nil
}

func (s *stream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Stop ends the stream. Fragments already pushed are still delivered.
func (s *stream) Stop() error {
	s.close()
	return nil
}

func (s *stream) Release() {
	s.close()
	s.device.detach(s)
}
