package audio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kbukum/hvacform/logger"
)

// Capture drives a Device through one recording at a time.
type Capture struct {
	device      Device
	formats     []Format
	constraints Constraints
	timeslice   time.Duration
	onRelease   func()
	log         *logger.Logger

	mu      sync.Mutex
	current *session
}

// Option configures a Capture.
type Option func(*Capture)

// WithFormats overrides the negotiation order.
func WithFormats(formats ...Format) Option {
	return func(c *Capture) { c.formats = formats }
}

// WithConstraints overrides DefaultConstraints.
func WithConstraints(cs Constraints) Option {
	return func(c *Capture) { c.constraints = cs }
}

// WithTimeslice overrides DefaultTimeslice.
func WithTimeslice(d time.Duration) Option {
	return func(c *Capture) { c.timeslice = d }
}

// WithReleaseHook is called each time the device is released.
func WithReleaseHook(fn func()) Option {
	return func(c *Capture) { c.onRelease = fn }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Capture) { c.log = l }
}

// NewCapture creates a Capture for device.
func NewCapture(device Device, opts ...Option) *Capture {
	c := &Capture{
		device:      device,
		formats:     PreferredFormats,
		constraints: DefaultConstraints(),
		timeslice:   DefaultTimeslice,
		log:         logger.WithComponent("audio"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type session struct {
	stream    Stream
	format    Format
	started   time.Time
	fragments [][]byte
	collected chan struct{}
	release   sync.Once
}

func (s *session) collect() {
	defer close(s.collected)
	for frag := range s.stream.Fragments() {
		if len(frag) == 0 {
			continue
		}
		s.fragments = append(s.fragments, frag)
	}
}

// blob is only valid once collected is closed.
func (s *session) blob() Blob {
	size := 0
	for _, f := range s.fragments {
		size += len(f)
	}
	data := make([]byte, 0, size)
	for _, f := range s.fragments {
		data = append(data, f...)
	}

	format := s.format
	if format.IsDefault() {
		format = s.stream.Format()
	}
	if format.IsDefault() {
		format = FormatWebM
	}
	return Blob{Format: format, Data: data}
}

// Start negotiates a format and opens the device. Any recording already in
// progress is discarded and its device released first.
func (c *Capture) Start(ctx context.Context) error {
	c.Cancel()

	format := Negotiate(c.formats, c.device.Supports)
	stream, err := c.device.Open(ctx, c.constraints, format, c.timeslice)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	s := &session{
		stream:    stream,
		format:    format,
		started:   time.Now(),
		collected: make(chan struct{}),
	}
	go s.collect()

	c.mu.Lock()
	prev := c.current
	c.current = s
	c.mu.Unlock()
	if prev != nil {
		c.releaseSession(prev)
	}

	c.log.Debug("capture started", map[string]interface{}{
		logger.FieldFormat: format.String(),
		"timeslice_ms":     c.timeslice.Milliseconds(),
	})
	return nil
}

// Stop finalizes the recording and returns the assembled blob. The device
// is released whether or not Stop succeeds.
func (c *Capture) Stop(ctx context.Context) (Blob, error) {
	s := c.take()
	if s == nil {
		return Blob{}, ErrNoActiveRecording
	}
	defer c.releaseSession(s)

	if err := s.stream.Stop(); err != nil {
		return Blob{}, fmt.Errorf("audio: finalize recording: %w", err)
	}
	select {
	case <-s.collected:
	case <-ctx.Done():
		return Blob{}, ctx.Err()
	}

	blob := s.blob()
	c.log.Debug("capture stopped", map[string]interface{}{
		logger.FieldFormat:    blob.Format.String(),
		logger.FieldSizeBytes: blob.Size(),
		"fragments":           len(s.fragments),
		"duration_ms":         time.Since(s.started).Milliseconds(),
	})
	return blob, nil
}

// Cancel discards the current recording and releases the device.
// It never fails and is safe to call when idle.
func (c *Capture) Cancel() {
	if s := c.take(); s != nil {
		c.releaseSession(s)
	}
}

// Active reports whether a recording is in progress.
func (c *Capture) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

func (c *Capture) take() *session {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.current
	c.current = nil
	return s
}

func (c *Capture) releaseSession(s *session) {
	s.release.Do(func() {
		s.stream.Release()
		if c.onRelease != nil {
			c.onRelease()
		}
		c.log.Debug("device released")
	})
}
