package audio

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrDeviceUnavailable means the input device is missing, busy or denied.
	ErrDeviceUnavailable = errors.New("audio: input device unavailable")
	// ErrNoActiveRecording is returned by Stop without a prior Start.
	ErrNoActiveRecording = errors.New("audio: no active recording")
	// ErrNotSupported means the platform cannot record at all, as opposed
	// to a device that exists but could not be opened.
	ErrNotSupported = errors.New("audio: recording not supported")
)

// DefaultTimeslice is how often a device emits an encoded fragment.
const DefaultTimeslice = 250 * time.Millisecond

// Constraints describes how the input should be captured.
type Constraints struct {
	SampleRate       int
	Channels         int
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
	BitRate          int
}

// DefaultConstraints returns 16 kHz mono with all processing enabled.
func DefaultConstraints() Constraints {
	return Constraints{
		SampleRate:       16000,
		Channels:         1,
		EchoCancellation: true,
		NoiseSuppression: true,
		AutoGainControl:  true,
		BitRate:          128000,
	}
}

// Device is an audio input that can be opened by one holder at a time.
type Device interface {
	// Supports reports whether the device can encode f.
	Supports(f Format) bool
	// Open acquires the device and starts encoding in format f, emitting a
	// fragment every timeslice.
	Open(ctx context.Context, c Constraints, f Format, timeslice time.Duration) (Stream, error)
}

// Stream is an open device session.
type Stream interface {
	// Format is the format actually produced. May be empty if unknown.
	Format() Format
	// Fragments delivers encoded fragments in emission order. The channel is
	// closed after the final fragment following Stop, or after Release.
	Fragments() <-chan []byte
	// Stop ends encoding and flushes the final fragment.
	Stop() error
	// Release frees the device. Safe to call more than once.
	Release()
}
