// Package voicenote turns a microphone recording into the text of a
// contact form's voice note. A Recorder owns one capture at a time, counts
// the elapsed seconds, rejects recordings that are too short or too quiet
// and hands the rest to a transcriber. The Manager keeps one Recorder per
// browser session and exposes them over HTTP.
package voicenote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kbukum/hvacform/audio"
	"github.com/kbukum/hvacform/logger"
	"github.com/kbukum/hvacform/observability"
	"github.com/kbukum/hvacform/transcription"
)

// Defaults for the recording gates.
const (
	DefaultMinDuration = time.Second
	DefaultMinBytes    = 1000
)

var (
	// ErrClosed is the cause of failures from a closed Recorder.
	ErrClosed = errors.New("voicenote: recorder closed")
	// ErrCancelled is the cause when Cancel interrupts a Start.
	ErrCancelled = errors.New("voicenote: start cancelled")
)

// State of a Recorder.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateRecording
	StateProcessing
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRecording:
		return "recording"
	case StateProcessing:
		return "processing"
	default:
		return "idle"
	}
}

// Capturer is the audio capture a Recorder drives. *audio.Capture
// implements it.
type Capturer interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) (audio.Blob, error)
	Cancel()
}

// Archiver stores a finished recording and returns its key.
type Archiver interface {
	Save(ctx context.Context, blob audio.Blob) (string, error)
}

// Publisher receives session events as they happen. *sse.Hub implements it.
type Publisher interface {
	Publish(topic, event string, payload any) error
	Close(topic string)
}

// Recorder is the recording state machine.
type Recorder struct {
	capture     Capturer
	transcriber transcription.Transcriber
	archive     Archiver
	minDuration time.Duration
	minBytes    int
	newTicker   func(time.Duration) Ticker
	events      chan<- Event
	metrics     *observability.Metrics
	log         *logger.Logger

	mu          sync.Mutex
	state       State
	elapsed     int
	counter     *counter
	gen         uint64
	closed      bool
	value       string
	audioKey    string
	lastFailure *Failure
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithEvents delivers notifications on ch. Sends never block; events are
// dropped when ch is full.
func WithEvents(ch chan<- Event) RecorderOption {
	return func(r *Recorder) { r.events = ch }
}

// WithTicker replaces the one-second ticker used by the elapsed counter.
func WithTicker(fn func(time.Duration) Ticker) RecorderOption {
	return func(r *Recorder) { r.newTicker = fn }
}

// WithMinDuration sets the shortest accepted recording.
func WithMinDuration(d time.Duration) RecorderOption {
	return func(r *Recorder) { r.minDuration = d }
}

// WithMinBytes sets the smallest accepted encoded size.
func WithMinBytes(n int) RecorderOption {
	return func(r *Recorder) { r.minBytes = n }
}

// WithArchive stores every successfully transcribed recording.
func WithArchive(a Archiver) RecorderOption {
	return func(r *Recorder) { r.archive = a }
}

// WithMetrics records outcomes on m.
func WithMetrics(m *observability.Metrics) RecorderOption {
	return func(r *Recorder) { r.metrics = m }
}

// WithRecorderLogger sets the logger.
func WithRecorderLogger(l *logger.Logger) RecorderOption {
	return func(r *Recorder) { r.log = l }
}

// WithValue sets the initial text of record.
func WithValue(v string) RecorderOption {
	return func(r *Recorder) { r.value = v }
}

// NewRecorder creates an idle Recorder.
func NewRecorder(capture Capturer, transcriber transcription.Transcriber, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		capture:     capture,
		transcriber: transcriber,
		minDuration: DefaultMinDuration,
		minBytes:    DefaultMinBytes,
		newTicker:   NewTicker,
		log:         logger.WithComponent("voicenote"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start begins a new recording. A recording already in progress is
// discarded and its device released first.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return newFailure(KindProcessingFailed, ErrClosed)
	}
	if r.state == StateStarting || r.state == StateProcessing {
		r.mu.Unlock()
		return newFailure(KindBusy, nil)
	}
	wasRecording := r.state == StateRecording
	prev := r.detachCounterLocked()
	r.state = StateStarting
	r.gen++
	gen := r.gen
	r.mu.Unlock()

	prev.halt()
	if wasRecording {
		r.capture.Cancel()
		r.emit(Event{Type: EventReleased})
		r.log.Info("previous recording discarded")
	}

	err := r.capture.Start(ctx)

	r.mu.Lock()
	if r.gen != gen || r.closed {
		r.state = StateIdle
		r.mu.Unlock()
		r.capture.Cancel()
		if err == nil {
			r.emit(Event{Type: EventReleased})
		}
		return newFailure(KindProcessingFailed, ErrCancelled)
	}
	if err != nil {
		f := newFailure(KindDeviceUnavailable, err)
		r.state = StateIdle
		r.lastFailure = f
		r.mu.Unlock()
		r.reportFailure(ctx, f, 0)
		return f
	}
	r.state = StateRecording
	r.elapsed = 0
	r.lastFailure = nil
	r.audioKey = ""
	r.startCounterLocked()
	r.mu.Unlock()

	r.emit(Event{Type: EventStarted, Message: MsgStarted})
	r.log.Info("recording started")
	return nil
}

// Stop ends the recording and transcribes it. On success the text of
// record is replaced with the transcript and returned. Every other outcome
// is a *Failure; the text of record is left unchanged.
func (r *Recorder) Stop(ctx context.Context) (text string, err error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanVoiceStop)
	defer func() { observability.EndSpan(span, err) }()

	r.mu.Lock()
	switch r.state {
	case StateStarting, StateProcessing:
		r.mu.Unlock()
		return "", newFailure(KindBusy, nil)
	case StateIdle:
		f := newFailure(KindNoActiveRecording, audio.ErrNoActiveRecording)
		r.lastFailure = f
		r.mu.Unlock()
		return "", f
	}
	c := r.detachCounterLocked()
	r.state = StateProcessing
	r.mu.Unlock()

	c.halt()
	r.mu.Lock()
	seconds := r.elapsed
	r.mu.Unlock()
	elapsed := time.Duration(seconds) * time.Second

	if elapsed < r.minDuration {
		r.capture.Cancel()
		r.emit(Event{Type: EventReleased, Elapsed: seconds})
		return "", r.finishFailure(ctx, newFailure(KindRecordingTooShort, nil), elapsed)
	}

	r.emit(Event{
		Type:    EventProcessing,
		Elapsed: seconds,
		Message: fmt.Sprintf("Zatrzymano nagrywanie (%ds). Przetwarzanie...", seconds),
	})

	blob, err := r.capture.Stop(ctx)
	r.emit(Event{Type: EventReleased, Elapsed: seconds})
	if err != nil {
		return "", r.finishFailure(ctx, newFailure(KindProcessingFailed, err), elapsed)
	}
	if blob.Size() < r.minBytes {
		return "", r.finishFailure(ctx, newFailure(KindRecordingTooQuiet,
			fmt.Errorf("recording is %d bytes, minimum %d", blob.Size(), r.minBytes)), elapsed)
	}

	r.emit(Event{
		Type:    EventUploading,
		Elapsed: seconds,
		Message: fmt.Sprintf("Wysyłanie nagrania (%s) do transkrypcji...", blob.SizeKB()),
	})

	text, err = r.transcriber.Transcribe(ctx, blob)
	if err != nil {
		return "", r.finishFailure(ctx, transcriptionFailure(err), elapsed)
	}
	if strings.TrimSpace(text) == "" {
		return "", r.finishFailure(ctx, newFailure(KindNoSpeechDetected, nil), elapsed)
	}

	key := r.archiveBlob(ctx, blob)

	r.mu.Lock()
	r.value = text
	r.audioKey = key
	r.lastFailure = nil
	r.state = StateIdle
	r.mu.Unlock()

	r.metrics.RecordRecording(ctx, "ok", elapsed)
	r.emit(Event{Type: EventTranscribed, Elapsed: seconds, Text: text, Message: MsgTranscribed})
	r.log.WithContext(ctx).Info("recording transcribed", map[string]interface{}{
		logger.FieldElapsed:   seconds,
		logger.FieldSizeBytes: blob.Size(),
		logger.FieldFormat:    blob.Format.String(),
		"chars":               len(text),
	})
	return text, nil
}

func (r *Recorder) archiveBlob(ctx context.Context, blob audio.Blob) string {
	if r.archive == nil {
		return ""
	}
	key, err := r.archive.Save(ctx, blob)
	if err != nil {
		r.log.WithContext(ctx).WithError(err).Warn("archiving recording failed")
		return ""
	}
	return key
}

// Cancel discards any recording in progress and releases the device.
// It never fails. A transcription already in flight is not interrupted.
func (r *Recorder) Cancel() {
	r.mu.Lock()
	wasRecording := r.state == StateRecording
	c := r.detachCounterLocked()
	switch r.state {
	case StateRecording:
		r.state = StateIdle
	case StateStarting:
		r.gen++
	}
	r.mu.Unlock()

	c.halt()
	r.capture.Cancel()
	if wasRecording {
		r.emit(Event{Type: EventReleased})
		r.log.Info("recording cancelled")
	}
}

// Close cancels any recording and rejects further use. Safe to call more
// than once.
func (r *Recorder) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.Cancel()
}

// State returns the current state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Elapsed returns the seconds counted for the current or last recording.
func (r *Recorder) Elapsed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.elapsed
}

// Value returns the text of record.
func (r *Recorder) Value() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.value
}

// SetValue replaces the text of record, e.g. after a manual edit.
func (r *Recorder) SetValue(v string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.value = v
}

// AudioKey returns the archive key of the last transcribed recording.
func (r *Recorder) AudioKey() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.audioKey
}

// LastFailure returns the failure of the last operation, or nil. It is
// cleared by the next successful Start or Stop.
func (r *Recorder) LastFailure() *Failure {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastFailure
}

func (r *Recorder) finishFailure(ctx context.Context, f *Failure, elapsed time.Duration) *Failure {
	r.mu.Lock()
	r.state = StateIdle
	r.lastFailure = f
	r.mu.Unlock()
	r.reportFailure(ctx, f, elapsed)
	return f
}

func (r *Recorder) reportFailure(ctx context.Context, f *Failure, elapsed time.Duration) {
	r.metrics.RecordRecording(ctx, string(f.Kind), elapsed)
	r.emit(Event{Type: EventFailed, Elapsed: int(elapsed / time.Second), Message: f.Message, Failure: f})

	fields := map[string]interface{}{"kind": string(f.Kind), logger.FieldElapsed: int(elapsed / time.Second)}
	if f.Reason != "" {
		fields["reason"] = string(f.Reason)
	}
	l := r.log.WithContext(ctx)
	if f.Cause != nil {
		l = l.WithError(f.Cause)
	}
	if f.Soft() {
		l.Info("recording rejected", fields)
		return
	}
	l.Warn("recording rejected", fields)
}

func (r *Recorder) emit(e Event) {
	if r.events == nil {
		return
	}
	e.At = time.Now()
	select {
	case r.events <- e:
	default:
	}
}

// FormatElapsed renders seconds as MM:SS.
func FormatElapsed(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
