package voicenote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/hvacform/audio"
	"github.com/kbukum/hvacform/audio/feed"
	"github.com/kbukum/hvacform/component"
	"github.com/kbukum/hvacform/logger"
	"github.com/kbukum/hvacform/observability"
	"github.com/kbukum/hvacform/transcription"
)

var (
	// ErrSessionNotFound is returned for an unknown or expired session id.
	ErrSessionNotFound = errors.New("voicenote: session not found")
	// ErrTooManySessions is returned by Open when MaxSessions are open.
	ErrTooManySessions = errors.New("voicenote: too many open sessions")
	// ErrFragmentTooLarge is returned by Push for a fragment over the limit.
	ErrFragmentTooLarge = errors.New("voicenote: fragment too large")
)

const (
	sessionEventBuffer = 64
	sessionFragmentBuf = 64
	recentEvents       = 8
)

// Manager keeps one Recorder per browser session. Each session records
// from a feed device the browser pushes MediaRecorder fragments into.
// Sessions without client activity for Config.SessionTTL are closed.
type Manager struct {
	cfg         Config
	transcriber transcription.Transcriber
	archive     Archiver
	publisher   Publisher
	metrics     *observability.Metrics
	newTicker   func(time.Duration) Ticker
	now         func() time.Time
	log         *logger.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	quit     chan struct{}
	done     chan struct{}
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerArchive archives every transcribed recording.
func WithManagerArchive(a Archiver) ManagerOption {
	return func(m *Manager) { m.archive = a }
}

// WithManagerPublisher streams every session event, elapsed ticks
// included, to p under the session id.
func WithManagerPublisher(p Publisher) ManagerOption {
	return func(m *Manager) { m.publisher = p }
}

// WithManagerMetrics records session and recording outcomes on metrics.
func WithManagerMetrics(metrics *observability.Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = metrics }
}

// WithManagerTicker replaces the elapsed counter ticker of every session.
func WithManagerTicker(fn func(time.Duration) Ticker) ManagerOption {
	return func(m *Manager) { m.newTicker = fn }
}

// WithManagerClock replaces the clock used for session expiry.
func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// WithManagerLogger sets the logger.
func WithManagerLogger(l *logger.Logger) ManagerOption {
	return func(m *Manager) { m.log = l }
}

// NewManager creates a Manager. cfg should have defaults applied.
func NewManager(cfg Config, transcriber transcription.Transcriber, opts ...ManagerOption) *Manager {
	m := &Manager{
		cfg:         cfg,
		transcriber: transcriber,
		newTicker:   NewTicker,
		now:         time.Now,
		log:         logger.WithComponent("voicenote"),
		sessions:    make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Session is one browser recording session.
type Session struct {
	ID string
	// Format is the negotiated recording format the client should use.
	Format   audio.Format
	device   *feed.Device
	recorder *Recorder
	events   chan Event
	publish  Publisher
	quit     chan struct{}
	done     chan struct{}

	mu         sync.Mutex
	lastActive time.Time
	recent     []Event
}

// Recorder returns the session's recorder.
func (s *Session) Recorder() *Recorder { return s.recorder }

// collect keeps the latest notable events for Status. Events do not count
// as client activity.
func (s *Session) collect() {
	defer close(s.done)
	for {
		select {
		case e := <-s.events:
			if s.publish != nil {
				_ = s.publish.Publish(s.ID, string(e.Type), viewEvent(e))
			}
			if e.Type == EventTick {
				continue
			}
			s.mu.Lock()
			s.recent = append(s.recent, e)
			if len(s.recent) > recentEvents {
				s.recent = s.recent[len(s.recent)-recentEvents:]
			}
			s.mu.Unlock()
		case <-s.quit:
			return
		}
	}
}

func (s *Session) touch(t time.Time) {
	s.mu.Lock()
	s.lastActive = t
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *Session) close() {
	s.recorder.Close()
	close(s.quit)
	<-s.done
	if s.publish != nil {
		s.publish.Close(s.ID)
	}
}

// EventView is the JSON form of a notable Event.
type EventView struct {
	Type    EventType    `json:"type"`
	Elapsed int          `json:"elapsed_seconds"`
	Message string       `json:"message,omitempty"`
	Text    string       `json:"text,omitempty"`
	Failure *FailureView `json:"failure,omitempty"`
	At      time.Time    `json:"at"`
}

func viewEvent(e Event) EventView {
	v := EventView{Type: e.Type, Elapsed: e.Elapsed, Message: e.Message, Text: e.Text, At: e.At}
	if e.Failure != nil {
		v.Failure = viewFailure(e.Failure)
	}
	return v
}

// FailureView is the JSON form of a Failure.
type FailureView struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
	Soft    bool   `json:"soft,omitempty"`
}

// Status is a snapshot of a session.
type Status struct {
	ID             string       `json:"id"`
	State          string       `json:"state"`
	Format         string       `json:"format"`
	ElapsedSeconds int          `json:"elapsed_seconds"`
	Elapsed        string       `json:"elapsed"`
	Text           string       `json:"text"`
	AudioKey       string       `json:"audio_key,omitempty"`
	LastFailure    *FailureView `json:"last_failure,omitempty"`
	Events         []EventView  `json:"events,omitempty"`
}

// Result is the outcome of a successful transcription.
type Result struct {
	Text     string `json:"text"`
	AudioKey string `json:"audio_key,omitempty"`
}

// Open creates a session for a client that can encode supportedFormats
// and starts recording. With no declared formats the session fails as
// unsupported.
func (m *Manager) Open(ctx context.Context, supportedFormats []string) (*Session, error) {
	m.mu.Lock()
	if len(m.sessions) >= m.cfg.MaxSessions {
		m.mu.Unlock()
		return nil, ErrTooManySessions
	}
	m.mu.Unlock()

	formats := make([]audio.Format, 0, len(supportedFormats))
	for _, f := range supportedFormats {
		if f = strings.TrimSpace(f); f != "" {
			formats = append(formats, audio.ParseFormat(f))
		}
	}
	device := feed.New(formats...).WithBuffer(sessionFragmentBuf)

	id := uuid.NewString()
	log := m.log.WithFields(map[string]interface{}{logger.FieldSessionID: id})
	s := &Session{
		ID:         id,
		Format:     audio.Negotiate(audio.PreferredFormats, device.Supports),
		device:     device,
		events:     make(chan Event, sessionEventBuffer),
		publish:    m.publisher,
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		lastActive: m.now(),
	}
	capture := audio.NewCapture(device,
		audio.WithTimeslice(m.cfg.Timeslice),
		audio.WithLogger(log),
	)
	opts := []RecorderOption{
		WithEvents(s.events),
		WithTicker(m.newTicker),
		WithMinDuration(m.cfg.MinDuration),
		WithMinBytes(m.cfg.MinBytes),
		WithMetrics(m.metrics),
		WithRecorderLogger(log),
	}
	if m.archive != nil {
		opts = append(opts, WithArchive(m.archive))
	}
	s.recorder = NewRecorder(capture, m.transcriber, opts...)
	go s.collect()

	if err := s.recorder.Start(ctx); err != nil {
		s.close()
		return nil, err
	}

	m.mu.Lock()
	if len(m.sessions) >= m.cfg.MaxSessions {
		m.mu.Unlock()
		s.close()
		return nil, ErrTooManySessions
	}
	m.sessions[id] = s
	m.mu.Unlock()

	m.metrics.SessionOpened(ctx)
	log.Info("voice note session opened", map[string]interface{}{
		logger.FieldFormat: s.Format.String(),
	})
	return s, nil
}

// Get returns the session with id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Push appends one encoded fragment to the session's recording.
func (m *Manager) Push(id string, data []byte) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	if int64(len(data)) > m.cfg.FragmentLimit() {
		return ErrFragmentTooLarge
	}
	s.touch(m.now())
	if err := s.device.Push(data); err != nil {
		if errors.Is(err, feed.ErrNotRecording) {
			return newFailure(KindNoActiveRecording, err)
		}
		return err
	}
	return nil
}

// Restart discards any recording in progress and starts a new one.
func (m *Manager) Restart(ctx context.Context, id string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	s.touch(m.now())
	return s.recorder.Start(ctx)
}

// Finish ends the session's recording and transcribes it.
func (m *Manager) Finish(ctx context.Context, id string) (Result, error) {
	s, err := m.Get(id)
	if err != nil {
		return Result{}, err
	}
	s.touch(m.now())
	text, err := s.recorder.Stop(ctx)
	if err != nil {
		return Result{}, err
	}
	return Result{Text: text, AudioKey: s.recorder.AudioKey()}, nil
}

// SetText replaces the session's text of record.
func (m *Manager) SetText(id, text string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	s.touch(m.now())
	s.recorder.SetValue(text)
	return nil
}

// Status returns a snapshot of the session.
func (m *Manager) Status(id string) (Status, error) {
	s, err := m.Get(id)
	if err != nil {
		return Status{}, err
	}
	s.touch(m.now())
	r := s.recorder
	elapsed := r.Elapsed()
	st := Status{
		ID:             s.ID,
		State:          r.State().String(),
		Format:         s.Format.String(),
		ElapsedSeconds: elapsed,
		Elapsed:        FormatElapsed(elapsed),
		Text:           r.Value(),
		AudioKey:       r.AudioKey(),
	}
	if f := r.LastFailure(); f != nil {
		st.LastFailure = viewFailure(f)
	}
	s.mu.Lock()
	for _, e := range s.recent {
		st.Events = append(st.Events, viewEvent(e))
	}
	s.mu.Unlock()
	return st, nil
}

func viewFailure(f *Failure) *FailureView {
	return &FailureView{Kind: f.Kind, Message: f.Message, Reason: string(f.Reason), Soft: f.Soft()}
}

// Delete cancels the session's recording, releases its device and forgets
// it. Deleting an unknown session is not an error.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return
	}
	s.close()
	m.metrics.SessionClosed(context.Background())
	m.log.Info("voice note session closed", map[string]interface{}{logger.FieldSessionID: id})
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// TranscribeBlob transcribes a finished recording uploaded in one piece.
// elapsed is the client-reported duration; zero means unknown and skips
// the duration gate.
func (m *Manager) TranscribeBlob(ctx context.Context, blob audio.Blob, elapsed time.Duration) (Result, error) {
	log := m.log.WithContext(ctx)
	reject := func(f *Failure) (Result, error) {
		m.metrics.RecordRecording(ctx, string(f.Kind), elapsed)
		log.Info("upload rejected", map[string]interface{}{"kind": string(f.Kind), logger.FieldSizeBytes: blob.Size()})
		return Result{}, f
	}
	if elapsed > 0 && elapsed < m.cfg.MinDuration {
		return reject(newFailure(KindRecordingTooShort, nil))
	}
	if blob.Size() < m.cfg.MinBytes {
		return reject(newFailure(KindRecordingTooQuiet,
			fmt.Errorf("recording is %d bytes, minimum %d", blob.Size(), m.cfg.MinBytes)))
	}

	text, err := m.transcriber.Transcribe(ctx, blob)
	if err != nil {
		return reject(transcriptionFailure(err))
	}
	if strings.TrimSpace(text) == "" {
		return reject(newFailure(KindNoSpeechDetected, nil))
	}

	res := Result{Text: text}
	if m.archive != nil {
		key, err := m.archive.Save(ctx, blob)
		if err != nil {
			log.WithError(err).Warn("archiving recording failed")
		}
		res.AudioKey = key
	}
	m.metrics.RecordRecording(ctx, "ok", elapsed)
	log.Info("upload transcribed", map[string]interface{}{
		logger.FieldSizeBytes: blob.Size(),
		logger.FieldFormat:    blob.Format.String(),
		"chars":               len(text),
	})
	return res, nil
}

// reap closes sessions idle since before now-SessionTTL. Sessions that
// are transcribing are kept.
func (m *Manager) reap(now time.Time) int {
	cutoff := now.Add(-m.cfg.SessionTTL)
	var expired []string
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) && s.recorder.State() != StateProcessing {
			expired = append(expired, id)
		}
	}
	m.mu.Unlock()
	for _, id := range expired {
		m.Delete(id)
	}
	if len(expired) > 0 {
		m.log.Info("expired voice note sessions closed", map[string]interface{}{"count": len(expired)})
	}
	return len(expired)
}

func (m *Manager) janitor(interval time.Duration, quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			m.reap(m.now())
		case <-quit:
			return
		}
	}
}

var (
	_ component.Component   = (*Manager)(nil)
	_ component.Describable = (*Manager)(nil)
)

// Name implements component.Component.
func (m *Manager) Name() string { return "voicenote" }

// Start launches the session janitor.
func (m *Manager) Start(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.quit != nil {
		return nil
	}
	interval := m.cfg.SessionTTL / 2
	if interval > time.Minute {
		interval = time.Minute
	}
	m.quit = make(chan struct{})
	m.done = make(chan struct{})
	go m.janitor(interval, m.quit, m.done)
	return nil
}

// Stop closes every session and stops the janitor.
func (m *Manager) Stop(context.Context) error {
	m.mu.Lock()
	quit, done := m.quit, m.done
	m.quit = nil
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	if quit != nil {
		close(quit)
		<-done
	}
	for _, id := range ids {
		m.Delete(id)
	}
	return nil
}

// Health reports the number of open sessions.
func (m *Manager) Health(context.Context) component.Health {
	n := m.Len()
	status := component.StatusHealthy
	if n >= m.cfg.MaxSessions {
		status = component.StatusDegraded
	}
	return component.Health{
		Name:    m.Name(),
		Status:  status,
		Message: fmt.Sprintf("%d/%d sessions", n, m.cfg.MaxSessions),
	}
}

// Describe implements component.Describable.
func (m *Manager) Describe() component.Description {
	return component.Description{
		Name:    "Voice notes",
		Type:    "sessions",
		Details: fmt.Sprintf("max=%d ttl=%s archive=%t", m.cfg.MaxSessions, m.cfg.SessionTTL, m.archive != nil),
	}
}
