package voicenote

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/hvacform/audio"
	"github.com/kbukum/hvacform/component"
	"github.com/kbukum/hvacform/logger"
	"github.com/kbukum/hvacform/transcription"
)

type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) Add(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type managerHarness struct {
	m     *Manager
	clock *fakeClock
	now   *manualClock
	tr    *countingTranscriber
}

func newManagerHarness(t *testing.T, mod func(*Config), opts ...ManagerOption) *managerHarness {
	t.Helper()
	var cfg Config
	cfg.ApplyDefaults()
	if mod != nil {
		mod(&cfg)
	}
	h := &managerHarness{
		clock: newFakeClock(),
		now:   &manualClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		tr:    &countingTranscriber{text: "hello"},
	}
	opts = append([]ManagerOption{
		WithManagerTicker(h.clock.NewTicker),
		WithManagerClock(h.now.Now),
		WithManagerLogger(logger.Nop()),
	}, opts...)
	h.m = NewManager(cfg, h.tr, opts...)
	t.Cleanup(func() { _ = h.m.Stop(context.Background()) })
	return h
}

// tick advances the session's counter by n seconds.
func (h *managerHarness) tick(t *testing.T, s *Session, n int) {
	t.Helper()
	tk := h.clock.ticker(t)
	want := s.Recorder().Elapsed() + n
	for i := 0; i < n; i++ {
		tk.ch <- time.Now()
	}
	waitFor(t, func() bool { return s.Recorder().Elapsed() == want })
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func (h *managerHarness) open(t *testing.T) *Session {
	t.Helper()
	s, err := h.m.Open(context.Background(), []string{"audio/webm;codecs=opus", "audio/webm"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func pushBytes(t *testing.T, m *Manager, id string, total, chunk int) {
	t.Helper()
	for sent := 0; sent < total; sent += chunk {
		n := chunk
		if total-sent < n {
			n = total - sent
		}
		if err := m.Push(id, bytes.Repeat([]byte{7}, n)); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}
}

func TestManager_RecordAndFinish(t *testing.T) {
	h := newManagerHarness(t, nil)
	s := h.open(t)
	if s.Format != audio.FormatWebMOpus {
		t.Fatalf("expected negotiated webm/opus, got %s", s.Format)
	}

	h.tick(t, s, 2)
	pushBytes(t, h.m, s.ID, 5000, 1000)

	res, err := h.m.Finish(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if res.Text != "hello" {
		t.Fatalf("expected hello, got %q", res.Text)
	}
	if s.device.Holding() {
		t.Error("device still held after finish")
	}

	st, err := h.m.Status(s.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.State != "idle" || st.Text != "hello" || st.Elapsed != "00:02" {
		t.Errorf("unexpected status %+v", st)
	}
	waitFor(t, func() bool {
		st, _ := h.m.Status(s.ID)
		return len(st.Events) > 0 && st.Events[len(st.Events)-1].Type == EventTranscribed
	})
}

func TestManager_TooShortReleasesDevice(t *testing.T) {
	h := newManagerHarness(t, nil)
	s := h.open(t)
	pushBytes(t, h.m, s.ID, 5000, 5000)

	_, err := h.m.Finish(context.Background(), s.ID)
	expectKind(t, err, KindRecordingTooShort)
	if h.tr.Calls() != 0 {
		t.Error("too-short recording must not be transcribed")
	}
	if s.device.Holding() {
		t.Error("device still held")
	}

	err = h.m.Push(s.ID, []byte{1})
	expectKind(t, err, KindNoActiveRecording)
}

func TestManager_RestartDiscardsFragments(t *testing.T) {
	h := newManagerHarness(t, nil)
	s := h.open(t)
	h.tick(t, s, 1)
	pushBytes(t, h.m, s.ID, 900, 900)

	if err := h.m.Restart(context.Background(), s.ID); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	h.tick(t, s, 1)
	pushBytes(t, h.m, s.ID, 500, 500)

	_, err := h.m.Finish(context.Background(), s.ID)
	expectKind(t, err, KindRecordingTooQuiet)
}

func TestManager_OpenWithoutFormatsIsUnsupported(t *testing.T) {
	h := newManagerHarness(t, nil)
	_, err := h.m.Open(context.Background(), nil)
	f := expectKind(t, err, KindDeviceUnavailable)
	if f.Message != MsgUnsupported {
		t.Errorf("expected unsupported message, got %q", f.Message)
	}
	if h.m.Len() != 0 {
		t.Errorf("failed session must not be kept, have %d", h.m.Len())
	}
}

func TestManager_UnknownSession(t *testing.T) {
	h := newManagerHarness(t, nil)
	ctx := context.Background()
	checks := map[string]error{
		"push":    h.m.Push("nope", []byte{1}),
		"restart": h.m.Restart(ctx, "nope"),
		"settext": h.m.SetText("nope", "x"),
	}
	_, checks["finish"] = h.m.Finish(ctx, "nope")
	_, checks["status"] = h.m.Status("nope")
	for name, err := range checks {
		if !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("%s: expected ErrSessionNotFound, got %v", name, err)
		}
	}
	h.m.Delete("nope")
}

func TestManager_Limits(t *testing.T) {
	h := newManagerHarness(t, func(c *Config) {
		c.MaxSessions = 1
		c.MaxFragmentSize = "1KB"
	})
	s := h.open(t)

	if _, err := h.m.Open(context.Background(), []string{"audio/webm"}); !errors.Is(err, ErrTooManySessions) {
		t.Errorf("expected ErrTooManySessions, got %v", err)
	}
	if err := h.m.Push(s.ID, make([]byte, 2048)); !errors.Is(err, ErrFragmentTooLarge) {
		t.Errorf("expected ErrFragmentTooLarge, got %v", err)
	}
	if got := h.m.Health(context.Background()); got.Status != component.StatusDegraded {
		t.Errorf("expected degraded at capacity, got %s", got.Status)
	}
}

func TestManager_SetText(t *testing.T) {
	h := newManagerHarness(t, nil)
	s := h.open(t)
	if err := h.m.SetText(s.ID, "poprawiony tekst"); err != nil {
		t.Fatalf("SetText: %v", err)
	}
	st, _ := h.m.Status(s.ID)
	if st.Text != "poprawiony tekst" {
		t.Fatalf("unexpected text %q", st.Text)
	}
}

func TestManager_DeleteReleasesDevice(t *testing.T) {
	h := newManagerHarness(t, nil)
	s := h.open(t)
	h.m.Delete(s.ID)

	if s.device.Holding() {
		t.Error("device still held after delete")
	}
	if _, err := h.m.Status(s.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected session to be gone, got %v", err)
	}
}

func TestManager_ReapsIdleSessions(t *testing.T) {
	h := newManagerHarness(t, func(c *Config) { c.SessionTTL = time.Minute })
	idle := h.open(t)
	h.now.Add(45 * time.Second)
	active := h.open(t)
	h.now.Add(30 * time.Second)

	if n := h.m.reap(h.now.Now()); n != 1 {
		t.Fatalf("expected 1 reaped session, got %d", n)
	}
	if _, err := h.m.Get(idle.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Error("idle session should be reaped")
	}
	if idle.device.Holding() {
		t.Error("reaped session still holds its device")
	}
	if _, err := h.m.Get(active.ID); err != nil {
		t.Errorf("active session should survive: %v", err)
	}
}

func TestManager_StopClosesAllSessions(t *testing.T) {
	h := newManagerHarness(t, nil)
	if err := h.m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	a, b := h.open(t), h.open(t)

	if err := h.m.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if h.m.Len() != 0 || a.device.Holding() || b.device.Holding() {
		t.Error("expected every session closed and released")
	}
}

func TestManager_StopRightAfterStart(t *testing.T) {
	for i := 0; i < 20; i++ {
		var cfg Config
		cfg.ApplyDefaults()
		m := NewManager(cfg, nil, WithManagerLogger(logger.Nop()))
		if err := m.Start(context.Background()); err != nil {
			t.Fatalf("Start: %v", err)
		}
		stopped := make(chan error, 1)
		go func() { stopped <- m.Stop(context.Background()) }()
		select {
		case err := <-stopped:
			if err != nil {
				t.Fatalf("Stop: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("run %d: Stop did not return", i)
		}
	}
}

func TestManager_TranscribeBlob(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		err     error
		size    int
		elapsed time.Duration
		kind    Kind
		calls   int
	}{
		{"ok", "hello", nil, 5000, 2 * time.Second, "", 1},
		{"unknown duration", "hello", nil, 5000, 0, "", 1},
		{"too short", "hello", nil, 5000, 500 * time.Millisecond, KindRecordingTooShort, 0},
		{"too quiet", "hello", nil, 999, 0, KindRecordingTooQuiet, 0},
		{"no speech", "", nil, 5000, 0, KindNoSpeechDetected, 1},
		{"rate limited", "", transcription.NewHTTPError(429, nil, nil), 5000, 0, KindTranscriptionFailed, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &memArchive{}
			h := newManagerHarness(t, nil, WithManagerArchive(a))
			h.tr.text, h.tr.err = tt.text, tt.err

			res, err := h.m.TranscribeBlob(context.Background(), blobOf(tt.size), tt.elapsed)
			if h.tr.Calls() != tt.calls {
				t.Errorf("expected %d calls, got %d", tt.calls, h.tr.Calls())
			}
			if tt.kind != "" {
				expectKind(t, err, tt.kind)
				if len(a.keys) != 0 {
					t.Error("failed recordings must not be archived")
				}
				return
			}
			if err != nil {
				t.Fatalf("TranscribeBlob: %v", err)
			}
			if res.Text != "hello" || res.AudioKey != "voice-notes/k0" {
				t.Errorf("unexpected result %+v", res)
			}
		})
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events map[string][]string
	closed []string
}

func (p *recordingPublisher) Publish(topic, event string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := payload.(EventView); !ok {
		return errors.New("unexpected payload type")
	}
	if p.events == nil {
		p.events = make(map[string][]string)
	}
	p.events[topic] = append(p.events[topic], event)
	return nil
}

func (p *recordingPublisher) Close(topic string) {
	p.mu.Lock()
	p.closed = append(p.closed, topic)
	p.mu.Unlock()
}

func (p *recordingPublisher) seen(topic, event string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.events[topic] {
		if e == event {
			return true
		}
	}
	return false
}

func TestManager_PublishesSessionEvents(t *testing.T) {
	pub := &recordingPublisher{}
	h := newManagerHarness(t, nil, WithManagerPublisher(pub))
	s := h.open(t)

	h.tick(t, s, 2)
	pushBytes(t, h.m, s.ID, 5000, 1000)
	if _, err := h.m.Finish(context.Background(), s.ID); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	waitFor(t, func() bool { return pub.seen(s.ID, string(EventTranscribed)) })
	for _, e := range []EventType{EventStarted, EventTick} {
		if !pub.seen(s.ID, string(e)) {
			t.Errorf("event %q not published", e)
		}
	}

	h.m.Delete(s.ID)
	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.closed) != 1 || pub.closed[0] != s.ID {
		t.Errorf("closed topics = %v", pub.closed)
	}
}
