package voicenote

import "time"

// EventType names a Recorder notification.
type EventType string

const (
	EventStarted     EventType = "started"
	EventTick        EventType = "tick"
	EventProcessing  EventType = "processing"
	EventUploading   EventType = "uploading"
	EventTranscribed EventType = "transcribed"
	EventFailed      EventType = "failed"
	EventReleased    EventType = "released"
)

// Event is a Recorder notification.
type Event struct {
	Type EventType
	// Elapsed is the counter value in seconds.
	Elapsed int
	// Message is user-facing text, when the event has one.
	Message string
	Text    string
	Failure *Failure
	At      time.Time
}

// Ticker is the part of time.Ticker the elapsed counter uses.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct{ *time.Ticker }

func (t realTicker) C() <-chan time.Time { return t.Ticker.C }

// NewTicker returns a Ticker backed by time.NewTicker.
func NewTicker(d time.Duration) Ticker {
	return realTicker{time.NewTicker(d)}
}

type counter struct {
	stop chan struct{}
	done chan struct{}
}

// halt stops the counter goroutine and waits for it. Nil-safe.
func (c *counter) halt() {
	if c == nil {
		return
	}
	close(c.stop)
	<-c.done
}

func (r *Recorder) startCounterLocked() {
	c := &counter{stop: make(chan struct{}), done: make(chan struct{})}
	r.counter = c
	go r.count(r.newTicker(time.Second), c)
}

func (r *Recorder) detachCounterLocked() *counter {
	c := r.counter
	r.counter = nil
	return c
}

func (r *Recorder) count(t Ticker, c *counter) {
	defer close(c.done)
	defer t.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-t.C():
			r.mu.Lock()
			if r.counter != c {
				r.mu.Unlock()
				return
			}
			r.elapsed++
			n := r.elapsed
			r.mu.Unlock()
			r.emit(Event{Type: EventTick, Elapsed: n})
		}
	}
}
