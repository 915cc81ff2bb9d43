package feed

import (
	"context"
	"errors"
	"testing"

	"github.com/kbukum/hvacform/audio"
)

func TestDevice_Supports(t *testing.T) {
	d := New(audio.FormatWebMOpus, audio.FormatWAV)
	tests := []struct {
		f    audio.Format
		want bool
	}{
		{audio.FormatWebMOpus, true},
		{audio.FormatWAV, true},
		{audio.FormatWebM, false},
		{audio.FormatOggOpus, false},
		{audio.Format("audio/wav;codecs=1"), false},
	}
	for _, tt := range tests {
		if got := d.Supports(tt.f); got != tt.want {
			t.Errorf("Supports(%q) = %v, want %v", tt.f, got, tt.want)
		}
	}
}

func TestDevice_SingleHolder(t *testing.T) {
	d := New(audio.FormatWAV)
	s, err := d.Open(context.Background(), audio.DefaultConstraints(), audio.FormatWAV, audio.DefaultTimeslice)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := d.Open(context.Background(), audio.DefaultConstraints(), audio.FormatWAV, audio.DefaultTimeslice); !errors.Is(err, ErrBusy) {
		t.Fatalf("second Open = %v, want ErrBusy", err)
	}
	s.Release()
	s.Release()
	if d.Holding() {
		t.Fatal("device still held after Release")
	}
	if _, err := d.Open(context.Background(), audio.DefaultConstraints(), audio.FormatWAV, audio.DefaultTimeslice); err != nil {
		t.Fatalf("Open after Release: %v", err)
	}
}

func TestDevice_PushAndStop(t *testing.T) {
	d := New(audio.FormatWAV)
	if err := d.Push([]byte("x")); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("Push without stream = %v", err)
	}
	s, err := d.Open(context.Background(), audio.DefaultConstraints(), audio.FormatWAV, audio.DefaultTimeslice)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	buf := []byte("abc")
	if err := d.Push(buf); err != nil {
		t.Fatalf("Push: %v", err)
	}
	buf[0] = 'z'
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	var got []string
	for frag := range s.Fragments() {
		got = append(got, string(frag))
	}
	if len(got) != 1 || got[0] != "abc" {
		t.Errorf("fragments = %v, want [abc] (copied)", got)
	}
	if err := d.Push([]byte("late")); !errors.Is(err, ErrNotRecording) {
		t.Errorf("Push after Stop = %v", err)
	}
}

func TestDevice_NoFormats(t *testing.T) {
	d := New()
	if _, err := d.Open(context.Background(), audio.DefaultConstraints(), audio.FormatDefault, 0); !errors.Is(err, ErrNoFormats) {
		t.Errorf("Open = %v, want ErrNoFormats", err)
	}
}

func TestDevice_OpenCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(audio.FormatWAV).Open(ctx, audio.DefaultConstraints(), audio.FormatWAV, 0); err == nil {
		t.Error("expected error for cancelled context")
	}
}
