package openai

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kbukum/hvacform/audio"
	"github.com/kbukum/hvacform/transcription"
)

type captured struct {
	path     string
	auth     string
	model    string
	language string
	fileName string
	size     int
}

func newServer(t *testing.T, status int, body string) (*httptest.Server, *captured) {
	t.Helper()
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.path = r.URL.Path
		got.auth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		got.model = r.FormValue("model")
		got.language = r.FormValue("language")
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		data, _ := io.ReadAll(f)
		got.fileName = hdr.Filename
		got.size = len(data)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestTranscribe(t *testing.T) {
	srv, got := newServer(t, http.StatusOK, `{"text":"dzień dobry","language":"polish"}`)
	p, err := New(Config{BaseURL: srv.URL, APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	resp, err := p.Transcribe(context.Background(), transcription.Request{
		Audio: audio.Blob{Format: audio.FormatMPEG, Data: make([]byte, 3000)},
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if resp.Text != "dzień dobry" {
		t.Errorf("text = %q", resp.Text)
	}
	if got.path != "/v1/audio/transcriptions" {
		t.Errorf("path = %q", got.path)
	}
	if got.auth != "Bearer sk-test" {
		t.Errorf("auth = %q", got.auth)
	}
	if got.model != "whisper-1" || got.language != "pl" {
		t.Errorf("model=%q language=%q", got.model, got.language)
	}
	if got.fileName != "recording.mp3" || got.size != 3000 {
		t.Errorf("file %q size %d", got.fileName, got.size)
	}
}

func TestTranscribe_Errors(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   transcription.Kind
	}{
		{http.StatusUnauthorized, `{"error":{"message":"Incorrect API key","type":"invalid_request_error"}}`, transcription.KindUnauthorized},
		{http.StatusTooManyRequests, `{"error":{"message":"Rate limit reached","type":"requests"}}`, transcription.KindRateLimited},
		{http.StatusBadRequest, `{"error":{"message":"Invalid file format.","type":"invalid_request_error"}}`, transcription.KindBadRequest},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv, _ := newServer(t, tt.status, tt.body)
			p, err := New(Config{BaseURL: srv.URL, APIKey: "sk-test"})
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			_, err = p.Transcribe(context.Background(), transcription.Request{
				Audio: audio.Blob{Format: audio.FormatWebM, Data: make([]byte, 2000)},
			})
			var te *transcription.Error
			if !errors.As(err, &te) {
				t.Fatalf("expected *transcription.Error, got %v", err)
			}
			if te.Kind != tt.want || te.StatusCode != tt.status {
				t.Errorf("kind=%s status=%d, want %s %d", te.Kind, te.StatusCode, tt.want, tt.status)
			}
		})
	}
}

func TestTranscribe_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p, err := New(Config{BaseURL: url, APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = p.Transcribe(context.Background(), transcription.Request{Audio: audio.Blob{Data: []byte("x")}})
	if transcription.KindOf(err) != transcription.KindUnknown || err == nil {
		t.Errorf("expected unknown error, got %v", err)
	}
}

func TestConfig(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error without API key")
	}
	p, err := Factory(Config{APIKey: "k"})()
	if err != nil {
		t.Fatalf("Factory: %v", err)
	}
	if p.Name() != ProviderName || !p.IsAvailable(context.Background()) {
		t.Error("unexpected provider state")
	}
}
