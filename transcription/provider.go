// Package transcription defines the speech-to-text provider interface, the
// classified error type shared by all backends and the adapters the voice
// note recorder consumes.
package transcription

import (
	"context"

	"github.com/kbukum/hvacform/audio"
	"github.com/kbukum/hvacform/provider"
)

// Provider is implemented by speech-to-text backends. A provider makes
// exactly one upstream request per call and never retries.
type Provider interface {
	provider.Provider
	Transcribe(ctx context.Context, req Request) (*Response, error)
}

// Request is a single transcription call.
type Request struct {
	Audio audio.Blob
	// Language overrides the provider's configured language when set.
	Language string
	// Model overrides the provider's configured model when set.
	Model string
}

// Response is the provider's result. Text may be empty when no speech
// was detected.
type Response struct {
	Text         string
	Words        []Word
	LanguageCode string
}

// Word is one token of a word-level transcript.
type Word struct {
	// Type is "word", "spacing" or "audio_event".
	Type  string
	Text  string
	Start float64
	End   float64
}

// JoinWords concatenates the text of tokens of type "word" in order,
// without separators.
func JoinWords(words []Word) string {
	n := 0
	for _, w := range words {
		if w.Type == "word" {
			n += len(w.Text)
		}
	}
	out := make([]byte, 0, n)
	for _, w := range words {
		if w.Type == "word" {
			out = append(out, w.Text...)
		}
	}
	return string(out)
}

// NewRegistry creates a registry of transcription providers.
func NewRegistry() *provider.Registry[Provider] {
	return provider.NewRegistry[Provider]()
}

// Transcriber is the narrow view the recorder needs: blob in, text out.
type Transcriber interface {
	Transcribe(ctx context.Context, blob audio.Blob) (string, error)
}

// TranscriberFunc adapts a function to Transcriber.
type TranscriberFunc func(ctx context.Context, blob audio.Blob) (string, error)

func (f TranscriberFunc) Transcribe(ctx context.Context, blob audio.Blob) (string, error) {
	return f(ctx, blob)
}

// TextOnly exposes p as a Transcriber.
func TextOnly(p Provider) Transcriber {
	return TranscriberFunc(func(ctx context.Context, blob audio.Blob) (string, error) {
		resp, err := p.Transcribe(ctx, Request{Audio: blob})
		if err != nil {
			return "", err
		}
		return resp.Text, nil
	})
}
