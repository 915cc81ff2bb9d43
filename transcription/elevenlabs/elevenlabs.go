// Package elevenlabs implements transcription.Provider on the ElevenLabs
// speech-to-text API.
package elevenlabs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kbukum/hvacform/audio"
	"github.com/kbukum/hvacform/httpclient"
	"github.com/kbukum/hvacform/logger"
	"github.com/kbukum/hvacform/transcription"
	"github.com/kbukum/hvacform/util"
)

const (
	// ProviderName is the registry name of this provider.
	ProviderName = "elevenlabs"

	defaultBaseURL  = "https://api.elevenlabs.io"
	defaultModel    = "scribe_v1"
	defaultLanguage = "pol"
	defaultTimeout  = 120 * time.Second

	speechToTextPath = "/v1/speech-to-text"
	apiKeyHeader     = "xi-api-key"
)

// Config holds the provider settings. The API key is always passed
// explicitly; the provider never reads the environment.
type Config struct {
	BaseURL  string        `yaml:"base_url" mapstructure:"base_url"`
	APIKey   string        `yaml:"api_key" mapstructure:"api_key"`
	Model    string        `yaml:"model" mapstructure:"model"`
	Language string        `yaml:"language" mapstructure:"language"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.Language == "" {
		c.Language = defaultLanguage
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("elevenlabs.api_key is required")
	}
	return nil
}

// Provider calls POST /v1/speech-to-text.
type Provider struct {
	cfg    Config
	client *httpclient.Client
	log    *logger.Logger
}

// New creates a Provider.
func New(cfg Config) (*Provider, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := httpclient.New(httpclient.Config{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
		Auth:    httpclient.APIKeyAuthHeader(cfg.APIKey, apiKeyHeader),
	})
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: %w", err)
	}
	p := &Provider{cfg: cfg, client: client, log: logger.WithComponent("transcription.elevenlabs")}
	p.log.Info("provider configured", map[string]interface{}{
		"model":    cfg.Model,
		"language": cfg.Language,
		"api_key":  util.MaskSecret(cfg.APIKey, 5),
	})
	return p, nil
}

// Factory returns a registry factory bound to cfg.
func Factory(cfg Config) func() (transcription.Provider, error) {
	return func() (transcription.Provider, error) {
		return New(cfg)
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// IsAvailable reports whether an API key is configured. No request is made.
func (p *Provider) IsAvailable(context.Context) bool {
	return p.cfg.APIKey != ""
}

// acceptedFormat re-tags formats the API does not take as audio/webm.
// Only the label changes; the bytes are sent as they are.
func acceptedFormat(f audio.Format) audio.Format {
	s := strings.ToLower(string(f))
	if strings.Contains(s, "wav") || strings.Contains(s, "mp3") || strings.Contains(s, "webm") {
		return f
	}
	return audio.FormatWebM
}

type sttResponse struct {
	Text         *string   `json:"text"`
	LanguageCode string    `json:"language_code"`
	Words        []sttWord `json:"words"`
}

type sttWord struct {
	Text  string  `json:"text"`
	Type  string  `json:"type"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Transcribe uploads the blob in a single request.
func (p *Provider) Transcribe(ctx context.Context, req transcription.Request) (*transcription.Response, error) {
	format := acceptedFormat(req.Audio.Format)
	model := util.Coalesce(req.Model, p.cfg.Model)
	language := util.Coalesce(req.Language, p.cfg.Language)

	body := &httpclient.MultipartBody{
		Fields: map[string]string{
			"model_id":         model,
			"diarize":          "false",
			"tag_audio_events": "false",
			"language_code":    language,
		},
		Files: []httpclient.FileField{{
			FieldName:   "file",
			FileName:    "recording." + format.Extension(),
			ContentType: string(format),
			Data:        req.Audio.Data,
		}},
	}

	resp, err := p.client.Do(ctx, httpclient.Request{
		Method:  http.MethodPost,
		Path:    speechToTextPath,
		Headers: map[string]string{"Accept": "application/json"},
		Body:    body,
	})
	if err != nil {
		if resp != nil {
			return nil, transcription.NewHTTPError(resp.StatusCode, resp.Body, err)
		}
		return nil, &transcription.Error{Kind: transcription.KindUnknown, Cause: err}
	}

	var out sttResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, &transcription.Error{
			Kind:       transcription.KindUnknown,
			StatusCode: resp.StatusCode,
			Detail:     "malformed response body",
			Cause:      err,
		}
	}
	return toResponse(&out), nil
}

func toResponse(r *sttResponse) *transcription.Response {
	words := make([]transcription.Word, len(r.Words))
	for i, w := range r.Words {
		words[i] = transcription.Word{Type: w.Type, Text: w.Text, Start: w.Start, End: w.End}
	}
	text := ""
	switch {
	case r.Text != nil && *r.Text != "":
		text = *r.Text
	case len(words) > 0:
		text = transcription.JoinWords(words)
	}
	return &transcription.Response{Text: text, Words: words, LanguageCode: r.LanguageCode}
}
