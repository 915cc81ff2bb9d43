// Package openai implements transcription.Provider on the OpenAI-compatible
// audio transcription endpoint.
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/kbukum/hvacform/logger"
	"github.com/kbukum/hvacform/transcription"
	"github.com/kbukum/hvacform/util"
)

const (
	// ProviderName is the registry name of this provider.
	ProviderName = "openai"

	defaultBaseURL  = "https://api.openai.com"
	defaultLanguage = "pl"
	defaultTimeout  = 120 * time.Second
)

// Config holds the provider settings.
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
		c.Model = goopenai.Whisper1
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
		return fmt.Errorf("openai.api_key is required")
	}
	return nil
}

// Provider sends one transcription request per call.
type Provider struct {
	cfg    Config
	client *goopenai.Client
	log    *logger.Logger
}

// New creates a Provider.
func New(cfg Config) (*Provider, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/") + "/v1"
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	p := &Provider{
		cfg:    cfg,
		client: goopenai.NewClientWithConfig(clientCfg),
		log:    logger.WithComponent("transcription.openai"),
	}
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

// IsAvailable reports whether an API key is configured.
func (p *Provider) IsAvailable(context.Context) bool {
	return p.cfg.APIKey != ""
}

// Transcribe uploads the blob and returns the transcript text.
func (p *Provider) Transcribe(ctx context.Context, req transcription.Request) (*transcription.Response, error) {
	resp, err := p.client.CreateTranscription(ctx, goopenai.AudioRequest{
		Model:    util.Coalesce(req.Model, p.cfg.Model),
		FilePath: "recording." + req.Audio.Format.Extension(),
		Reader:   bytes.NewReader(req.Audio.Data),
		Language: util.Coalesce(req.Language, p.cfg.Language),
		Format:   goopenai.AudioResponseFormatJSON,
	})
	if err != nil {
		return nil, classify(err)
	}
	return &transcription.Response{Text: resp.Text, LanguageCode: resp.Language}, nil
}

func classify(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return transcription.NewHTTPError(apiErr.HTTPStatusCode, []byte(apiErr.Message), err)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		body := ""
		if reqErr.Err != nil {
			body = reqErr.Err.Error()
		}
		return transcription.NewHTTPError(reqErr.HTTPStatusCode, []byte(body), err)
	}
	return &transcription.Error{Kind: transcription.KindUnknown, Cause: err}
}
