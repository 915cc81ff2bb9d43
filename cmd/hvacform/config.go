package main

import (
	"fmt"

	"github.com/kbukum/hvacform/audio/ffmpeg"
	"github.com/kbukum/hvacform/config"
	"github.com/kbukum/hvacform/contact"
	"github.com/kbukum/hvacform/database"
	"github.com/kbukum/hvacform/observability"
	"github.com/kbukum/hvacform/server"
	"github.com/kbukum/hvacform/storage"
	"github.com/kbukum/hvacform/transcription/elevenlabs"
	"github.com/kbukum/hvacform/transcription/openai"
	"github.com/kbukum/hvacform/voicenote"
)

const serviceName = "hvacform"

// Config is the configuration of every hvacform command.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Server        server.Config        `yaml:"server" mapstructure:"server"`
	Database      database.Config      `yaml:"database" mapstructure:"database"`
	Storage       storage.Config       `yaml:"storage" mapstructure:"storage"`
	Contact       contact.Config       `yaml:"contact" mapstructure:"contact"`
	VoiceNote     voicenote.Config     `yaml:"voice_note" mapstructure:"voice_note"`
	Transcription TranscriptionConfig  `yaml:"transcription" mapstructure:"transcription"`
	ElevenLabs    elevenlabs.Config    `yaml:"elevenlabs" mapstructure:"elevenlabs"`
	OpenAI        openai.Config        `yaml:"openai" mapstructure:"openai"`
	FFmpeg        ffmpeg.Config        `yaml:"ffmpeg" mapstructure:"ffmpeg"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
}

// TranscriptionConfig selects the speech-to-text provider.
type TranscriptionConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"`
}

var providers = []string{elevenlabs.ProviderName, openai.ProviderName}

// ApplyDefaults fills every section. The database is only enabled when
// submissions are stored in it.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = serviceName
	}
	c.ServiceConfig.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Contact.ApplyDefaults()
	c.Database.Enabled = c.Contact.Store == contact.StoreDatabase
	c.Database.ApplyDefaults()
	c.Storage.ApplyDefaults()
	c.VoiceNote.ApplyDefaults()
	if c.Transcription.Provider == "" {
		c.Transcription.Provider = elevenlabs.ProviderName
	}
	c.ElevenLabs.ApplyDefaults()
	c.OpenAI.ApplyDefaults()
	c.FFmpeg.ApplyDefaults()
	c.Observability.ApplyDefaults()
}

// Validate checks every section. Only the selected provider needs an API key.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Contact.Validate(); err != nil {
		return fmt.Errorf("contact: %w", err)
	}
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.VoiceNote.Validate(); err != nil {
		return fmt.Errorf("voice_note: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	switch c.Transcription.Provider {
	case elevenlabs.ProviderName:
		if err := c.ElevenLabs.Validate(); err != nil {
			return fmt.Errorf("elevenlabs: %w", err)
		}
	case openai.ProviderName:
		if err := c.OpenAI.Validate(); err != nil {
			return fmt.Errorf("openai: %w", err)
		}
	default:
		return fmt.Errorf("transcription.provider must be one of %v (got: %s)", providers, c.Transcription.Provider)
	}
	return nil
}

// defaults registers every key that may come only from the environment.
// Keys unknown to the loader are not bound to environment variables.
func defaults() map[string]any {
	return map[string]any{
		"name":                              serviceName,
		"environment":                       "development",
		"transcription.provider":            elevenlabs.ProviderName,
		"elevenlabs.api_key":                "",
		"elevenlabs.base_url":               "",
		"openai.api_key":                    "",
		"openai.base_url":                   "",
		"contact.store":                     contact.StoreDatabase,
		"contact.supabase.url":              "",
		"contact.supabase.anon_key":         "",
		"database.dsn":                      "",
		"storage.enabled":                   false,
		"storage.provider":                  "",
		"storage.bucket":                    "",
		"storage.access_key":                "",
		"storage.secret_key":                "",
		"voice_note.archive.encrypt":        false,
		"voice_note.archive.encryption.key": "",
		"observability.enabled":             false,
		"observability.endpoint":            "",
	}
}

// loadConfig reads config.yml and .env from the standard locations or the
// given paths, then the environment.
func loadConfig(configFile, envFile string) (*Config, error) {
	opts := []config.LoaderOption{config.WithDefaults(defaults())}
	if configFile != "" {
		opts = append(opts, config.WithConfigFile(configFile))
	}
	if envFile != "" {
		opts = append(opts, config.WithEnvFile(envFile))
	}
	var cfg Config
	if err := config.LoadConfig(serviceName, &cfg, opts...); err != nil {
		return nil, err
	}
	return &cfg, nil
}
