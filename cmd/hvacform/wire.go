package main

import (
	"fmt"

	"github.com/kbukum/hvacform/contact"
	"github.com/kbukum/hvacform/database"
	"github.com/kbukum/hvacform/encryption"
	"github.com/kbukum/hvacform/logger"
	"github.com/kbukum/hvacform/observability"
	"github.com/kbukum/hvacform/storage"
	"github.com/kbukum/hvacform/transcription"
	"github.com/kbukum/hvacform/transcription/elevenlabs"
	"github.com/kbukum/hvacform/transcription/openai"
	"github.com/kbukum/hvacform/util"
	"github.com/kbukum/hvacform/voicenote"

	// storage backends
	_ "github.com/kbukum/hvacform/storage/local"
	_ "github.com/kbukum/hvacform/storage/s3"
)

// newProvider builds the configured speech-to-text provider wrapped with
// metrics and tracing.
func newProvider(cfg *Config, metrics *observability.Metrics, log *logger.Logger) (transcription.Provider, error) {
	reg := transcription.NewRegistry()
	reg.Register(elevenlabs.ProviderName, elevenlabs.Factory(cfg.ElevenLabs))
	reg.Register(openai.ProviderName, openai.Factory(cfg.OpenAI))

	p, err := reg.Get(cfg.Transcription.Provider)
	if err != nil {
		return nil, err
	}
	key := cfg.ElevenLabs.APIKey
	if cfg.Transcription.Provider == openai.ProviderName {
		key = cfg.OpenAI.APIKey
	}
	log.Info("transcription provider ready", map[string]interface{}{
		"provider": p.Name(),
		"api_key":  util.MaskSecret(key, 8),
	})
	return transcription.Instrument(p, metrics), nil
}

// newArchive returns the recording archive, or nil when storage is off.
func newArchive(cfg voicenote.ArchiveConfig, s storage.Storage) (*voicenote.Archive, error) {
	if s == nil {
		return nil, nil
	}
	var enc encryption.Encryptor
	if cfg.Encrypt {
		var err error
		if enc, err = encryption.FromConfig(cfg.Encryption); err != nil {
			return nil, fmt.Errorf("archive encryption: %w", err)
		}
	}
	return voicenote.NewArchive(s, enc, cfg.Prefix), nil
}

// newRepository returns the submission store selected by contact.store.
func newRepository(cfg contact.Config, db *database.DB, log *logger.Logger) (contact.Repository, error) {
	switch cfg.Store {
	case contact.StoreSupabase:
		return contact.NewSupabaseRepository(cfg.Supabase, log)
	case contact.StoreDatabase:
		if db == nil {
			return nil, fmt.Errorf("contact store %q needs a started database", cfg.Store)
		}
		return contact.NewGormRepository(db), nil
	default:
		return nil, fmt.Errorf("unknown contact store %q", cfg.Store)
	}
}
