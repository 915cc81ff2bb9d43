package voicenote

import (
	"fmt"
	"time"

	"github.com/kbukum/hvacform/audio"
	"github.com/kbukum/hvacform/encryption"
	"github.com/kbukum/hvacform/util"
)

// Config configures recording gates, browser sessions and the archive.
type Config struct {
	// MinDuration is the shortest accepted recording (default 1s).
	MinDuration time.Duration `yaml:"min_duration" mapstructure:"min_duration"`
	// MinBytes is the smallest accepted encoded size (default 1000).
	MinBytes int `yaml:"min_bytes" mapstructure:"min_bytes"`
	// Timeslice is the fragment interval suggested to clients (default 250ms).
	Timeslice time.Duration `yaml:"timeslice" mapstructure:"timeslice"`
	// MaxSessions caps concurrently open browser sessions (default 100).
	MaxSessions int `yaml:"max_sessions" mapstructure:"max_sessions"`
	// SessionTTL is how long an idle session survives (default 15m).
	SessionTTL time.Duration `yaml:"session_ttl" mapstructure:"session_ttl"`
	// MaxFragmentSize bounds one pushed fragment (default "2MB").
	MaxFragmentSize string `yaml:"max_fragment_size" mapstructure:"max_fragment_size"`
	// MaxRecordingSize bounds an uploaded blob (default "25MB").
	MaxRecordingSize string `yaml:"max_recording_size" mapstructure:"max_recording_size"`
	// Archive stores transcribed recordings when storage is enabled.
	Archive ArchiveConfig `yaml:"archive" mapstructure:"archive"`
}

// ArchiveConfig configures recording archival.
type ArchiveConfig struct {
	Prefix string `yaml:"prefix" mapstructure:"prefix"`
	// Encrypt seals recordings with Encryption before storing them.
	Encrypt    bool              `yaml:"encrypt" mapstructure:"encrypt"`
	Encryption encryption.Config `yaml:"encryption" mapstructure:"encryption"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.MinDuration == 0 {
		c.MinDuration = DefaultMinDuration
	}
	if c.MinBytes == 0 {
		c.MinBytes = DefaultMinBytes
	}
	if c.Timeslice == 0 {
		c.Timeslice = audio.DefaultTimeslice
	}
	if c.MaxSessions == 0 {
		c.MaxSessions = 100
	}
	if c.SessionTTL == 0 {
		c.SessionTTL = 15 * time.Minute
	}
	if c.MaxFragmentSize == "" {
		c.MaxFragmentSize = "2MB"
	}
	if c.MaxRecordingSize == "" {
		c.MaxRecordingSize = "25MB"
	}
	if c.Archive.Prefix == "" {
		c.Archive.Prefix = DefaultArchivePrefix
	}
	c.Archive.Encryption.ApplyDefaults()
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.MinDuration < 0 {
		return fmt.Errorf("voicenote.min_duration must be non-negative (got: %s)", c.MinDuration)
	}
	if c.MinBytes < 0 {
		return fmt.Errorf("voicenote.min_bytes must be non-negative (got: %d)", c.MinBytes)
	}
	if c.MaxSessions < 1 {
		return fmt.Errorf("voicenote.max_sessions must be positive (got: %d)", c.MaxSessions)
	}
	if c.SessionTTL < time.Second {
		return fmt.Errorf("voicenote.session_ttl must be at least 1s (got: %s)", c.SessionTTL)
	}
	if c.Archive.Encrypt {
		if err := c.Archive.Encryption.Validate(); err != nil {
			return fmt.Errorf("voicenote.archive: %w", err)
		}
	}
	return nil
}

// FragmentLimit returns MaxFragmentSize in bytes.
func (c *Config) FragmentLimit() int64 {
	return util.ParseSize(c.MaxFragmentSize, 2<<20)
}

// RecordingLimit returns MaxRecordingSize in bytes.
func (c *Config) RecordingLimit() int64 {
	return util.ParseSize(c.MaxRecordingSize, 25<<20)
}
