package contact

import (
	"fmt"
	"time"
)

// Store backends.
const (
	StoreDatabase = "database"
	StoreSupabase = "supabase"
)

// Config selects where submissions are stored.
type Config struct {
	// Store is "database" (GORM) or "supabase" (PostgREST).
	Store    string         `yaml:"store" mapstructure:"store"`
	Supabase SupabaseConfig `yaml:"supabase" mapstructure:"supabase"`
}

// ApplyDefaults sets defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Store == "" {
		c.Store = StoreDatabase
	}
	if c.Supabase.Timeout <= 0 {
		c.Supabase.Timeout = 15 * time.Second
	}
}

// Validate checks the selected store is configured.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreDatabase:
		return nil
	case StoreSupabase:
		if c.Supabase.URL == "" || c.Supabase.AnonKey == "" {
			return fmt.Errorf("contact.supabase.url and contact.supabase.anon_key are required for the supabase store")
		}
		return nil
	default:
		return fmt.Errorf("contact.store must be %q or %q, got %q", StoreDatabase, StoreSupabase, c.Store)
	}
}
