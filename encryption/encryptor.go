// Package encryption seals binary payloads, such as archived voice notes,
// with an AEAD cipher keyed from a passphrase.
package encryption

import (
	"fmt"
	"strings"
)

// Encryptor seals and opens byte payloads.
type Encryptor interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// Algorithm represents supported encryption algorithms.
type Algorithm string

const (
	// AlgorithmChaCha20 is ChaCha20-Poly1305 (default).
	AlgorithmChaCha20 Algorithm = "chacha20-poly1305"

	// AlgorithmAESGCM is AES-256-GCM.
	AlgorithmAESGCM Algorithm = "aes-256-gcm"
)

// Config selects the algorithm and key.
type Config struct {
	Algorithm Algorithm `yaml:"algorithm" mapstructure:"algorithm"`
	Key       string    `yaml:"key" mapstructure:"key"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.Algorithm == "" {
		c.Algorithm = AlgorithmChaCha20
	}
	c.Algorithm = Algorithm(strings.ToLower(string(c.Algorithm)))
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Key == "" {
		return fmt.Errorf("encryption.key is required")
	}
	switch c.Algorithm {
	case AlgorithmChaCha20, AlgorithmAESGCM:
		return nil
	default:
		return fmt.Errorf("encryption.algorithm %q is not supported", c.Algorithm)
	}
}

// Option configures the encryption service.
type Option func(*options)

type options struct {
	algorithm Algorithm
}

// WithAlgorithm selects the encryption algorithm (default: ChaCha20-Poly1305).
func WithAlgorithm(alg Algorithm) Option {
	return func(o *options) { o.algorithm = alg }
}

// New creates an Encryptor with the given key and options.
// The key is hashed to the required length for the chosen algorithm.
func New(key string, opts ...Option) (Encryptor, error) {
	o := &options{algorithm: AlgorithmChaCha20}
	for _, opt := range opts {
		opt(o)
	}

	switch o.algorithm {
	case AlgorithmChaCha20:
		return NewChaCha20(key)
	case AlgorithmAESGCM:
		return NewAESGCM(key)
	default:
		return nil, fmt.Errorf("encryption: unsupported algorithm %q", o.algorithm)
	}
}

// FromConfig creates an Encryptor from cfg.
func FromConfig(cfg Config) (Encryptor, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return New(cfg.Key, WithAlgorithm(cfg.Algorithm))
}
