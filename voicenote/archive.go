package voicenote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/hvacform/audio"
	"github.com/kbukum/hvacform/encryption"
	"github.com/kbukum/hvacform/observability"
	"github.com/kbukum/hvacform/storage"
)

// DefaultArchivePrefix is the key prefix of archived recordings.
const DefaultArchivePrefix = "voice-notes"

// ErrCorruptArchive is returned by Load for a payload without a format header.
var ErrCorruptArchive = errors.New("voicenote: corrupt archived recording")

// Archive stores finished recordings, optionally encrypted. Keys have the
// form prefix/YYYY/MM/DD/<uuid>.<ext>[.enc]. The stored payload is the
// MIME format, a newline, then the audio bytes.
type Archive struct {
	store  *storage.ByteClient
	enc    encryption.Encryptor
	prefix string
	now    func() time.Time
}

// NewArchive creates an Archive over s. enc may be nil to store plaintext.
func NewArchive(s storage.Storage, enc encryption.Encryptor, prefix string) *Archive {
	if prefix == "" {
		prefix = DefaultArchivePrefix
	}
	return &Archive{store: storage.NewByteClient(s), enc: enc, prefix: prefix, now: time.Now}
}

// Save implements Archiver.
func (a *Archive) Save(ctx context.Context, blob audio.Blob) (key string, err error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanArchiveAudio,
		attribute.String("audio.format", blob.Format.String()),
		attribute.Int("audio.size_bytes", blob.Size()),
	)
	defer func() { observability.EndSpan(span, err) }()

	payload := make([]byte, 0, len(blob.Format)+1+blob.Size())
	payload = append(payload, blob.Format...)
	payload = append(payload, '\n')
	payload = append(payload, blob.Data...)

	key = path.Join(a.prefix, a.now().UTC().Format("2006/01/02"), uuid.NewString()+"."+blob.Format.Extension())
	if a.enc != nil {
		if payload, err = a.enc.Encrypt(payload); err != nil {
			return "", fmt.Errorf("encrypt recording: %w", err)
		}
		key += ".enc"
	}
	if err := a.store.Put(ctx, key, payload); err != nil {
		return "", fmt.Errorf("store recording %s: %w", key, err)
	}
	return key, nil
}

// Load reads back a recording stored by Save.
func (a *Archive) Load(ctx context.Context, key string) (audio.Blob, error) {
	payload, err := a.store.Get(ctx, key)
	if err != nil {
		return audio.Blob{}, err
	}
	if path.Ext(key) == ".enc" {
		if a.enc == nil {
			return audio.Blob{}, fmt.Errorf("recording %s is encrypted and no key is configured", key)
		}
		if payload, err = a.enc.Decrypt(payload); err != nil {
			return audio.Blob{}, fmt.Errorf("decrypt recording: %w", err)
		}
	}
	format, data, ok := bytes.Cut(payload, []byte{'\n'})
	if !ok {
		return audio.Blob{}, ErrCorruptArchive
	}
	return audio.Blob{Format: audio.Format(format), Data: data}, nil
}
