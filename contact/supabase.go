package contact

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/kbukum/hvacform/errors"
	"github.com/kbukum/hvacform/httpclient"
	"github.com/kbukum/hvacform/logger"
	"github.com/kbukum/hvacform/util"
)

// SupabaseConfig points at a Supabase project's PostgREST API.
type SupabaseConfig struct {
	// URL is the project URL, e.g. https://xyz.supabase.co.
	URL string `yaml:"url" mapstructure:"url"`
	// AnonKey is sent as both the apikey header and the bearer token.
	AnonKey string        `yaml:"anon_key" mapstructure:"anon_key"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// SupabaseRepository stores submissions in the form_submissions and
// voice_notes tables through PostgREST. The two inserts are not atomic; a
// failed submission insert leaves the voice note row behind.
type SupabaseRepository struct {
	client *httpclient.Client
	now    func() time.Time
}

var _ Repository = (*SupabaseRepository)(nil)

// NewSupabaseRepository creates a SupabaseRepository.
func NewSupabaseRepository(cfg SupabaseConfig, log *logger.Logger) (*SupabaseRepository, error) {
	if cfg.URL == "" || cfg.AnonKey == "" {
		return nil, fmt.Errorf("contact: supabase url and anon_key are required")
	}
	client, err := httpclient.New(httpclient.Config{
		BaseURL: strings.TrimRight(cfg.URL, "/") + "/rest/v1",
		Timeout: cfg.Timeout,
		Headers: map[string]string{"Accept": "application/json"},
		Auth: httpclient.CustomAuth(func(r *http.Request) {
			r.Header.Set("apikey", cfg.AnonKey)
			r.Header.Set("Authorization", "Bearer "+cfg.AnonKey)
		}),
	})
	if err != nil {
		return nil, err
	}
	log.Info("Supabase store configured", map[string]interface{}{
		"url":      cfg.URL,
		"anon_key": util.MaskSecret(cfg.AnonKey, 8),
	})
	return &SupabaseRepository{client: client, now: time.Now}, nil
}

type voiceNoteRow struct {
	ID            uuid.UUID `json:"id"`
	Transcription string    `json:"transcription"`
	AudioKey      *string   `json:"audio_key,omitempty"`
}

type submissionRow struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Phone       string     `json:"phone,omitempty"`
	Email       string     `json:"email,omitempty"`
	Address     string     `json:"address,omitempty"`
	City        string     `json:"city,omitempty"`
	ServiceType string     `json:"service_type,omitempty"`
	Description string     `json:"description,omitempty"`
	VoiceNoteID *uuid.UUID `json:"voice_note_id,omitempty"`
}

// Create implements Repository.
func (r *SupabaseRepository) Create(ctx context.Context, sub *Submission) error {
	if vn := sub.VoiceNote; vn != nil {
		if vn.ID == uuid.Nil {
			vn.ID = uuid.New()
		}
		var stored []VoiceNote
		row := voiceNoteRow{ID: vn.ID, Transcription: vn.Transcription, AudioKey: vn.AudioKey}
		if err := r.insert(ctx, "voice_notes", row, &stored); err != nil {
			return fmt.Errorf("save voice note: %w", err)
		}
		if len(stored) > 0 {
			vn.CreatedAt = stored[0].CreatedAt
		}
		id := vn.ID
		sub.VoiceNoteID = &id
	}

	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	var stored []Submission
	row := submissionRow{
		ID:          sub.ID,
		Name:        sub.Name,
		Phone:       sub.Phone,
		Email:       sub.Email,
		Address:     sub.Address,
		City:        sub.City,
		ServiceType: sub.ServiceType,
		Description: sub.Description,
		VoiceNoteID: sub.VoiceNoteID,
	}
	if err := r.insert(ctx, "form_submissions", row, &stored); err != nil {
		return fmt.Errorf("save submission: %w", err)
	}
	sub.CreatedAt = r.now()
	if len(stored) > 0 && !stored[0].CreatedAt.IsZero() {
		sub.CreatedAt = stored[0].CreatedAt
	}
	return nil
}

func (r *SupabaseRepository) insert(ctx context.Context, table string, row, out any) error {
	_, err := r.client.DoJSON(ctx, httpclient.Request{
		Method:  http.MethodPost,
		Path:    table,
		Headers: map[string]string{"Prefer": "return=representation"},
		Body:    row,
	}, out)
	return storeError(err)
}

// Get implements Repository.
func (r *SupabaseRepository) Get(ctx context.Context, id uuid.UUID) (*Submission, error) {
	var rows []Submission
	_, err := r.client.DoJSON(ctx, httpclient.Request{
		Method: http.MethodGet,
		Path:   "form_submissions",
		Query: map[string]string{
			"id":     "eq." + id.String(),
			"select": "*,voice_note:voice_notes(*)",
			"limit":  "1",
		},
	}, &rows)
	if err != nil {
		return nil, storeError(err)
	}
	if len(rows) == 0 {
		return nil, apperrors.NotFound("submission", id.String())
	}
	return &rows[0], nil
}

// storeError maps PostgREST failures. Conflicts and bad rows are client
// errors; everything else is an unavailable upstream.
func storeError(err error) error {
	if err == nil {
		return nil
	}
	e, ok := httpclient.AsError(err)
	if !ok {
		return apperrors.ExternalServiceError("supabase", err)
	}
	switch {
	case e.StatusCode == http.StatusConflict:
		return apperrors.Conflict("A submission with these details already exists.").WithCause(err)
	case e.Code == httpclient.ErrCodeNotFound:
		return apperrors.NotFound("table", "").WithCause(err)
	default:
		return apperrors.ExternalServiceError("supabase", err)
	}
}
