// Package contact stores HVAC contact form submissions. A submission may
// carry the transcript of a voice note, which is saved as its own record
// first and linked from the submission.
package contact

import (
	"strings"

	"github.com/google/uuid"

	"github.com/kbukum/hvacform/database"
	"github.com/kbukum/hvacform/util"
)

// Service types offered on the form.
const (
	ServiceMaintenance  = "serwis"
	ServiceRepair       = "naprawa"
	ServiceInstallation = "montaz"
)

// User-facing messages.
const (
	MsgSubmitted    = "Dziękujemy za zgłoszenie! Wkrótce się skontaktujemy."
	MsgSubmitFailed = "Wystąpił błąd podczas wysyłania formularza. Spróbuj ponownie."
)

// VoiceNote is the stored transcript of a recording, with the archive key
// of the encrypted audio when it was kept.
type VoiceNote struct {
	database.BaseModel
	Transcription string  `gorm:"type:text;not null" json:"transcription"`
	AudioKey      *string `gorm:"size:512" json:"audio_key,omitempty"`
}

// TableName implements gorm's tabler.
func (VoiceNote) TableName() string { return "voice_notes" }

// Submission is one contact form entry.
type Submission struct {
	database.BaseModel
	Name        string     `gorm:"size:200;not null" json:"name"`
	Phone       string     `gorm:"size:32" json:"phone,omitempty"`
	Email       string     `gorm:"size:254" json:"email,omitempty"`
	Address     string     `gorm:"size:300" json:"address,omitempty"`
	City        string     `gorm:"size:100" json:"city,omitempty"`
	ServiceType string     `gorm:"size:16" json:"service_type,omitempty"`
	Description string     `gorm:"type:text" json:"description,omitempty"`
	VoiceNoteID *uuid.UUID `gorm:"type:char(36);index" json:"voice_note_id,omitempty"`
	VoiceNote   *VoiceNote `gorm:"foreignKey:VoiceNoteID" json:"voice_note,omitempty"`
}

// TableName implements gorm's tabler.
func (Submission) TableName() string { return "form_submissions" }

// SubmitRequest is the form as posted by the client. Empty optional fields
// are stored as empty.
type SubmitRequest struct {
	Name        string `json:"name" validate:"required,notblank,max=200"`
	Phone       string `json:"phone" validate:"omitempty,phone"`
	Email       string `json:"email" validate:"omitempty,email,max=254"`
	Address     string `json:"address" validate:"max=300"`
	City        string `json:"city" validate:"max=100"`
	ServiceType string `json:"service_type" validate:"omitempty,oneof=serwis naprawa montaz"`
	Description string `json:"description" validate:"max=5000"`
	// VoiceNote is the transcript of record from the recording widget.
	VoiceNote string `json:"voice_note" validate:"max=20000"`
	// AudioKey is the archive key returned when the recording was stopped.
	AudioKey string `json:"audio_key" validate:"max=512"`
}

// Normalize trims whitespace and strips control characters. Line breaks
// survive in the free-text fields.
func (r *SubmitRequest) Normalize() {
	for _, f := range []*string{
		&r.Name, &r.Phone, &r.Email, &r.Address, &r.City, &r.ServiceType, &r.AudioKey,
	} {
		*f = util.SanitizeString(*f)
	}
	r.Email = strings.ToLower(r.Email)
	r.Description = util.SanitizeMultiline(r.Description)
	r.VoiceNote = util.SanitizeMultiline(r.VoiceNote)
}

// Submission builds the record to store. A voice note is attached only
// when there is a transcript.
func (r *SubmitRequest) Submission() *Submission {
	sub := &Submission{
		Name:        r.Name,
		Phone:       r.Phone,
		Email:       r.Email,
		Address:     r.Address,
		City:        r.City,
		ServiceType: r.ServiceType,
		Description: r.Description,
	}
	if r.VoiceNote != "" {
		sub.VoiceNote = &VoiceNote{Transcription: r.VoiceNote}
		if r.AudioKey != "" {
			key := r.AudioKey
			sub.VoiceNote.AudioKey = &key
		}
	}
	return sub
}
