package contact

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kbukum/hvacform/database"
)

// Repository persists submissions.
type Repository interface {
	// Create stores sub. When sub.VoiceNote is set it is stored first and
	// sub.VoiceNoteID is linked to it. IDs are filled in on success.
	Create(ctx context.Context, sub *Submission) error
	// Get loads a submission with its voice note.
	Get(ctx context.Context, id uuid.UUID) (*Submission, error)
}

// GormRepository stores submissions through GORM in one transaction.
type GormRepository struct {
	db *database.DB
}

// NewGormRepository creates a GormRepository.
func NewGormRepository(db *database.DB) *GormRepository {
	return &GormRepository{db: db}
}

// Models lists the tables GormRepository needs migrated.
func Models() []interface{} {
	return []interface{}{&VoiceNote{}, &Submission{}}
}

var _ Repository = (*GormRepository)(nil)

// Create implements Repository.
func (r *GormRepository) Create(ctx context.Context, sub *Submission) error {
	err := r.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		if sub.VoiceNote != nil {
			if err := tx.Create(sub.VoiceNote).Error; err != nil {
				return fmt.Errorf("save voice note: %w", err)
			}
			id := sub.VoiceNote.ID
			sub.VoiceNoteID = &id
		}
		if err := tx.Omit("VoiceNote").Create(sub).Error; err != nil {
			return fmt.Errorf("save submission: %w", err)
		}
		return nil
	})
	if err != nil {
		return database.FromDatabase(err, "submission")
	}
	return nil
}

// Get implements Repository.
func (r *GormRepository) Get(ctx context.Context, id uuid.UUID) (*Submission, error) {
	var sub Submission
	err := r.db.WithContext(ctx).Preload("VoiceNote").First(&sub, "id = ?", id).Error
	if err != nil {
		if database.IsNotFoundError(err) {
			return nil, database.FromDatabase(err, "submission").WithDetail("id", id.String())
		}
		return nil, database.FromDatabase(err, "submission")
	}
	return &sub, nil
}
