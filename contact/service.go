package contact

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/attribute"

	apperrors "github.com/kbukum/hvacform/errors"
	"github.com/kbukum/hvacform/logger"
	"github.com/kbukum/hvacform/observability"
	"github.com/kbukum/hvacform/validation"
)

// Submission outcomes recorded in metrics.
const (
	OutcomeStored  = "stored"
	OutcomeInvalid = "invalid"
	OutcomeFailed  = "failed"
)

// Service validates and stores contact form submissions.
type Service struct {
	repo    Repository
	metrics *observability.Metrics
	log     *logger.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics records submission outcomes on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the service logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Service) { s.log = l }
}

// NewService creates a Service backed by repo.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{repo: repo, log: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithComponent("contact")
	return s
}

// Submit validates req and stores it. The voice note, when present, is
// stored before the submission that references it. Storage failures are
// returned with the generic form error message.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (sub *Submission, err error) {
	req.Normalize()
	withVoiceNote := req.VoiceNote != ""

	ctx, span := observability.StartSpan(ctx, observability.SpanSubmission,
		attribute.Bool("voice_note", withVoiceNote),
		attribute.String("service_type", req.ServiceType),
	)
	defer func() { observability.EndSpan(span, err) }()

	if err = validation.Validate(req); err != nil {
		s.metrics.RecordSubmission(ctx, OutcomeInvalid, withVoiceNote)
		return nil, err
	}

	sub = req.Submission()
	if err = s.repo.Create(ctx, sub); err != nil {
		s.metrics.RecordSubmission(ctx, OutcomeFailed, withVoiceNote)
		s.log.WithContext(ctx).WithError(err).Error("Failed to store submission", map[string]interface{}{
			"voice_note": withVoiceNote,
		})
		appErr := apperrors.From(err)
		if appErr.HTTPStatus >= http.StatusInternalServerError {
			appErr = apperrors.New(appErr.Code, MsgSubmitFailed, appErr.HTTPStatus).WithCause(err)
		}
		return nil, appErr
	}

	s.metrics.RecordSubmission(ctx, OutcomeStored, withVoiceNote)
	fields := map[string]interface{}{
		"submission_id": sub.ID.String(),
		"service_type":  sub.ServiceType,
	}
	if sub.VoiceNoteID != nil {
		fields["voice_note_id"] = sub.VoiceNoteID.String()
	}
	s.log.WithContext(ctx).Info("Submission stored", fields)
	return sub, nil
}

// Get loads a stored submission by its id string.
func (s *Service) Get(ctx context.Context, id string) (*Submission, error) {
	uid, err := validation.ValidateUUID("id", id)
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, uid)
}
