// Package services – ReconcileService
//
// This file implements the completion reconciler, the write path fed by the
// voice provider's end-of-call webhook and by the manual process endpoint.
// It normalizes the loose payload, decides between generated and fallback
// feedback, and upserts the interview record keyed by call id so duplicate
// deliveries converge on a single row.
package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/mockvox/go-interview-backend/internal/domain"
	"github.com/mockvox/go-interview-backend/internal/repo"
	"github.com/mockvox/go-interview-backend/internal/webhook"
)

const (
	// minTranscriptChars is the trimmed length below which a transcript is
	// considered unusable for evaluation.
	minTranscriptChars = 5

	// maxTranscriptChars caps what is submitted to the feedback generator.
	maxTranscriptChars = 15000

	truncationMarker = "\n\n[Transcript truncated due to length]"
)

// Fixed feedback texts stored when generation is skipped or fails. A
// completed record always carries non-empty feedback.
const (
	// ShortTranscriptFeedback is stored without consulting the generator.
	ShortTranscriptFeedback = "We could not capture enough of the conversation to evaluate this interview. " +
		"This usually indicates a microphone or audio issue. Please check your audio settings and try another session."

	// FailedFeedback is stored when the generator returns an error.
	FailedFeedback = "Feedback could not be generated for this interview due to a temporary issue. " +
		"Your session was recorded. Please try another interview."
)

var (
	reconcileOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_reconcile_total",
		Help: "Reconciliation attempts by outcome.",
	}, []string{"outcome"})

	feedbackFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_feedback_fallback_total",
		Help: "Stored fallback feedback by reason.",
	}, []string{"reason"})
)

// ReconcileService applies end-of-call data to the interview store.
type ReconcileService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Gen produces narrative feedback from a transcript.
	Gen Generator
	// Provider is used by ProcessCall to fetch call documents on demand.
	Provider CallProvider
	// GenTimeout bounds a single feedback-generation attempt.
	GenTimeout time.Duration
}

// Generator is the feedback collaborator contract. It mirrors
// feedback.Generator so the service package does not import the provider
// implementations.
type Generator interface {
	Generate(ctx context.Context, transcript, jobRole string) (string, error)
}

// NewReconcileService constructs a ReconcileService with a default
// generation timeout.
func NewReconcileService(db *gorm.DB, gen Generator, p CallProvider) *ReconcileService {
	return &ReconcileService{DB: db, Gen: gen, Provider: p, GenTimeout: 60 * time.Second}
}

// Reconcile normalizes a raw webhook payload and folds it into the store.
// It returns the resulting record. Errors are storage-level only; feedback
// generation failures degrade to fallback text instead of failing the
// reconciliation.
func (s *ReconcileService) Reconcile(ctx context.Context, raw map[string]any) (*domain.Interview, error) {
	c, err := webhook.Normalize(raw)
	if err != nil {
		reconcileOutcomes.WithLabelValues("error").Inc()
		return nil, err
	}

	if c.GeneratedCallID {
		log.Warn().Str("call_id", c.CallID).Msg("payload carried no call id; record cannot be merge target")
	}

	fb := s.feedbackFor(ctx, c.Transcript, c.JobRole)

	rec, err := s.upsert(ctx, c, fb)
	if err != nil {
		reconcileOutcomes.WithLabelValues("error").Inc()
		return nil, err
	}
	return rec, nil
}

// ProcessCall fetches the provider's call document for callID and reconciles
// it as if it had arrived by webhook. userID and jobRole, when set, override
// whatever the document carries.
func (s *ReconcileService) ProcessCall(ctx context.Context, callID, userID, jobRole string) (*domain.Interview, error) {
	callID = strings.TrimSpace(callID)
	if callID == "" {
		return nil, ErrMissingCallID
	}

	doc, err := s.Provider.GetCall(ctx, callID)
	if err != nil {
		return nil, err
	}

	raw := map[string]any{"call": doc}
	if userID != "" {
		raw["userId"] = userID
	}
	if jobRole != "" {
		raw["jobRole"] = jobRole
	}
	return s.Reconcile(ctx, raw)
}

// feedbackFor applies the generation policy: transcripts too short to judge
// get a fixed message without touching the generator, oversized transcripts
// are truncated with a marker before submission, and generator failures
// degrade to a fixed message.
func (s *ReconcileService) feedbackFor(ctx context.Context, transcript, jobRole string) string {
	if len(strings.TrimSpace(transcript)) < minTranscriptChars {
		feedbackFallbacks.WithLabelValues("short_transcript").Inc()
		return ShortTranscriptFeedback
	}

	if len(transcript) > maxTranscriptChars {
		cut := maxTranscriptChars
		// Back off to a rune boundary so the prefix stays valid UTF-8.
		for cut > 0 && !utf8.RuneStart(transcript[cut]) {
			cut--
		}
		transcript = transcript[:cut] + truncationMarker
	}

	genCtx := ctx
	if s.GenTimeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, s.GenTimeout)
		defer cancel()
	}

	out, err := s.Gen.Generate(genCtx, transcript, jobRole)
	if err != nil {
		log.Error().Err(err).Str("job_role", jobRole).Msg("feedback generation failed")
		feedbackFallbacks.WithLabelValues("generation_failed").Inc()
		return FailedFeedback
	}
	return out
}

// upsert inserts or updates the record for c.CallID inside a transaction.
// A concurrent insert losing the unique-index race is retried as an update,
// so duplicate deliveries for one call converge on a single row.
func (s *ReconcileService) upsert(ctx context.Context, c webhook.Canonical, fb string) (*domain.Interview, error) {
	var out *domain.Interview
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := repo.GetInterviewByCallID(ctx, tx, c.CallID)
		switch {
		case err == nil:
			out = merge(existing, c, fb)
			reconcileOutcomes.WithLabelValues("updated").Inc()
			return repo.SaveInterview(ctx, tx, out)
		case errors.Is(err, repo.ErrNotFound):
			rec := newCompleted(c, fb)
			if err := repo.CreateInterview(ctx, tx, rec); err != nil {
				if errors.Is(err, repo.ErrDuplicateCallID) {
					existing, err := repo.GetInterviewByCallID(ctx, tx, c.CallID)
					if err != nil {
						return err
					}
					out = merge(existing, c, fb)
					reconcileOutcomes.WithLabelValues("updated").Inc()
					return repo.SaveInterview(ctx, tx, out)
				}
				return err
			}
			out = rec
			reconcileOutcomes.WithLabelValues("created").Inc()
			return nil
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// newCompleted builds a fresh completed record from normalized call data.
func newCompleted(c webhook.Canonical, fb string) *domain.Interview {
	started := c.StartedAt
	now := time.Now().UTC()
	return &domain.Interview{
		CallID:     c.CallID,
		UserID:     c.UserID,
		JobRole:    c.JobRole,
		Transcript: c.Transcript,
		Feedback:   fb,
		Status:     domain.StatusCompleted,
		Duration:   c.Duration,
		StartedAt:  &started,
		EndedAt:    &now,
	}
}

// merge folds call data into an existing record. Transcript and feedback are
// always taken from the incoming data. The stored user id survives when the
// incoming value is empty, a stored non-zero duration is never overwritten
// (the derived value only fills a missing one), and the stored role survives
// when the payload carried none and the label was defaulted.
func merge(rec *domain.Interview, c webhook.Canonical, fb string) *domain.Interview {
	if c.UserID != "" {
		rec.UserID = c.UserID
	}
	if rec.Duration == 0 {
		rec.Duration = c.Duration
	}
	if !c.DefaultedJobRole || rec.JobRole == "" {
		rec.JobRole = c.JobRole
	}
	rec.Transcript = c.Transcript
	rec.Feedback = fb
	rec.Status = domain.StatusCompleted
	if rec.StartedAt == nil {
		started := c.StartedAt
		rec.StartedAt = &started
	}
	now := time.Now().UTC()
	rec.EndedAt = &now
	return rec
}
