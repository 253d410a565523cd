// Package services – InterviewService
//
// This file implements the InterviewService, which manages the lifecycle of
// interview sessions outside of webhook delivery: starting a web call with
// the voice provider, exposing the most recent result, and the admin surface
// (stats, listing, forced termination).
//
// Service-level errors (e.g., ErrInterviewNotFound) are returned for
// predictable cases so handlers can map them to HTTP results consistently.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/mockvox/go-interview-backend/internal/domain"
	"github.com/mockvox/go-interview-backend/internal/repo"
	"github.com/mockvox/go-interview-backend/internal/retell"
	"github.com/mockvox/go-interview-backend/internal/webhook"
)

// CallProvider defines the voice-provider contract required by the interview
// services. The production implementation is retell.Client.
type CallProvider interface {
	// CreateWebCall registers a browser-joinable call for the given agent.
	CreateWebCall(ctx context.Context, agentID, jobRole, userID string) (*retell.WebCall, error)

	// CreateAgent provisions a role-specific interviewer agent.
	CreateAgent(ctx context.Context, jobRole string) (string, error)

	// GetCall fetches the provider's current call document.
	GetCall(ctx context.Context, callID string) (map[string]any, error)

	// HangUp asks the provider to end a live call. Best effort.
	HangUp(ctx context.Context, callID string) error
}

// StartedInterview is the result of starting a new web call.
type StartedInterview struct {
	InterviewID string
	CallID      string
	AccessToken string
	AgentID     string
}

// Stats summarizes the interview store for the admin surface.
type Stats struct {
	Total      int64 `json:"total"`
	Started    int64 `json:"started"`
	Completed  int64 `json:"completed"`
	Terminated int64 `json:"terminated"`
}

// TerminationResult reports the outcome of a forced termination. HungUp is
// false when the provider-side hangup failed; the local record still moves
// to terminated.
type TerminationResult struct {
	InterviewID string
	HungUp      bool
}

// InterviewService coordinates call creation and session queries.
type InterviewService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Provider is the voice-call provider client.
	Provider CallProvider
	// DefaultAgentID is used when a role-specific agent cannot be created.
	DefaultAgentID string
}

// NewInterviewService constructs an InterviewService.
func NewInterviewService(db *gorm.DB, p CallProvider, defaultAgentID string) *InterviewService {
	return &InterviewService{DB: db, Provider: p, DefaultAgentID: defaultAgentID}
}

// Start normalizes the requested role, provisions an interviewer agent, and
// registers a web call. A placeholder record in the started state is stored
// so the session is visible before the completion webhook arrives.
//
// Agent creation failures are logged and fall back to the default agent; the
// call itself must succeed.
func (s *InterviewService) Start(ctx context.Context, jobRole, userID string) (*StartedInterview, error) {
	jobRole = NormalizeRole(jobRole)

	agentID, err := s.Provider.CreateAgent(ctx, jobRole)
	if err != nil {
		log.Warn().Err(err).Str("job_role", jobRole).Msg("agent creation failed, using default agent")
		agentID = s.DefaultAgentID
	}

	call, err := s.Provider.CreateWebCall(ctx, agentID, jobRole, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rec := &domain.Interview{
		CallID:    call.CallID,
		UserID:    userID,
		JobRole:   jobRole,
		Status:    domain.StatusStarted,
		StartedAt: &now,
	}
	if err := repo.CreateInterview(ctx, s.DB, rec); err != nil {
		// The call is already live; losing the placeholder is recoverable
		// because reconciliation upserts by call id.
		log.Error().Err(err).Str("call_id", call.CallID).Msg("failed to store started interview")
	}

	return &StartedInterview{
		InterviewID: rec.ID,
		CallID:      call.CallID,
		AccessToken: call.AccessToken,
		AgentID:     agentID,
	}, nil
}

// Latest returns the most recently created interview.
func (s *InterviewService) Latest(ctx context.Context) (*domain.Interview, error) {
	rec, err := repo.LatestInterview(ctx, s.DB)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrInterviewNotFound
		}
		return nil, err
	}
	return rec, nil
}

// ListPage returns a page of interviews ordered newest first, plus the total
// count. It applies defaults for invalid page/pageSize.
func (s *InterviewService) ListPage(ctx context.Context, page, pageSize int) ([]domain.Interview, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountInterviews(ctx, s.DB, "")
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Interview{}, 0, nil
	}

	items, err := repo.ListInterviewsPage(ctx, s.DB, offset, pageSize)
	return items, total, err
}

// Stats counts interviews per status.
func (s *InterviewService) Stats(ctx context.Context) (*Stats, error) {
	var out Stats
	var err error
	if out.Total, err = repo.CountInterviews(ctx, s.DB, ""); err != nil {
		return nil, err
	}
	if out.Started, err = repo.CountInterviews(ctx, s.DB, domain.StatusStarted); err != nil {
		return nil, err
	}
	if out.Completed, err = repo.CountInterviews(ctx, s.DB, domain.StatusCompleted); err != nil {
		return nil, err
	}
	if out.Terminated, err = repo.CountInterviews(ctx, s.DB, domain.StatusTerminated); err != nil {
		return nil, err
	}
	return &out, nil
}

// Terminate force-ends an interview in two phases: a best-effort hangup at
// the provider, then an unconditional local transition to terminated. The
// hangup outcome is reported but never blocks the local transition.
func (s *InterviewService) Terminate(ctx context.Context, id string) (*TerminationResult, error) {
	rec, err := repo.GetInterview(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrInterviewNotFound
		}
		return nil, err
	}

	res := &TerminationResult{InterviewID: rec.ID, HungUp: true}
	if err := s.Provider.HangUp(ctx, rec.CallID); err != nil {
		log.Warn().Err(err).Str("call_id", rec.CallID).Msg("provider hangup failed")
		res.HungUp = false
	}

	if err := repo.MarkTerminated(ctx, s.DB, rec.ID, time.Now().UTC()); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrInterviewNotFound
		}
		return nil, err
	}
	return res, nil
}

// NormalizeRole trims and title-cases a requested role, collapsing internal
// whitespace. Blank input falls back to the default role.
func NormalizeRole(role string) string {
	role = roleWhitespaceRE.ReplaceAllString(strings.TrimSpace(role), " ")
	if role == "" {
		return webhook.DefaultJobRole
	}
	return cases.Title(language.English).String(role)
}

var roleWhitespaceRE = regexp.MustCompile(`\s+`)
