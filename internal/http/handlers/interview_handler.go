// Interview HTTP handlers.
//
// This file exposes the public REST endpoints for interview sessions:
//   - POST /create-interview     (start a web call with the voice provider)
//   - POST /process-interview    (fetch a call by id and reconcile it)
//   - GET  /interviews/latest    (most recent interview result)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mockvox/go-interview-backend/internal/domain"
	"github.com/mockvox/go-interview-backend/internal/services"
	"github.com/mockvox/go-interview-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// InterviewService defines session lifecycle operations consumed by HTTP
// handlers. Implementations should be safe for concurrent use and must honor
// the provided context for cancellation and timeouts.
type InterviewService interface {
	// Start provisions an agent and registers a web call for jobRole.
	Start(ctx context.Context, jobRole, userID string) (*services.StartedInterview, error)
	// Latest returns the most recently created interview.
	Latest(ctx context.Context) (*domain.Interview, error)
	// ListPage returns a page of interviews and the total count.
	ListPage(ctx context.Context, page, pageSize int) ([]domain.Interview, int64, error)
	// Stats counts interviews per status.
	Stats(ctx context.Context) (*services.Stats, error)
	// Terminate force-ends an interview.
	Terminate(ctx context.Context, id string) (*services.TerminationResult, error)
}

// Reconciler applies end-of-call data to the interview store.
type Reconciler interface {
	// Reconcile folds a raw webhook payload into the store.
	Reconcile(ctx context.Context, raw map[string]any) (*domain.Interview, error)
	// ProcessCall fetches a call document by id and reconciles it.
	ProcessCall(ctx context.Context, callID, userID, jobRole string) (*domain.Interview, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for interviews and webhook delivery.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	ivSvc InterviewService
	recon Reconciler
}

// New constructs and returns a Handlers instance bound to the given services.
func New(ivSvc InterviewService, recon Reconciler) *Handlers {
	return &Handlers{ivSvc: ivSvc, recon: recon}
}

//
// DTOs
//

// CreateInterviewRequest is the JSON payload for starting an interview.
type CreateInterviewRequest struct {
	// JobRole conditions the interviewer agent. Required.
	JobRole string `json:"jobRole"`
	// UserID optionally associates the session with a user.
	UserID string `json:"userId"`
}

// CreateInterviewResponse carries the credentials the browser needs to join
// the call.
type CreateInterviewResponse struct {
	Success     bool   `json:"success"`
	CallID      string `json:"callId"`
	AccessToken string `json:"accessToken"`
	AgentID     string `json:"agentId"`
}

// ProcessInterviewRequest asks the server to fetch and reconcile a call.
type ProcessInterviewRequest struct {
	CallID  string `json:"callId"`
	UserID  string `json:"userId"`
	JobRole string `json:"jobRole"`
}

// LatestInterviewResponse is the trimmed view of the most recent result.
type LatestInterviewResponse struct {
	JobRole   string `json:"jobRole"`
	Feedback  string `json:"feedback"`
	Duration  int    `json:"duration"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

//
// Handlers
//

// CreateInterview starts a new interview session: it provisions a
// role-specific agent, registers a web call, and returns the join
// credentials.
func (h *Handlers) CreateInterview(c *gin.Context) {
	var req CreateInterviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.JobRole) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "jobRole is required")
		return
	}

	out, err := h.ivSvc.Start(c.Request.Context(), req.JobRole, strings.TrimSpace(req.UserID))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, "failed to create interview")
		return
	}
	ok(c, http.StatusOK, CreateInterviewResponse{
		Success:     true,
		CallID:      out.CallID,
		AccessToken: out.AccessToken,
		AgentID:     out.AgentID,
	})
}

// ProcessInterview fetches the provider's call document for the given call
// id and reconciles it, for clients that want the result without waiting for
// webhook delivery.
func (h *Handlers) ProcessInterview(c *gin.Context) {
	var req ProcessInterviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.CallID) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "callId is required")
		return
	}

	rec, err := h.recon.ProcessCall(c.Request.Context(), req.CallID, strings.TrimSpace(req.UserID), req.JobRole)
	if err != nil {
		if errors.Is(err, services.ErrMissingCallID) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "callId is required")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeProcessFailed, "failed to process interview")
		return
	}
	ok(c, http.StatusOK, gin.H{
		"success":     true,
		"interviewId": rec.ID,
		"feedback":    rec.Feedback,
	})
}

// LatestInterview returns the most recent interview result, or 404 when the
// store is empty.
func (h *Handlers) LatestInterview(c *gin.Context) {
	rec, err := h.ivSvc.Latest(c.Request.Context())
	if err != nil {
		if errors.Is(err, services.ErrInterviewNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "no interviews yet")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to load interview")
		return
	}
	ok(c, http.StatusOK, LatestInterviewResponse{
		JobRole:   rec.JobRole,
		Feedback:  rec.Feedback,
		Duration:  rec.Duration,
		Status:    rec.Status,
		CreatedAt: rec.CreatedAt.UTC().Format(time.RFC3339),
	})
}
