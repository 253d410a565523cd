// Admin HTTP handlers.
//
// These endpoints sit behind bearer-token auth (see middleware.AdminAuth):
//   - GET    /admin/stats             (counts per status)
//   - GET    /admin/interviews        (paginated listing, newest first)
//   - DELETE /admin/interviews/:id    (force-terminate a session)
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mockvox/go-interview-backend/internal/domain"
	"github.com/mockvox/go-interview-backend/internal/services"
)

// ListInterviewsResponse wraps a page of interviews and pagination metadata.
type ListInterviewsResponse struct {
	Interviews []domain.Interview `json:"interviews"`
	Pagination Pagination         `json:"pagination"`
}

// AdminStats returns interview counts per status.
func (h *Handlers) AdminStats(c *gin.Context) {
	stats, err := h.ivSvc.Stats(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeStatsFailed, "failed to compute stats")
		return
	}
	ok(c, http.StatusOK, stats)
}

// AdminListInterviews returns a page of interviews, newest first.
func (h *Handlers) AdminListInterviews(c *gin.Context) {
	page, pageSize := clampPagination(c)

	items, total, err := h.ivSvc.ListPage(c.Request.Context(), page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "failed to list interviews")
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListInterviewsResponse{
		Interviews: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// AdminTerminateInterview force-ends a session. The provider-side hangup is
// best effort; the local record always moves to terminated when found.
func (h *Handlers) AdminTerminateInterview(c *gin.Context) {
	res, err := h.ivSvc.Terminate(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrInterviewNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "interview not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeTerminateFailed, "failed to terminate interview")
		return
	}
	ok(c, http.StatusOK, gin.H{
		"success":     true,
		"interviewId": res.InterviewID,
		"hungUp":      res.HungUp,
	})
}
