// Webhook HTTP handler.
//
// The voice provider delivers an end-of-call notification here. The provider
// retries non-2xx responses, so reconciliation failures are reported inside
// a 200 body rather than as an error status: a retry would re-run the same
// non-idempotent LLM call without improving the outcome. Only an unreadable
// request body earns a 400.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mockvox/go-interview-backend/internal/http/middleware"
)

// InterviewComplete handles POST /retell/interview-complete.
func (h *Handlers) InterviewComplete(c *gin.Context) {
	var raw map[string]any
	if err := c.ShouldBindJSON(&raw); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	rec, err := h.recon.Reconcile(c.Request.Context(), raw)
	if err != nil {
		lg := middleware.LoggerFrom(c)
		lg.Error().Err(err).Msg("webhook reconciliation failed")
		ok(c, http.StatusOK, gin.H{"success": false, "error": "failed to store interview"})
		return
	}

	ok(c, http.StatusOK, gin.H{"success": true, "interviewId": rec.ID})
}
