// Package retell is a minimal client for the Retell call-hosting provider.
// It covers the four operations this backend needs: creating a web call,
// provisioning a role-tailored agent, fetching a finished call, and hanging
// up a live call. All requests carry the account's bearer token and honor
// the caller's context; there are no retries, so a single failed attempt
// surfaces as an error and the caller decides how to degrade.
package retell

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	createWebCallPath = "/v2/create-web-call"
	createAgentPath   = "/create-agent"
	getCallPath       = "/v2/get-call/"
	hangUpPath        = "/v2/calls/"
)

// WebCall is the provider's response to a create-web-call request, reduced
// to the fields the frontend needs to join the session.
type WebCall struct {
	CallID      string `json:"call_id"`
	AccessToken string `json:"access_token"`
	AgentID     string `json:"agent_id"`
}

// Client talks to the Retell HTTP API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient builds a Client for the given base URL and API key. A zero
// timeout falls back to 15 seconds.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// CreateWebCall asks the provider to start a web voice session on agentID.
// The job role is passed both as a dynamic variable (consumed by the agent's
// prompt template) and as metadata (echoed back in webhooks).
func (c *Client) CreateWebCall(ctx context.Context, agentID, jobRole, userID string) (*WebCall, error) {
	body := map[string]any{
		"agent_id": agentID,
		"retell_llm_dynamic_variables": map[string]any{
			"job_role":       jobRole,
			"candidate_name": "Candidate",
		},
		"metadata": map[string]any{
			"jobRole": jobRole,
		},
	}
	if userID != "" {
		body["metadata"].(map[string]any)["userId"] = userID
	}

	var out WebCall
	if err := c.do(ctx, http.MethodPost, createWebCallPath, body, &out); err != nil {
		return nil, fmt.Errorf("create web call: %w", err)
	}
	if out.CallID == "" {
		return nil, fmt.Errorf("create web call: provider returned no call_id")
	}
	if out.AgentID == "" {
		out.AgentID = agentID
	}
	return &out, nil
}

// CreateAgent provisions a role-tailored interviewer agent: a prompt that
// embeds the role plus conservative speech-timing parameters. The returned
// agent id can be used for a single web call. Callers fall back to the
// pre-provisioned default agent when this fails.
func (c *Client) CreateAgent(ctx context.Context, jobRole string) (string, error) {
	body := map[string]any{
		"agent_name":               "interviewer-" + slug(jobRole),
		"voice_id":                 "11labs-Adrian",
		"language":                 "en-US",
		"responsiveness":           0.8,
		"interruption_sensitivity": 0.7,
		"enable_backchannel":       true,
		"general_prompt": fmt.Sprintf(
			"You are a professional interviewer conducting a voice-based mock interview for the role of %s. "+
				"Ask one question at a time, keep sentences short, and wait for the candidate to finish before continuing.",
			jobRole),
	}

	var out struct {
		AgentID string `json:"agent_id"`
	}
	if err := c.do(ctx, http.MethodPost, createAgentPath, body, &out); err != nil {
		return "", fmt.Errorf("create agent: %w", err)
	}
	if out.AgentID == "" {
		return "", fmt.Errorf("create agent: provider returned no agent_id")
	}
	return out.AgentID, nil
}

// GetCall fetches a call by id as a raw document. The result is handed to
// the webhook normalizer unchanged, so the manual reprocessing path and the
// webhook path share one extraction routine.
func (c *Client) GetCall(ctx context.Context, callID string) (map[string]any, error) {
	var out map[string]any
	if err := c.do(ctx, http.MethodGet, getCallPath+callID, nil, &out); err != nil {
		return nil, fmt.Errorf("get call %s: %w", callID, err)
	}
	return out, nil
}

// HangUp asks the provider to end a live call. Failures are expected when
// the call already ended; callers treat the outcome as best-effort.
func (c *Client) HangUp(ctx context.Context, callID string) error {
	if err := c.do(ctx, http.MethodDelete, hangUpPath+callID, nil, nil); err != nil {
		return fmt.Errorf("hang up call %s: %w", callID, err)
	}
	return nil
}

// do executes one authenticated request and decodes the JSON response into
// out when out is non-nil. Non-2xx statuses are returned as errors carrying
// a truncated response body for log context.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Debug().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Msg("retell request failed")
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(string(raw), 256))
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// slug lowers a role label into an agent-name friendly token.
func slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, s)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
