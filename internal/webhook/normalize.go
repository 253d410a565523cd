// Package webhook turns the call provider's end-of-call notification into a
// canonical record. The payload shape changed several times across provider
// iterations: newer notifications nest the call data under a "call" object
// while older ones are flat, field names moved between snake_case and
// camelCase, and the job role migrated into the provider's dynamic-variables
// bag. Rather than modeling each historical shape as a typed variant, the
// package decodes the payload loosely and resolves every field through an
// explicit first-match-wins precedence chain.
//
// Normalize is pure apart from the clock: it performs no I/O and carries no
// state, so each precedence branch is unit-testable on its own.
package webhook

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// DefaultJobRole is used when no source in the payload carries a role label.
const DefaultJobRole = "Software Engineer"

// generatedCallIDPrefix marks locally minted call ids. Records stored under a
// generated id can never be merge targets for a later notification.
const generatedCallIDPrefix = "call_"

// timeNow is a test seam for the clock used by the fallback id and startedAt.
var timeNow = time.Now

// Canonical is the normalized view of an end-of-call notification.
type Canonical struct {
	CallID     string
	UserID     string
	JobRole    string
	Transcript string
	Duration   int // seconds
	StartedAt  time.Time

	// GeneratedCallID reports that the provider supplied no call id and
	// CallID was minted locally (non-idempotent path).
	GeneratedCallID bool

	// DefaultedJobRole reports that no source in the payload carried a role
	// and JobRole holds DefaultJobRole. The reconciler uses it to avoid
	// clobbering a role already stored on the record.
	DefaultedJobRole bool
}

// envelope covers the top-level payload. Manual trigger paths put jobRole and
// userId beside the call data; provider webhooks wrap the call in an event
// envelope.
type envelope struct {
	Event   string         `mapstructure:"event"`
	JobRole string         `mapstructure:"jobRole"`
	UserID  string         `mapstructure:"userId"`
	Call    map[string]any `mapstructure:"call"`
}

// callFields covers every field name any payload iteration has used for the
// call data. Numeric fields decode weakly so values survive the provider's
// occasional number-as-string drift.
type callFields struct {
	Transcript     string  `mapstructure:"transcript"`
	TranscriptText string  `mapstructure:"transcript_text"`
	CallIDSnake    string  `mapstructure:"call_id"`
	CallIDCamel    string  `mapstructure:"callId"`
	JobRoleCamel   string  `mapstructure:"jobRole"`
	JobRoleSnake   string  `mapstructure:"job_role"`
	UserID         string  `mapstructure:"userId"`
	CallDuration   float64 `mapstructure:"call_duration"`
	Duration       float64 `mapstructure:"duration"`
	StartTimestamp float64 `mapstructure:"start_timestamp"`
	EndTimestamp   float64 `mapstructure:"end_timestamp"`

	DynamicVariables struct {
		JobRole string `mapstructure:"job_role"`
	} `mapstructure:"retell_llm_dynamic_variables"`
}

// Normalize resolves a raw notification payload into a Canonical record.
//
// The call data is payload["call"] when that key holds an object, otherwise
// the payload itself. Per-field precedence (first non-empty wins):
//
//	transcript: call.transcript, call.transcript_text, ""
//	callId:     call.call_id, call.callId, generated "call_<epoch-millis>"
//	jobRole:    payload.jobRole, call.jobRole,
//	            call.retell_llm_dynamic_variables.job_role, call.job_role,
//	            DefaultJobRole (flags DefaultedJobRole)
//	userId:     payload.userId, call.userId, ""
//	duration:   call.call_duration, call.duration,
//	            end_timestamp-start_timestamp when both present, 0
//	startedAt:  call.start_timestamp (epoch seconds), else now
func Normalize(raw map[string]any) (Canonical, error) {
	var env envelope
	if err := decodeWeak(raw, &env); err != nil {
		return Canonical{}, fmt.Errorf("decode payload envelope: %w", err)
	}

	callData := raw
	if env.Call != nil {
		callData = env.Call
	}

	var call callFields
	if err := decodeWeak(callData, &call); err != nil {
		return Canonical{}, fmt.Errorf("decode call data: %w", err)
	}

	now := timeNow().UTC()

	c := Canonical{
		Transcript: firstNonEmpty(call.Transcript, call.TranscriptText),
		UserID:     strings.TrimSpace(firstNonEmpty(env.UserID, call.UserID)),
		JobRole: firstNonEmpty(
			strings.TrimSpace(env.JobRole),
			strings.TrimSpace(call.JobRoleCamel),
			strings.TrimSpace(call.DynamicVariables.JobRole),
			strings.TrimSpace(call.JobRoleSnake),
		),
	}
	if c.JobRole == "" {
		c.JobRole = DefaultJobRole
		c.DefaultedJobRole = true
	}

	c.CallID = strings.TrimSpace(firstNonEmpty(call.CallIDSnake, call.CallIDCamel))
	if c.CallID == "" {
		c.CallID = fmt.Sprintf("%s%d", generatedCallIDPrefix, now.UnixMilli())
		c.GeneratedCallID = true
	}

	switch {
	case call.CallDuration > 0:
		c.Duration = int(call.CallDuration)
	case call.Duration > 0:
		c.Duration = int(call.Duration)
	case call.StartTimestamp > 0 && call.EndTimestamp > 0:
		c.Duration = int(call.EndTimestamp - call.StartTimestamp)
	}
	if c.Duration < 0 {
		c.Duration = 0
	}

	if call.StartTimestamp > 0 {
		c.StartedAt = time.Unix(int64(call.StartTimestamp), 0).UTC()
	} else {
		c.StartedAt = now
	}

	return c, nil
}

// decodeWeak maps a loose payload onto dst, tolerating type drift
// (numbers arriving as strings, ints as floats).
func decodeWeak(src map[string]any, dst any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           dst,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(src)
}

// firstNonEmpty returns the first value whose trimmed form is non-empty.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
