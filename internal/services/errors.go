// Package services defines the business logic for interview sessions,
// webhook reconciliation, and feedback generation. This file centralizes
// common service-level error values so that they can be consistently
// returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler layer.
package services

import "errors"

// Interview-related errors.
var (
	// ErrInterviewNotFound indicates that the requested interview does not
	// exist.
	ErrInterviewNotFound = errors.New("interview not found")

	// ErrMissingCallID is returned when a reconcile-by-call request does not
	// carry a provider call identifier.
	ErrMissingCallID = errors.New("call id is required")
)
