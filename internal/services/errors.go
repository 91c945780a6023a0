// Package services defines the business logic for payment initiation and
// reconciliation. This file centralizes common service-level error values so
// that they can be consistently returned by service methods and checked by
// callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import "errors"

var (
	// ErrPaymentNotFound indicates that no ledger row exists for the given
	// reference. Reconciliation never creates rows: initiation must have
	// happened first, so an unknown reference is a hard failure.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrInvalidAmount is returned when an initiation request carries a
	// non-positive amount.
	ErrInvalidAmount = errors.New("amount must be greater than zero")

	// ErrInvalidContentType is returned when the content type is outside the
	// closed course/video/quiz/note set.
	ErrInvalidContentType = errors.New("unknown content type")

	// ErrInvalidEmail is returned when the buyer email required by the
	// gateway is missing or blank.
	ErrInvalidEmail = errors.New("email is required")

	// ErrUnsupportedEvent is returned for webhook events the reconciliation
	// engine does not act on. Handlers acknowledge these rather than failing,
	// so the gateway stops retrying.
	ErrUnsupportedEvent = errors.New("unsupported webhook event")
)
