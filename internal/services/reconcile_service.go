// Package services – ReconcileService
//
// This file implements the reconciliation engine: the single code path that
// converges a ledger row on the gateway's authoritative outcome, no matter
// which trigger reports it first or how many times it is reported.
//
// Two triggers exist and deliberately share one finalize procedure:
//   - the verify path (client calls back after checkout, we query the gateway
//     synchronously), and
//   - the webhook path (the gateway pushes an already-authenticated event).
//
// The procedure is: resolve gateway truth, then attempt the conditional
// finalize on the ledger. First writer wins the terminal transition; every
// other attempt observes the winner's result as a no-op. The entitlement is
// granted only by the call that actually performed the pending→completed
// transition, and the grant itself is an idempotent upsert, so at-least-once
// invocation can never mint a second enrollment.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/coursehub/go-payments-backend/internal/domain"
	"github.com/coursehub/go-payments-backend/internal/gateway"
	"github.com/coursehub/go-payments-backend/internal/repo"
)

// Reconciliation trigger labels for metrics.
const (
	triggerVerify  = "verify"
	triggerWebhook = "webhook"
)

// ReconcileService converges ledger state with gateway truth and grants
// entitlements exactly once per completed payment.
type ReconcileService struct {
	// DB is the GORM handle used for ledger and enrollment persistence.
	DB *gorm.DB
	// Gateway is the payment gateway client used by the verify path.
	Gateway GatewayClient
}

// VerifyOutcome is what the verify endpoint returns to the client.
type VerifyOutcome struct {
	// Success mirrors the gateway's view: true only for a successful charge.
	Success bool
	// Payment is the ledger row after reconciliation.
	Payment *domain.Payment
}

// VerifyPayment is the client-initiated reconciliation trigger. It checks
// that the reference was actually initiated, queries the gateway for the
// authoritative outcome, and funnels into the shared finalize procedure.
//
// Errors:
//   - ErrPaymentNotFound when the reference was never initiated (the ledger
//     is consulted before the gateway, so forged references never cause an
//     outbound call).
//   - gateway.ErrUnavailable / gateway.ErrRejected pass through for the
//     handler to translate (retryable vs. terminal).
func (s *ReconcileService) VerifyPayment(ctx context.Context, reference string) (*VerifyOutcome, error) {
	if _, err := repo.GetPaymentByReference(ctx, s.DB, reference); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}

	res, err := s.Gateway.Verify(ctx, reference)
	if err != nil {
		return nil, err
	}

	status := domain.PaymentFailed
	if res.Success {
		status = domain.PaymentCompleted
	}

	p, err := s.finalize(ctx, reference, status, string(res.RawPayload), triggerVerify)
	if err != nil {
		return nil, err
	}
	return &VerifyOutcome{Success: p.Status == domain.PaymentCompleted, Payment: p}, nil
}

// ProcessWebhook is the gateway-initiated reconciliation trigger. The caller
// has already authenticated the event by its signature, so the payload is
// trusted as gateway truth and no live verify call is made.
//
// Only charge.success events finalize a payment; every other event name
// returns ErrUnsupportedEvent, which the handler acknowledges rather than
// failing so the gateway stops retrying.
func (s *ReconcileService) ProcessWebhook(ctx context.Context, ev *gateway.WebhookEvent) (*domain.Payment, error) {
	if ev.Event != gateway.EventChargeSuccess {
		return nil, ErrUnsupportedEvent
	}
	return s.finalize(ctx, ev.Reference, domain.PaymentCompleted, string(ev.RawData), triggerWebhook)
}

// finalize is the shared terminal-transition procedure for both triggers.
// It attempts the atomic conditional update on the ledger and, only when this
// call performed the pending→completed transition of a course purchase,
// invokes the entitlement grantor.
func (s *ReconcileService) finalize(ctx context.Context, reference string, status domain.PaymentStatus, rawPayload, trigger string) (*domain.Payment, error) {
	p, transitioned, err := repo.FinalizePayment(ctx, s.DB, reference, status, rawPayload, time.Now())
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}

	if !transitioned {
		// Lost the race or duplicate delivery: the row was already terminal.
		// Idempotence contract: report the existing state, touch nothing.
		log.Debug().
			Str("reference", reference).
			Str("status", string(p.Status)).
			Str("trigger", trigger).
			Msg("payment already finalized")
		return p, nil
	}

	paymentsFinalized.WithLabelValues(string(p.Status), trigger).Inc()
	log.Info().
		Str("reference", reference).
		Str("status", string(p.Status)).
		Str("trigger", trigger).
		Msg("payment finalized")

	// Entitlements are only granted for course purchases. Completed payments
	// for video/quiz/note content stay in the ledger without an access record.
	if p.Status == domain.PaymentCompleted && p.ContentType == domain.ContentCourse {
		if _, err := repo.GrantEnrollment(ctx, s.DB, p.UserID, p.ContentID, p.ID); err != nil {
			// The payment is already terminal; surface the grant failure so
			// the caller can alert, but the ledger stays consistent.
			return nil, err
		}
		enrollmentsGranted.Inc()
		log.Info().
			Str("user_id", p.UserID).
			Str("course_id", p.ContentID).
			Str("payment_id", p.ID).
			Msg("enrollment granted")
	}

	return p, nil
}
