// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Payment
// ledger.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a payment is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// The one non-trivial operation is FinalizePayment: the pending→terminal
// transition is a single conditional UPDATE guarded on the current status,
// never a read-then-write, so two racing reconciliation attempts (webhook and
// client verify) cannot both win.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coursehub/go-payments-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreatePayment inserts a new pending ledger row. The payment ID is a
// randomly generated UUID and CreatedAt is set to UTC. The reference must
// already be populated by the caller; its uniqueness is enforced by the
// ux_payment_reference index, and a collision surfaces as the raw DB error.
func CreatePayment(ctx context.Context, db *gorm.DB, userID, contentID string, contentType domain.ContentType, amount float64, currency, reference string) (*domain.Payment, error) {
	p := &domain.Payment{
		ID:          uuid.NewString(),
		UserID:      userID,
		ContentID:   contentID,
		ContentType: contentType,
		Amount:      amount,
		Currency:    currency,
		Reference:   reference,
		Status:      domain.PaymentPending,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// GetPaymentByReference fetches a single payment by its gateway reference.
// If the record does not exist, it returns ErrNotFound.
func GetPaymentByReference(ctx context.Context, db *gorm.DB, reference string) (*domain.Payment, error) {
	var p domain.Payment
	err := db.WithContext(ctx).
		Where("reference = ?", reference).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPayment fetches a single payment by ID, or ErrNotFound if missing.
func GetPayment(ctx context.Context, db *gorm.DB, id string) (*domain.Payment, error) {
	var p domain.Payment
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FinalizePayment attempts the pending→terminal transition for reference in
// one atomic conditional update:
//
//	UPDATE payments SET status=?, verified_at=?, gateway_response=?
//	WHERE reference = ? AND status = 'pending'
//
// Return values:
//   - transitioned=true: this call moved the row out of pending; the returned
//     payment reflects the new terminal state.
//   - transitioned=false, err=nil: the row was already terminal; the returned
//     payment is the existing record, unchanged. This is the idempotence
//     contract, not an error.
//   - err=ErrNotFound: no payment exists for reference.
//
// VerifiedAt is therefore set exactly once, by whichever caller wins the
// race; all later callers observe the winner's result.
func FinalizePayment(ctx context.Context, db *gorm.DB, reference string, status domain.PaymentStatus, gatewayResponse string, now time.Time) (*domain.Payment, bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Payment{}).
		Where("reference = ? AND status = ?", reference, domain.PaymentPending).
		Updates(map[string]any{
			"status":           status,
			"verified_at":      now.UTC(),
			"gateway_response": gatewayResponse,
		})
	if res.Error != nil {
		return nil, false, res.Error
	}

	p, err := GetPaymentByReference(ctx, db, reference)
	if err != nil {
		return nil, false, err
	}
	return p, res.RowsAffected == 1, nil
}

// CountPayments returns the total number of ledger rows owned by userID.
func CountPayments(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Payment{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListPaymentsPage returns a paginated slice of payments for userID, ordered
// by creation time descending. Use CountPayments to obtain the total for
// pagination metadata.
//
// The caller is responsible for computing offset and limit (e.g., (page-1)*pageSize).
func ListPaymentsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Payment, error) {
	var out []domain.Payment
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
