// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the idempotent entitlement grantor.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/coursehub/go-payments-backend/internal/domain"
)

// GrantEnrollment upserts an enrollment for (userID, courseID). The unique
// index on the pair turns duplicate grants into no-ops at the storage layer
// (ON CONFLICT DO NOTHING), closing the check-then-insert race without any
// application-side re-check. The function always returns the surviving row,
// whichever payment created it first.
//
// paymentID may be empty for grants not backed by a payment; it is stored as
// NULL in that case.
func GrantEnrollment(ctx context.Context, db *gorm.DB, userID, courseID, paymentID string) (*domain.Enrollment, error) {
	e := &domain.Enrollment{
		ID:        uuid.NewString(),
		UserID:    userID,
		CourseID:  courseID,
		CreatedAt: time.Now().UTC(),
	}
	if paymentID != "" {
		e.PaymentID = &paymentID
	}

	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
			DoNothing: true,
		}).
		Create(e).Error
	if err != nil {
		return nil, err
	}

	return GetEnrollment(ctx, db, userID, courseID)
}

// GetEnrollment fetches the enrollment for (userID, courseID), or ErrNotFound.
func GetEnrollment(ctx context.Context, db *gorm.DB, userID, courseID string) (*domain.Enrollment, error) {
	var e domain.Enrollment
	err := db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// CountEnrollments returns the number of enrollments for (userID, courseID).
// Used by tests to assert the exactly-one-entitlement property.
func CountEnrollments(ctx context.Context, db *gorm.DB, userID, courseID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Enrollment{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Count(&total).Error
	return total, err
}
