// Package domain defines the persistence models for payments and enrollments.
// These types are mapped with GORM and form the core data layer of the
// payments backend.
package domain

import (
	"time"
)

// ContentType identifies the kind of content a payment purchases. It is a
// closed set; anything outside the four known values is rejected at the
// transport layer.
type ContentType string

const (
	ContentCourse ContentType = "course"
	ContentVideo  ContentType = "video"
	ContentQuiz   ContentType = "quiz"
	ContentNote   ContentType = "note"
)

// Valid reports whether t is one of the known content types.
func (t ContentType) Valid() bool {
	switch t {
	case ContentCourse, ContentVideo, ContentQuiz, ContentNote:
		return true
	}
	return false
}

// PaymentStatus is the lifecycle state of a payment. Transitions are forward
// only: pending → completed or pending → failed. Terminal rows are never
// overwritten.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// Terminal reports whether s is a terminal payment state.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentCompleted || s == PaymentFailed
}

// Payment is the ledger record for a single purchase attempt. One row is
// created per initiation and mutated exactly once, when the reconciliation
// path moves it out of pending.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - UserID: identifier of the buyer; immutable after creation.
//   - ContentID / ContentType: what is being purchased; immutable.
//   - Amount / Currency: monetary value in major units; immutable.
//   - Reference: globally unique correlation key shared with the payment
//     gateway; uniqueness is enforced by the database, not application code.
//   - Status: pending | completed | failed (forward-only).
//   - VerifiedAt: set exactly once, on the pending→terminal transition.
//   - GatewayResponse: last raw gateway payload seen, kept for audit.
type Payment struct {
	ID              string        `json:"id"               gorm:"type:char(36);primaryKey"`
	UserID          string        `json:"user_id"          gorm:"type:varchar(64);not null;index:idx_user_payments"`
	ContentID       string        `json:"content_id"       gorm:"type:varchar(64);not null"`
	ContentType     ContentType   `json:"content_type"     gorm:"type:varchar(16);not null;check:content_type IN ('course','video','quiz','note')"`
	Amount          float64       `json:"amount"           gorm:"not null"`
	Currency        string        `json:"currency"         gorm:"type:varchar(8);not null"`
	Reference       string        `json:"reference"        gorm:"type:varchar(255);not null;uniqueIndex:ux_payment_reference"`
	Status          PaymentStatus `json:"status"           gorm:"type:varchar(16);not null;default:'pending';check:status IN ('pending','completed','failed')"`
	VerifiedAt      *time.Time    `json:"verified_at,omitempty"`
	GatewayResponse string        `json:"gateway_response,omitempty" gorm:"type:text"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// TableName returns the database table name for Payment.
func (Payment) TableName() string { return "payments" }

// Enrollment is the durable entitlement granting a user access to a course.
// The (user_id, course_id) pair is unique at the storage layer; granting the
// same entitlement twice is a no-op, not an error.
//
// PaymentID is the back-reference to the payment that authorized the grant.
// It is nullable because free enrollments exist outside this core.
type Enrollment struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"user_id"    gorm:"type:varchar(64);not null;uniqueIndex:ux_enrollment_user_course,priority:1"`
	CourseID  string    `json:"course_id"  gorm:"type:varchar(64);not null;uniqueIndex:ux_enrollment_user_course,priority:2"`
	PaymentID *string   `json:"payment_id,omitempty" gorm:"type:char(36)"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Enrollment.
func (Enrollment) TableName() string { return "enrollments" }
