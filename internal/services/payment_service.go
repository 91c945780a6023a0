// Package services – PaymentService
//
// This file implements the PaymentService, which owns the initiation half of
// the payment pipeline: validating a purchase request, writing the pending
// ledger row with a freshly generated unique reference, and opening the
// transaction with the gateway. It also serves the buyer's payment history.
//
// Service-level errors (ErrInvalidAmount, ErrInvalidContentType,
// ErrInvalidEmail) are returned for predictable cases so handlers can map
// them to HTTP results consistently; gateway errors pass through carrying the
// gateway package's taxonomy.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coursehub/go-payments-backend/internal/domain"
	"github.com/coursehub/go-payments-backend/internal/gateway"
	"github.com/coursehub/go-payments-backend/internal/repo"
)

// GatewayClient is the outbound gateway contract consumed by the services.
// *gateway.Client satisfies it; tests substitute fakes.
type GatewayClient interface {
	// Initialize opens a gateway transaction and returns the checkout URL.
	Initialize(ctx context.Context, req gateway.InitializeRequest) (*gateway.InitializeResult, error)
	// Verify fetches the authoritative state of a transaction by reference.
	Verify(ctx context.Context, reference string) (*gateway.VerifyResult, error)
}

// PaymentService implements purchase initiation and payment history.
type PaymentService struct {
	// DB is the GORM handle used for ledger persistence.
	DB *gorm.DB
	// Gateway is the payment gateway client.
	Gateway GatewayClient
	// Currency is the ISO 4217 code all payments are charged in.
	Currency string
	// CallbackURL is passed to the gateway as the post-checkout redirect.
	CallbackURL string
}

// InitiateInput is a validated purchase request. Identity is threaded in
// explicitly by the caller; the service never consults ambient state.
type InitiateInput struct {
	Amount      float64
	Email       string
	ContentID   string
	ContentType domain.ContentType
}

// InitiateResult carries what the client needs to send the buyer to checkout.
type InitiateResult struct {
	Payment          *domain.Payment
	AuthorizationURL string
}

// Initiate validates the request, creates a pending ledger row, and opens the
// gateway transaction.
//
// Ordering matters: the ledger row exists before the gateway is contacted, so
// a reference reported back by either reconciliation path always resolves. A
// gateway failure after row creation deliberately leaves the pending row
// behind; it is never finalized and is harmless (an orphan the buyer retries
// with a fresh reference).
func (s *PaymentService) Initiate(ctx context.Context, userID string, in InitiateInput) (*InitiateResult, error) {
	if in.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if !in.ContentType.Valid() {
		return nil, ErrInvalidContentType
	}
	if strings.TrimSpace(in.Email) == "" {
		return nil, ErrInvalidEmail
	}
	if strings.TrimSpace(in.ContentID) == "" {
		return nil, ErrInvalidContentType
	}

	reference := newReference(in.ContentType, in.ContentID, userID)

	p, err := repo.CreatePayment(ctx, s.DB, userID, in.ContentID, in.ContentType, in.Amount, s.Currency, reference)
	if err != nil {
		return nil, err
	}
	paymentsInitiated.Inc()

	res, err := s.Gateway.Initialize(ctx, gateway.InitializeRequest{
		Amount:      in.Amount,
		Currency:    s.Currency,
		Reference:   reference,
		Email:       in.Email,
		CallbackURL: s.CallbackURL,
	})
	if err != nil {
		return nil, err
	}

	return &InitiateResult{Payment: p, AuthorizationURL: res.AuthorizationURL}, nil
}

// HistoryPage returns a page of the user's payments and the total count.
// It applies defaults for invalid page/pageSize.
func (s *PaymentService) HistoryPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Payment, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountPayments(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Payment{}, 0, nil
	}

	items, err := repo.ListPaymentsPage(ctx, s.DB, userID, offset, pageSize)
	return items, total, err
}

// newReference builds a globally unique gateway reference. The
// type_content_user_timestamp composition keeps references readable in
// gateway dashboards; the trailing random nonce guarantees two initiations in
// the same millisecond still cannot collide. References are never reused: a
// retried purchase always gets a fresh one.
func newReference(contentType domain.ContentType, contentID, userID string) string {
	nonce := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return fmt.Sprintf("%s_%s_%s_%d_%s", contentType, contentID, userID, time.Now().UnixMilli(), nonce)
}
