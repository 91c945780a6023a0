// Payment HTTP handlers.
//
// This file exposes the REST endpoints of the payment pipeline:
//   - POST /payments/initiate  (create ledger row, open gateway transaction)
//   - POST /payments/verify    (client-initiated reconciliation)
//   - POST /payments/webhook   (gateway-initiated reconciliation)
//   - GET  /payments           (buyer's payment history, paginated, ETag)
//
// Handlers are transport-thin: they validate input, delegate to application
// services, and translate domain/service errors into HTTP results. The
// webhook handler is the only one that touches the raw request body, because
// the gateway signature is computed over those exact bytes.
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous successful
// initiation is on record for (user, key), the handler replays the original
// payment and sets `Idempotency-Replayed: true` instead of opening a second
// gateway transaction.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/coursehub/go-payments-backend/internal/domain"
	"github.com/coursehub/go-payments-backend/internal/gateway"
	"github.com/coursehub/go-payments-backend/internal/http/middleware"
	"github.com/coursehub/go-payments-backend/internal/repo"
	"github.com/coursehub/go-payments-backend/internal/services"
	"github.com/coursehub/go-payments-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// PaymentService defines initiation and history operations consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type PaymentService interface {
	// Initiate creates a pending payment and opens a gateway transaction.
	Initiate(ctx context.Context, userID string, in services.InitiateInput) (*services.InitiateResult, error)
	// HistoryPage returns a page of the user's payments and the total count.
	HistoryPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Payment, int64, error)
}

// ReconcileService defines the two reconciliation triggers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ReconcileService interface {
	// VerifyPayment reconciles a reference against a live gateway lookup.
	VerifyPayment(ctx context.Context, reference string) (*services.VerifyOutcome, error)
	// ProcessWebhook reconciles an authenticated gateway event.
	ProcessWebhook(ctx context.Context, ev *gateway.WebhookEvent) (*domain.Payment, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints of the payment pipeline. It depends on
// abstract service interfaces to keep transport concerns separate from
// business logic. WebhookSecret is the gateway signing key; DB and
// IdempotencyTTL back the initiate replay path.
type Handlers struct {
	paySvc        PaymentService
	reconcileSvc  ReconcileService
	webhookSecret string

	// DB and IdempotencyTTL support Idempotency-Key replays on initiate.
	DB             *gorm.DB
	IdempotencyTTL time.Duration
}

// New constructs a Handlers instance bound to the given services.
func New(paySvc PaymentService, reconcileSvc ReconcileService, webhookSecret string, db *gorm.DB, idemTTL time.Duration) *Handlers {
	return &Handlers{
		paySvc:         paySvc,
		reconcileSvc:   reconcileSvc,
		webhookSecret:  webhookSecret,
		DB:             db,
		IdempotencyTTL: idemTTL,
	}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to the "X-User-ID" header. An empty
// result means the caller is unauthenticated; endpoints that require identity
// respond 401. It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return ""
}

//
// DTOs
//

// InitiatePaymentRequest is the JSON payload for starting a purchase.
type InitiatePaymentRequest struct {
	// Amount is the price in major currency units; must be positive.
	Amount float64 `json:"amount" binding:"required,gt=0" example:"5000"`
	// Email is where the gateway sends the receipt.
	Email string `json:"email" binding:"required,email" example:"buyer@example.com"`
	// ContentID identifies the content being purchased.
	ContentID string `json:"contentId" binding:"required" example:"course-1"`
	// ContentType is one of course|video|quiz|note.
	ContentType string `json:"contentType" binding:"required,oneof=course video quiz note" example:"course"`
}

// InitiatePaymentResponse carries the redirect target for checkout.
type InitiatePaymentResponse struct {
	Success          bool   `json:"success"`
	PaymentID        string `json:"paymentId"`
	AuthorizationURL string `json:"authorizationUrl"`
	Reference        string `json:"reference"`
}

// VerifyPaymentRequest is the JSON payload for the verify endpoint.
type VerifyPaymentRequest struct {
	// Reference is the payment reference returned by initiate.
	Reference string `json:"reference" binding:"required" example:"course_course-1_user123_1714999999999_7a8d9f4c"`
}

// VerifyPaymentResponse reports the reconciled state of a payment.
type VerifyPaymentResponse struct {
	Success bool            `json:"success"`
	Payment *domain.Payment `json:"payment"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListPaymentsResponse wraps a page of payments and pagination information.
type ListPaymentsResponse struct {
	Payments   []domain.Payment `json:"payments"`
	Pagination Pagination       `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// failFromServiceErr translates shared service/gateway sentinels into HTTP
// results. Returns false when err is not one of the known sentinels.
func failFromServiceErr(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, services.ErrPaymentNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "payment not found")
	case errors.Is(err, gateway.ErrUnavailable):
		fail(c, http.StatusBadGateway, ErrCodeGatewayUnavailable, "payment gateway unavailable, try again")
	case errors.Is(err, gateway.ErrRejected):
		fail(c, http.StatusBadRequest, ErrCodeGatewayRejected, err.Error())
	default:
		return false
	}
	return true
}

//
// Handlers
//

// InitiatePayment godoc
// @ID          initiatePayment
// @Summary     Initiate a purchase
// @Description Creates a pending payment and returns the gateway checkout URL.
// @Description Supports idempotency via the Idempotency-Key header (same key → same result).
// @Tags        Payments
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  true   "User ID"  example(user123)
// @Param       Idempotency-Key  header  string  false  "Idempotency key for safe retries (UUID recommended)"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.InitiatePaymentRequest  true  "Purchase payload"
//
// @Success     200  {object} handlers.InitiatePaymentResponse
// @Failure     400  {object} handlers.ErrorResponse "Validation or gateway rejection"
// @Failure     401  {object} handlers.ErrorResponse "Missing caller identity"
// @Failure     502  {object} handlers.ErrorResponse "Gateway unreachable (retryable)"
// @Router      /payments/initiate [post]
func (h *Handlers) InitiatePayment(c *gin.Context) {
	ctx := c.Request.Context()

	uid := userID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "missing caller identity")
		return
	}

	var req InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid payment request")
		return
	}

	// Idempotency (replay path) – read validated key if present.
	idemKey, hasKey := middleware.GetIdempotencyKey(c)
	if hasKey && h.DB != nil {
		if rec, err := repo.GetIdempotency(ctx, h.DB, uid, idemKey, time.Now().UTC()); err == nil && rec != nil {
			if p, err := repo.GetPayment(ctx, h.DB, rec.PaymentID); err == nil {
				c.Header("Idempotency-Replayed", "true")
				ok(c, http.StatusOK, InitiatePaymentResponse{
					Success:   true,
					PaymentID: p.ID,
					Reference: p.Reference,
				})
				return
			}
		}
	}

	res, err := h.paySvc.Initiate(ctx, uid, services.InitiateInput{
		Amount:      req.Amount,
		Email:       req.Email,
		ContentID:   req.ContentID,
		ContentType: domain.ContentType(req.ContentType),
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidAmount),
			errors.Is(err, services.ErrInvalidContentType),
			errors.Is(err, services.ErrInvalidEmail):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		case failFromServiceErr(c, err):
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	// Idempotency (store path) – best effort.
	if hasKey && h.DB != nil {
		ttl := h.IdempotencyTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		_, _ = repo.CreateIdempotency(ctx, h.DB, uid, idemKey, res.Payment.ID, http.StatusOK, ttl)
	}

	ok(c, http.StatusOK, InitiatePaymentResponse{
		Success:          true,
		PaymentID:        res.Payment.ID,
		AuthorizationURL: res.AuthorizationURL,
		Reference:        res.Payment.Reference,
	})
}

// VerifyPayment godoc
// @ID          verifyPayment
// @Summary     Verify a payment
// @Description Queries the gateway for the authoritative outcome of a reference and reconciles the ledger. Safe to call any number of times.
// @Tags        Payments
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.VerifyPaymentRequest  true  "Reference to verify"
//
// @Success     200  {object} handlers.VerifyPaymentResponse
// @Failure     400  {object} handlers.ErrorResponse "Invalid payload or gateway rejection"
// @Failure     404  {object} handlers.ErrorResponse "Unknown reference"
// @Failure     502  {object} handlers.ErrorResponse "Gateway unreachable (retryable)"
// @Router      /payments/verify [post]
func (h *Handlers) VerifyPayment(c *gin.Context) {
	var req VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Reference) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "reference required")
		return
	}

	out, err := h.reconcileSvc.VerifyPayment(c.Request.Context(), req.Reference)
	if err != nil {
		if !failFromServiceErr(c, err) {
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	ok(c, http.StatusOK, VerifyPaymentResponse{Success: out.Success, Payment: out.Payment})
}

// PaystackWebhook godoc
// @ID          paystackWebhook
// @Summary     Gateway webhook receiver
// @Description Validates the gateway signature over the raw body, then reconciles the referenced payment. Unsigned or mis-signed deliveries are rejected without touching any state.
// @Tags        Payments
// @Accept      json
// @Produce     json
//
// @Param       x-paystack-signature  header  string  true  "HMAC-SHA512 hex signature of the raw body"
//
// @Success     200  {object} map[string]bool "{"received": true}"
// @Failure     400  {object} handlers.ErrorResponse "Invalid signature or malformed event"
// @Failure     404  {object} handlers.ErrorResponse "Unknown reference"
// @Router      /payments/webhook [post]
func (h *Handlers) PaystackWebhook(c *gin.Context) {
	// The signature covers the exact raw bytes; read them before any parsing.
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable body")
		return
	}

	sig := c.GetHeader(gateway.SignatureHeader)
	if !gateway.VerifySignature(body, sig, h.webhookSecret) {
		// Potential forgery: log for audit, reject, mutate nothing.
		middleware.LoggerFrom(c).Warn().
			Str("remote_ip", c.ClientIP()).
			Msg("webhook signature mismatch")
		fail(c, http.StatusBadRequest, ErrCodeSignatureInvalid, "invalid signature")
		return
	}

	ev, err := gateway.ParseWebhookEvent(body)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "malformed event")
		return
	}

	if _, err := h.reconcileSvc.ProcessWebhook(c.Request.Context(), ev); err != nil {
		switch {
		case errors.Is(err, services.ErrUnsupportedEvent):
			// Acknowledge events we do not act on so the gateway stops retrying.
		case errors.Is(err, services.ErrPaymentNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "payment not found")
			return
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
			return
		}
	}

	ok(c, http.StatusOK, gin.H{"received": true})
}

// ListPayments godoc
// @ID          listPayments
// @Summary     List payments (paginated)
// @Description Returns a page of the user's payment history. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Payments
// @Produce     json
//
// @Param       X-User-ID      header  string  true  "User ID"                      example(user123)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"   example(W/\"abc123\")
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListPaymentsResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     401  {object} handlers.ErrorResponse "Missing caller identity"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /payments [get]
func (h *Handlers) ListPayments(c *gin.Context) {
	ctx := c.Request.Context()

	uid := userID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "missing caller identity")
		return
	}
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if h.DB != nil {
		count, maxTS, err := repo.PaymentsStats(ctx, h.DB, uid)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"payments:%s:%d:%d"`, uid, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.paySvc.HistoryPage(ctx, uid, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	resp := ListPaymentsResponse{
		Payments: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	}
	ok(c, http.StatusOK, resp)
}
