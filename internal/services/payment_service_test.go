package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/coursehub/go-payments-backend/internal/domain"
	"github.com/coursehub/go-payments-backend/internal/gateway"
)

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("services_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := db.AutoMigrate(&domain.Payment{}, &domain.Enrollment{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// ----- Fake gateway -----

type fakeGateway struct {
	initReq   *gateway.InitializeRequest
	initRes   *gateway.InitializeResult
	initErr   error
	initCalls int

	verifyRef   string
	verifyRes   *gateway.VerifyResult
	verifyErr   error
	verifyCalls int
}

func (g *fakeGateway) Initialize(_ context.Context, req gateway.InitializeRequest) (*gateway.InitializeResult, error) {
	g.initCalls++
	g.initReq = &req
	if g.initErr != nil {
		return nil, g.initErr
	}
	if g.initRes != nil {
		return g.initRes, nil
	}
	return &gateway.InitializeResult{
		AuthorizationURL: "https://checkout.example/" + req.Reference,
		Reference:        req.Reference,
	}, nil
}

func (g *fakeGateway) Verify(_ context.Context, reference string) (*gateway.VerifyResult, error) {
	g.verifyCalls++
	g.verifyRef = reference
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	return g.verifyRes, nil
}

func TestInitiate_Validation(t *testing.T) {
	svc := &PaymentService{DB: newServiceDB(t), Gateway: &fakeGateway{}, Currency: "KES"}
	ctx := context.Background()

	cases := []struct {
		name string
		in   InitiateInput
		want error
	}{
		{"zero amount", InitiateInput{Amount: 0, Email: "a@b.c", ContentID: "c1", ContentType: domain.ContentCourse}, ErrInvalidAmount},
		{"negative amount", InitiateInput{Amount: -5, Email: "a@b.c", ContentID: "c1", ContentType: domain.ContentCourse}, ErrInvalidAmount},
		{"bad content type", InitiateInput{Amount: 10, Email: "a@b.c", ContentID: "c1", ContentType: "ebook"}, ErrInvalidContentType},
		{"empty email", InitiateInput{Amount: 10, Email: "  ", ContentID: "c1", ContentType: domain.ContentCourse}, ErrInvalidEmail},
		{"empty content id", InitiateInput{Amount: 10, Email: "a@b.c", ContentID: " ", ContentType: domain.ContentCourse}, ErrInvalidContentType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Initiate(ctx, "u1", tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestInitiate_Success(t *testing.T) {
	db := newServiceDB(t)
	gw := &fakeGateway{}
	svc := &PaymentService{DB: db, Gateway: gw, Currency: "KES", CallbackURL: "https://app/cb"}

	res, err := svc.Initiate(context.Background(), "user123", InitiateInput{
		Amount:      5000,
		Email:       "buyer@example.com",
		ContentID:   "course-1",
		ContentType: domain.ContentCourse,
	})
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	p := res.Payment
	if p.Status != domain.PaymentPending || p.UserID != "user123" || p.Currency != "KES" {
		t.Fatalf("payment = %+v", p)
	}
	if !strings.HasPrefix(p.Reference, "course_course-1_user123_") {
		t.Fatalf("reference format: %q", p.Reference)
	}
	if res.AuthorizationURL == "" {
		t.Fatalf("missing checkout URL")
	}

	// The ledger row must be created before the gateway call.
	if gw.initCalls != 1 || gw.initReq == nil {
		t.Fatalf("gateway calls = %d", gw.initCalls)
	}
	if gw.initReq.Amount != 5000 || gw.initReq.Currency != "KES" || gw.initReq.Email != "buyer@example.com" {
		t.Fatalf("gateway request = %+v", gw.initReq)
	}
	if gw.initReq.Reference != p.Reference {
		t.Fatalf("reference mismatch: %q vs %q", gw.initReq.Reference, p.Reference)
	}
	if gw.initReq.CallbackURL != "https://app/cb" {
		t.Fatalf("callback = %q", gw.initReq.CallbackURL)
	}

	var count int64
	if err := db.Model(&domain.Payment{}).Count(&count).Error; err != nil || count != 1 {
		t.Fatalf("ledger rows = %d, %v", count, err)
	}
}

func TestInitiate_GatewayFailure_LeavesPendingRow(t *testing.T) {
	db := newServiceDB(t)
	gw := &fakeGateway{initErr: fmt.Errorf("%w: boom", gateway.ErrUnavailable)}
	svc := &PaymentService{DB: db, Gateway: gw, Currency: "KES"}

	_, err := svc.Initiate(context.Background(), "u1", InitiateInput{
		Amount: 10, Email: "a@b.c", ContentID: "c1", ContentType: domain.ContentVideo,
	})
	if !errors.Is(err, gateway.ErrUnavailable) {
		t.Fatalf("expected gateway error, got %v", err)
	}

	// The pending row stays behind; it can never be finalized and is harmless.
	var rows []domain.Payment
	if err := db.Find(&rows).Error; err != nil || len(rows) != 1 {
		t.Fatalf("rows = %d, %v", len(rows), err)
	}
	if rows[0].Status != domain.PaymentPending {
		t.Fatalf("orphan row status = %q", rows[0].Status)
	}
}

func TestInitiate_FreshReferencePerAttempt(t *testing.T) {
	db := newServiceDB(t)
	svc := &PaymentService{DB: db, Gateway: &fakeGateway{}, Currency: "KES"}
	ctx := context.Background()

	in := InitiateInput{Amount: 10, Email: "a@b.c", ContentID: "c1", ContentType: domain.ContentCourse}
	r1, err := svc.Initiate(ctx, "u1", in)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	r2, err := svc.Initiate(ctx, "u1", in)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if r1.Payment.Reference == r2.Payment.Reference {
		t.Fatalf("references must never repeat: %q", r1.Payment.Reference)
	}
}

func TestHistoryPage(t *testing.T) {
	db := newServiceDB(t)
	svc := &PaymentService{DB: db, Gateway: &fakeGateway{}, Currency: "KES"}
	ctx := context.Background()

	// Empty history
	items, total, err := svc.HistoryPage(ctx, "u1", 1, 20)
	if err != nil || total != 0 || len(items) != 0 {
		t.Fatalf("empty history = %d items, total %d, %v", len(items), total, err)
	}

	for i := 0; i < 3; i++ {
		p := &domain.Payment{
			ID: fmt.Sprintf("p-%d", i), UserID: "u1", ContentID: "c1",
			ContentType: domain.ContentCourse, Amount: 10, Currency: "KES",
			Reference: fmt.Sprintf("ref-%d", i), Status: domain.PaymentPending,
			CreatedAt: time.Now().UTC().Add(time.Duration(i) * time.Minute),
		}
		if err := db.Create(p).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	// Invalid page/pageSize fall back to defaults.
	items, total, err = svc.HistoryPage(ctx, "u1", 0, -1)
	if err != nil || total != 3 || len(items) != 3 {
		t.Fatalf("history = %d items, total %d, %v", len(items), total, err)
	}

	items, total, err = svc.HistoryPage(ctx, "u1", 2, 2)
	if err != nil || total != 3 || len(items) != 1 {
		t.Fatalf("page 2 = %d items, total %d, %v", len(items), total, err)
	}
}

func TestNewReference_Shape(t *testing.T) {
	ref := newReference(domain.ContentQuiz, "quiz-9", "u7")
	parts := strings.Split(ref, "_")
	if len(parts) != 5 {
		t.Fatalf("reference parts = %d (%q)", len(parts), ref)
	}
	if parts[0] != "quiz" || parts[1] != "quiz-9" || parts[2] != "u7" {
		t.Fatalf("reference = %q", ref)
	}
	if parts[4] == "" {
		t.Fatalf("missing nonce: %q", ref)
	}
	if ref2 := newReference(domain.ContentQuiz, "quiz-9", "u7"); ref2 == ref {
		t.Fatalf("nonce failed to disambiguate same-millisecond references")
	}
}
