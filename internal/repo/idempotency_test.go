package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/coursehub/go-payments-backend/internal/domain"
)

func TestCreateIdempotency_AndGet(t *testing.T) {
	db := newPaymentRepoDB(t, &domain.Idempotency{})
	ctx := context.Background()

	rec, err := CreateIdempotency(ctx, db, "u1", "key-1", "pay-1", 200, time.Hour)
	if err != nil {
		t.Fatalf("CreateIdempotency: %v", err)
	}
	if rec.ID == "" || rec.PaymentID != "pay-1" || rec.Status != 200 {
		t.Fatalf("record = %+v", rec)
	}
	if !rec.ExpiresAt.After(rec.CreatedAt) {
		t.Fatalf("expiry not in the future: %+v", rec)
	}

	got, err := GetIdempotency(ctx, db, "u1", "key-1", time.Now().UTC())
	if err != nil {
		t.Fatalf("GetIdempotency: %v", err)
	}
	if got.PaymentID != "pay-1" {
		t.Fatalf("round-trip mismatch: %+v", got)
	}
}

func TestCreateIdempotency_Duplicate(t *testing.T) {
	db := newPaymentRepoDB(t, &domain.Idempotency{})
	ctx := context.Background()

	if _, err := CreateIdempotency(ctx, db, "u1", "key-1", "pay-1", 200, time.Hour); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := CreateIdempotency(ctx, db, "u1", "key-1", "pay-2", 200, time.Hour); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	// Same key for a different user is a distinct tuple.
	if _, err := CreateIdempotency(ctx, db, "u2", "key-1", "pay-3", 200, time.Hour); err != nil {
		t.Fatalf("other-user create: %v", err)
	}
}

func TestGetIdempotency_ExpiredAndMissing(t *testing.T) {
	db := newPaymentRepoDB(t, &domain.Idempotency{})
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := CreateIdempotency(ctx, db, "u1", "key-old", "pay-1", 200, time.Minute); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Within TTL: visible.
	if _, err := GetIdempotency(ctx, db, "u1", "key-old", now); err != nil {
		t.Fatalf("within ttl: %v", err)
	}
	// Past TTL: treated as absent.
	if _, err := GetIdempotency(ctx, db, "u1", "key-old", now.Add(2*time.Minute)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
	// Unknown key / blank key.
	if _, err := GetIdempotency(ctx, db, "u1", "missing", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing key, got %v", err)
	}
	if _, err := GetIdempotency(ctx, db, "u1", "  ", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for blank key, got %v", err)
	}
}
