package payment

import (
	"context"
	"testing"
	"time"

	"tabashir/internal/database"
)

func TestDownloadUnlockedByDraftPayment(t *testing.T) {
	db := newTestDB(t)
	user, draft := seedUserWithDraft(t, db)
	gate := NewGate(db)
	ctx := context.Background()

	unlocked, err := gate.DownloadUnlocked(ctx, user.ID, draft.ID)
	if err != nil {
		t.Fatalf("DownloadUnlocked: %v", err)
	}
	if unlocked {
		t.Fatal("unpaid draft should be locked")
	}

	if err := db.Model(&database.ResumeDraft{}).Where("id = ?", draft.ID).
		Update("payment_completed", true).Error; err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	unlocked, err = gate.DownloadUnlocked(ctx, user.ID, draft.ID)
	if err != nil {
		t.Fatalf("DownloadUnlocked: %v", err)
	}
	if !unlocked {
		t.Fatal("paid draft should be unlocked")
	}
}

func TestDownloadUnlockedBySubscription(t *testing.T) {
	db := newTestDB(t)
	user, draft := seedUserWithDraft(t, db)
	gate := NewGate(db)
	ctx := context.Background()

	sub := database.Subscription{
		UserID:    user.ID,
		ServiceID: "premium-monthly",
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}
	if err := db.Create(&sub).Error; err != nil {
		t.Fatalf("seed subscription: %v", err)
	}

	unlocked, err := gate.DownloadUnlocked(ctx, user.ID, draft.ID)
	if err != nil {
		t.Fatalf("DownloadUnlocked: %v", err)
	}
	if !unlocked {
		t.Fatal("active subscription should unlock downloads")
	}
}

func TestExpiredSubscriptionDoesNotUnlock(t *testing.T) {
	db := newTestDB(t)
	user, draft := seedUserWithDraft(t, db)
	gate := NewGate(db)
	ctx := context.Background()

	sub := database.Subscription{
		UserID:    user.ID,
		ServiceID: "premium-monthly",
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	if err := db.Create(&sub).Error; err != nil {
		t.Fatalf("seed subscription: %v", err)
	}

	unlocked, err := gate.DownloadUnlocked(ctx, user.ID, draft.ID)
	if err != nil {
		t.Fatalf("DownloadUnlocked: %v", err)
	}
	if unlocked {
		t.Fatal("expired subscription must not unlock downloads")
	}

	active, err := gate.HasActiveSubscription(ctx, user.ID)
	if err != nil {
		t.Fatalf("HasActiveSubscription: %v", err)
	}
	if active {
		t.Fatal("expired subscription reported active")
	}
}
