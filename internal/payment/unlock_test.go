package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"tabashir/internal/database"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedUserWithDraft(t *testing.T, db *gorm.DB) (database.User, database.ResumeDraft) {
	t.Helper()
	user := database.User{Email: "candidate@example.com", UserType: database.UserTypeCandidate}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	draft := database.ResumeDraft{UserID: user.ID, Title: "My Resume"}
	if err := db.Create(&draft).Error; err != nil {
		t.Fatalf("seed draft: %v", err)
	}
	return user, draft
}

func completedEvent(user database.User, draft *database.ResumeDraft, serviceID, txID string, amount int64) Event {
	ev := Event{
		Provider:      ProviderStripe,
		Kind:          EventCompleted,
		TransactionID: txID,
		Amount:        amount,
		Currency:      "AED",
		Context: CheckoutContext{
			ServiceID: serviceID,
			UserID:    user.ID,
		},
	}
	if draft != nil {
		id := draft.ID
		ev.Context.DraftID = &id
	}
	return ev
}

func TestApplyCompletedUnlocksDraft(t *testing.T) {
	db := newTestDB(t)
	user, draft := seedUserWithDraft(t, db)
	unlocker := NewUnlocker(db)

	record, applied, err := unlocker.ApplyCompleted(context.Background(), completedEvent(user, &draft, "resume-pro", "cs_test_1", 4900))
	if err != nil {
		t.Fatalf("ApplyCompleted: %v", err)
	}
	if !applied {
		t.Fatal("first delivery should apply")
	}
	if record.Status != database.PaymentStatusCompleted {
		t.Errorf("payment status = %q, want COMPLETED", record.Status)
	}

	var got database.ResumeDraft
	if err := db.First(&got, draft.ID).Error; err != nil {
		t.Fatalf("reload draft: %v", err)
	}
	if !got.PaymentCompleted {
		t.Error("draft payment flag not set")
	}
	if got.PaymentAmount != 4900 {
		t.Errorf("draft payment amount = %d, want 4900", got.PaymentAmount)
	}
	if got.PaymentDate == nil {
		t.Error("draft payment date not set")
	}
}

func TestApplyCompletedDuplicateIsNoOp(t *testing.T) {
	db := newTestDB(t)
	user, draft := seedUserWithDraft(t, db)
	unlocker := NewUnlocker(db)
	ev := completedEvent(user, &draft, "resume-pro", "cs_test_dup", 4900)

	if _, applied, err := unlocker.ApplyCompleted(context.Background(), ev); err != nil || !applied {
		t.Fatalf("first delivery: applied=%v err=%v", applied, err)
	}
	record, applied, err := unlocker.ApplyCompleted(context.Background(), ev)
	if err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	if applied {
		t.Fatal("replayed event must not apply again")
	}
	if record.TransactionID != "cs_test_dup" {
		t.Errorf("replay returned wrong record: %+v", record)
	}

	var count int64
	if err := db.Model(&database.Payment{}).Where("transaction_id = ?", "cs_test_dup").Count(&count).Error; err != nil {
		t.Fatalf("count payments: %v", err)
	}
	if count != 1 {
		t.Fatalf("payment rows = %d, want 1", count)
	}
}

func TestApplyCompletedCreditsAccumulate(t *testing.T) {
	db := newTestDB(t)
	user, _ := seedUserWithDraft(t, db)
	unlocker := NewUnlocker(db)

	for i, tx := range []string{"pi_a", "pi_b"} {
		_, applied, err := unlocker.ApplyCompleted(context.Background(), completedEvent(user, nil, "ai-apply-50", tx, 2900))
		if err != nil || !applied {
			t.Fatalf("delivery %d: applied=%v err=%v", i, applied, err)
		}
	}

	var got database.User
	if err := db.First(&got, user.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if got.ApplyCredits != 100 {
		t.Fatalf("apply credits = %d, want 100", got.ApplyCredits)
	}
}

func TestApplyCompletedSubscriptionExtends(t *testing.T) {
	db := newTestDB(t)
	user, _ := seedUserWithDraft(t, db)
	unlocker := NewUnlocker(db)

	if _, _, err := unlocker.ApplyCompleted(context.Background(), completedEvent(user, nil, "premium-monthly", "pi_sub_1", 9900)); err != nil {
		t.Fatalf("first subscription: %v", err)
	}
	var first database.Subscription
	if err := db.Where("user_id = ?", user.ID).First(&first).Error; err != nil {
		t.Fatalf("load subscription: %v", err)
	}

	if _, _, err := unlocker.ApplyCompleted(context.Background(), completedEvent(user, nil, "premium-monthly", "pi_sub_2", 9900)); err != nil {
		t.Fatalf("second subscription: %v", err)
	}

	var count int64
	if err := db.Model(&database.Subscription{}).Where("user_id = ?", user.ID).Count(&count).Error; err != nil {
		t.Fatalf("count subscriptions: %v", err)
	}
	if count != 1 {
		t.Fatalf("subscription rows = %d, want 1 (extended, not duplicated)", count)
	}

	var extended database.Subscription
	if err := db.Where("user_id = ?", user.ID).First(&extended).Error; err != nil {
		t.Fatalf("reload subscription: %v", err)
	}
	if !extended.ExpiresAt.After(first.ExpiresAt.Add(29 * 24 * time.Hour)) {
		t.Fatalf("expiry %v not extended past %v", extended.ExpiresAt, first.ExpiresAt)
	}
}

func TestApplyCompletedMissingDraft(t *testing.T) {
	db := newTestDB(t)
	user, _ := seedUserWithDraft(t, db)
	unlocker := NewUnlocker(db)

	missing := uint(9999)
	ev := completedEvent(user, nil, "resume-pro", "cs_missing", 4900)
	ev.Context.DraftID = &missing

	_, _, err := unlocker.ApplyCompleted(context.Background(), ev)
	if !errors.Is(err, ErrUnlockTargetMissing) {
		t.Fatalf("error = %v, want ErrUnlockTargetMissing", err)
	}

	// The transaction must have rolled back the Payment row too.
	var count int64
	if err := db.Model(&database.Payment{}).Count(&count).Error; err != nil {
		t.Fatalf("count payments: %v", err)
	}
	if count != 0 {
		t.Fatalf("payment rows = %d, want 0 after rollback", count)
	}
}

func TestMarkFailed(t *testing.T) {
	db := newTestDB(t)
	user, draft := seedUserWithDraft(t, db)
	unlocker := NewUnlocker(db)

	// Unknown transaction id is a no-op.
	if err := unlocker.MarkFailed(context.Background(), "pi_unknown"); err != nil {
		t.Fatalf("MarkFailed(unknown): %v", err)
	}

	// A completed payment is never downgraded.
	if _, _, err := unlocker.ApplyCompleted(context.Background(), completedEvent(user, &draft, "resume-pro", "cs_done", 4900)); err != nil {
		t.Fatalf("ApplyCompleted: %v", err)
	}
	if err := unlocker.MarkFailed(context.Background(), "cs_done"); err != nil {
		t.Fatalf("MarkFailed(completed): %v", err)
	}
	var got database.Payment
	if err := db.Where("transaction_id = ?", "cs_done").First(&got).Error; err != nil {
		t.Fatalf("reload payment: %v", err)
	}
	if got.Status != database.PaymentStatusCompleted {
		t.Fatalf("status = %q, completed payment must not be downgraded", got.Status)
	}

	// A pending payment flips to failed.
	pending := database.Payment{
		UserID:        user.ID,
		TransactionID: "pi_pending",
		Status:        database.PaymentStatusPending,
	}
	if err := db.Create(&pending).Error; err != nil {
		t.Fatalf("seed pending payment: %v", err)
	}
	if err := unlocker.MarkFailed(context.Background(), "pi_pending"); err != nil {
		t.Fatalf("MarkFailed(pending): %v", err)
	}
	got = database.Payment{}
	if err := db.Where("transaction_id = ?", "pi_pending").First(&got).Error; err != nil {
		t.Fatalf("reload pending: %v", err)
	}
	if got.Status != database.PaymentStatusFailed {
		t.Fatalf("status = %q, want FAILED", got.Status)
	}
}
