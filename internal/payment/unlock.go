package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"tabashir/internal/catalog"
	"tabashir/internal/database"
)

// ErrUnlockTargetMissing is returned when a completed event references a
// draft or user that does not exist (or is not owned by the paying user).
var ErrUnlockTargetMissing = errors.New("unlock target missing")

// Unlocker applies the effect of confirmed payments. All writes for one
// event happen in a single transaction keyed on the provider transaction id,
// so a redelivered webhook is a no-op.
type Unlocker struct {
	db *gorm.DB
}

// NewUnlocker wraps the database handle.
func NewUnlocker(db *gorm.DB) *Unlocker {
	return &Unlocker{db: db}
}

// ApplyCompleted records the Payment and applies the service-specific
// unlock. The returned bool is false when the transaction id was already
// processed; the existing row is returned in that case.
func (u *Unlocker) ApplyCompleted(ctx context.Context, ev Event) (database.Payment, bool, error) {
	if ev.Kind != EventCompleted {
		return database.Payment{}, false, fmt.Errorf("apply completed called with kind %d", ev.Kind)
	}

	svc, err := catalog.Lookup(ev.Context.ServiceID)
	if err != nil {
		return database.Payment{}, false, err
	}

	var payment database.Payment
	applied := false
	err = u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing database.Payment
		err := tx.Where("transaction_id = ?", ev.TransactionID).First(&existing).Error
		switch {
		case err == nil:
			// Duplicate delivery; the unlock already ran.
			payment = existing
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		now := time.Now()
		record := database.Payment{
			UserID:        ev.Context.UserID,
			ResumeDraftID: ev.Context.DraftID,
			ServiceID:     ev.Context.ServiceID,
			Provider:      ev.Provider,
			TransactionID: ev.TransactionID,
			Amount:        ev.Amount,
			Currency:      ev.Currency,
			Status:        database.PaymentStatusCompleted,
			PaidAt:        &now,
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}

		if err := u.applyUnlock(tx, svc, ev, now); err != nil {
			return err
		}

		payment = record
		applied = true
		return nil
	})
	if err != nil {
		return database.Payment{}, false, err
	}
	return payment, applied, nil
}

func (u *Unlocker) applyUnlock(tx *gorm.DB, svc catalog.Service, ev Event, now time.Time) error {
	switch svc.Unlock {
	case catalog.UnlockResumeDownload:
		if ev.Context.DraftID == nil {
			return fmt.Errorf("%w: no draft on resume unlock", ErrPayloadMalformed)
		}
		res := tx.Model(&database.ResumeDraft{}).
			Where("id = ? AND user_id = ?", *ev.Context.DraftID, ev.Context.UserID).
			Updates(map[string]any{
				"payment_completed": true,
				"payment_amount":    ev.Amount,
				"payment_date":      now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: draft %d for user %d", ErrUnlockTargetMissing, *ev.Context.DraftID, ev.Context.UserID)
		}
		return nil

	case catalog.UnlockApplyCredits:
		res := tx.Model(&database.User{}).
			Where("id = ?", ev.Context.UserID).
			UpdateColumn("apply_credits", gorm.Expr("apply_credits + ?", svc.Credits))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: user %d", ErrUnlockTargetMissing, ev.Context.UserID)
		}
		return nil

	case catalog.UnlockSubscription:
		period := time.Duration(svc.PeriodDays) * 24 * time.Hour
		var current database.Subscription
		err := tx.Where("user_id = ? AND service_id = ?", ev.Context.UserID, svc.ID).
			Order("expires_at desc").
			First(&current).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			sub := database.Subscription{
				UserID:    ev.Context.UserID,
				ServiceID: svc.ID,
				ExpiresAt: now.Add(period),
			}
			return tx.Create(&sub).Error
		case err != nil:
			return err
		}

		// Extend from the later of now and the current expiry.
		base := now
		if current.ExpiresAt.After(base) {
			base = current.ExpiresAt
		}
		return tx.Model(&current).Update("expires_at", base.Add(period)).Error

	default:
		return fmt.Errorf("unhandled unlock kind %d for service %q", svc.Unlock, svc.ID)
	}
}

// MarkFailed flips a previously recorded Payment to failed by transaction
// id. Unknown transaction ids are a no-op; completed payments are never
// downgraded.
func (u *Unlocker) MarkFailed(ctx context.Context, transactionID string) error {
	return u.db.WithContext(ctx).Model(&database.Payment{}).
		Where("transaction_id = ? AND status <> ?", transactionID, database.PaymentStatusCompleted).
		Update("status", database.PaymentStatusFailed).Error
}
