package payment

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"tabashir/internal/database"
)

// Gate answers "is this premium feature unlocked for this user" questions
// from recorded payments and subscriptions.
type Gate struct {
	db *gorm.DB
}

// NewGate wraps the database handle.
func NewGate(db *gorm.DB) *Gate {
	return &Gate{db: db}
}

// DownloadUnlocked reports whether the draft's PDF download is available:
// either the draft itself was paid for, or the owner holds an active
// subscription.
func (g *Gate) DownloadUnlocked(ctx context.Context, userID, draftID uint) (bool, error) {
	var draft database.ResumeDraft
	err := g.db.WithContext(ctx).
		Select("id", "payment_completed").
		Where("id = ? AND user_id = ?", draftID, userID).
		First(&draft).Error
	if err != nil {
		return false, err
	}
	if draft.PaymentCompleted {
		return true, nil
	}
	return g.HasActiveSubscription(ctx, userID)
}

// HasActiveSubscription reports whether the user holds any unexpired
// subscription.
func (g *Gate) HasActiveSubscription(ctx context.Context, userID uint) (bool, error) {
	var sub database.Subscription
	err := g.db.WithContext(ctx).
		Where("user_id = ? AND expires_at > ?", userID, time.Now()).
		Order("expires_at desc").
		First(&sub).Error
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return false, nil
	default:
		return false, err
	}
}
