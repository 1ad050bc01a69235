package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Messages forwarded to clients over the per-user Redis channel. Field names
// are part of the client protocol.

// RenderNotifyMessage reports the outcome of a resume PDF render.
type RenderNotifyMessage struct {
	Type          string `json:"type"`
	Status        string `json:"status"`
	DraftID       uint   `json:"draft_id"`
	CorrelationID string `json:"correlation_id"`
	ErrorCode     int    `json:"error_code"`
	ErrorMessage  string `json:"error_message"`
}

// ApplicationNotifyMessage tells a recruiter about a new application.
type ApplicationNotifyMessage struct {
	Type          string `json:"type"`
	ApplicationID uint   `json:"application_id"`
	JobID         uint   `json:"job_id"`
	JobTitle      string `json:"job_title"`
}

// ReceiptNotifyMessage confirms a completed payment to the payer.
type ReceiptNotifyMessage struct {
	Type          string `json:"type"`
	TransactionID string `json:"transaction_id"`
	ServiceID     string `json:"service_id"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
}

func publishUserNotify(ctx context.Context, client redis.UniversalClient, userID uint, message any) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	channel := fmt.Sprintf("user_notify:%d", userID)
	if err := client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish redis notification to %q: %w", channel, err)
	}
	return nil
}
