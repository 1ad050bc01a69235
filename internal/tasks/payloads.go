package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// Task type constants keep queue producers and consumers aligned.
const (
	TypeResumeRender      = "resume:render"
	TypeApplicationNotify = "application:notify"
	TypePaymentReceipt    = "payment:receipt"
)

// ResumeRenderPayload carries the minimum needed to render a paid draft.
type ResumeRenderPayload struct {
	DraftID       uint   `json:"draft_id"`
	CorrelationID string `json:"correlation_id"`
}

// NewResumeRenderTask enqueues a PDF render for a resume draft.
func NewResumeRenderTask(draftID uint, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(ResumeRenderPayload{
		DraftID:       draftID,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeResumeRender, payload), nil
}

// ApplicationNotifyPayload tells the recruiter about a new application.
type ApplicationNotifyPayload struct {
	ApplicationID uint   `json:"application_id"`
	JobID         uint   `json:"job_id"`
	RecruiterID   uint   `json:"recruiter_id"`
	CorrelationID string `json:"correlation_id"`
}

// NewApplicationNotifyTask enqueues a notification for a submitted application.
func NewApplicationNotifyTask(applicationID, jobID, recruiterID uint, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(ApplicationNotifyPayload{
		ApplicationID: applicationID,
		JobID:         jobID,
		RecruiterID:   recruiterID,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeApplicationNotify, payload), nil
}

// PaymentReceiptPayload notifies a user about a completed payment.
type PaymentReceiptPayload struct {
	PaymentID uint `json:"payment_id"`
	UserID    uint `json:"user_id"`
}

// NewPaymentReceiptTask enqueues a receipt notification after an unlock.
func NewPaymentReceiptTask(paymentID, userID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(PaymentReceiptPayload{
		PaymentID: paymentID,
		UserID:    userID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypePaymentReceipt, payload), nil
}
