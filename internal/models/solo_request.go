package models

import "time"

const (
	SoloStatusPending        = "pending"
	SoloStatusPaymentPending = "payment_pending"
	SoloStatusApproved       = "approved"
	SoloStatusPaid           = "paid"
	SoloStatusRejected       = "rejected"
)

type SoloSessionRequest struct {
	ID              int64      `json:"id"`
	UserID          int64      `json:"user_id"`
	CoachID         *int64     `json:"coach_id"`
	Notes           *string    `json:"notes"`
	PreferredTime   *time.Time `json:"preferred_time"`
	Status          string     `json:"status"`
	MeetingLink     *string    `json:"meeting_link"`
	ScheduledAt     *time.Time `json:"scheduled_at"`
	RejectionReason *string    `json:"rejection_reason"`
	TransactionRef  *string    `json:"transaction_ref"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// IsActive reports whether the request still blocks the user from
// opening another one.
func (r *SoloSessionRequest) IsActive() bool {
	return r.Status == SoloStatusPending || r.Status == SoloStatusPaymentPending
}
