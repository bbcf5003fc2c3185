package repository

import (
	"context"

	"github.com/narbek-a/KidsClubBack/internal/models"
)

type CreatePaymentAttemptInput struct {
	RequestID int64
	Reference string
	Amount    float64
	Currency  string
}

type PaymentAttemptRepository struct {
	db DBTX
}

func NewPaymentAttemptRepository(db DBTX) *PaymentAttemptRepository {
	return &PaymentAttemptRepository{db: db}
}

const paymentColumns = `id, request_id, reference, amount, currency, status, created_at, updated_at`

func scanPaymentAttempt(row interface{ Scan(dest ...any) error }) (*models.PaymentAttempt, error) {
	var attempt models.PaymentAttempt
	err := row.Scan(
		&attempt.ID,
		&attempt.RequestID,
		&attempt.Reference,
		&attempt.Amount,
		&attempt.Currency,
		&attempt.Status,
		&attempt.CreatedAt,
		&attempt.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *PaymentAttemptRepository) Create(
	ctx context.Context,
	input CreatePaymentAttemptInput,
) (*models.PaymentAttempt, error) {
	query := `
		INSERT INTO payment_attempts (request_id, reference, amount, currency, status)
		VALUES ($1, $2, $3, $4, 'pending')
		RETURNING ` + paymentColumns
	return scanPaymentAttempt(r.db.QueryRow(
		ctx,
		query,
		input.RequestID,
		input.Reference,
		input.Amount,
		input.Currency,
	))
}

func (r *PaymentAttemptRepository) GetByReferenceForUpdate(
	ctx context.Context,
	reference string,
) (*models.PaymentAttempt, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payment_attempts
		WHERE reference = $1
		FOR UPDATE
	`
	return scanPaymentAttempt(r.db.QueryRow(ctx, query, reference))
}

func (r *PaymentAttemptRepository) UpdateStatusIfCurrent(
	ctx context.Context,
	attemptID int64,
	currentStatus string,
	nextStatus string,
) (*models.PaymentAttempt, error) {
	query := `
		UPDATE payment_attempts
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + paymentColumns
	return scanPaymentAttempt(r.db.QueryRow(ctx, query, attemptID, currentStatus, nextStatus))
}
