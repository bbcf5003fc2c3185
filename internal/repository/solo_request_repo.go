package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/narbek-a/KidsClubBack/internal/models"
)

type CreateSoloRequestInput struct {
	UserID        int64
	CoachID       *int64
	Notes         *string
	PreferredTime *time.Time
}

type SoloRequestListFilter struct {
	Status string
	Offset int
	Limit  int
}

type SoloRequestRepository struct {
	db DBTX
}

func NewSoloRequestRepository(db DBTX) *SoloRequestRepository {
	return &SoloRequestRepository{db: db}
}

const soloRequestColumns = `id, user_id, coach_id, notes, preferred_time, status, meeting_link, scheduled_at, rejection_reason, transaction_ref, created_at, updated_at`

func scanSoloRequest(row interface{ Scan(dest ...any) error }) (*models.SoloSessionRequest, error) {
	var request models.SoloSessionRequest
	err := row.Scan(
		&request.ID,
		&request.UserID,
		&request.CoachID,
		&request.Notes,
		&request.PreferredTime,
		&request.Status,
		&request.MeetingLink,
		&request.ScheduledAt,
		&request.RejectionReason,
		&request.TransactionRef,
		&request.CreatedAt,
		&request.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *SoloRequestRepository) Create(
	ctx context.Context,
	input CreateSoloRequestInput,
) (*models.SoloSessionRequest, error) {
	query := `
		INSERT INTO solo_session_requests (user_id, coach_id, notes, preferred_time, status)
		VALUES ($1, $2, $3, $4, 'pending')
		RETURNING ` + soloRequestColumns
	return scanSoloRequest(r.db.QueryRow(
		ctx,
		query,
		input.UserID,
		input.CoachID,
		input.Notes,
		input.PreferredTime,
	))
}

func (r *SoloRequestRepository) GetByID(ctx context.Context, requestID int64) (*models.SoloSessionRequest, error) {
	query := `
		SELECT ` + soloRequestColumns + `
		FROM solo_session_requests
		WHERE id = $1
	`
	return scanSoloRequest(r.db.QueryRow(ctx, query, requestID))
}

func (r *SoloRequestRepository) GetByIDForUpdate(
	ctx context.Context,
	requestID int64,
) (*models.SoloSessionRequest, error) {
	query := `
		SELECT ` + soloRequestColumns + `
		FROM solo_session_requests
		WHERE id = $1
		FOR UPDATE
	`
	return scanSoloRequest(r.db.QueryRow(ctx, query, requestID))
}

// HasActive reports whether the user already holds a request that is
// still pending or awaiting payment.
func (r *SoloRequestRepository) HasActive(ctx context.Context, userID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM solo_session_requests
			WHERE user_id = $1
			  AND status IN ('pending', 'payment_pending')
		)
	`
	var exists bool
	if err := r.db.QueryRow(ctx, query, userID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *SoloRequestRepository) GetLatestByUser(
	ctx context.Context,
	userID int64,
) (*models.SoloSessionRequest, error) {
	query := `
		SELECT ` + soloRequestColumns + `
		FROM solo_session_requests
		WHERE user_id = $1
		ORDER BY id DESC
		LIMIT 1
	`
	return scanSoloRequest(r.db.QueryRow(ctx, query, userID))
}

func (r *SoloRequestRepository) List(
	ctx context.Context,
	filter SoloRequestListFilter,
) ([]models.SoloSessionRequest, error) {
	args := []any{}
	whereParts := []string{}

	if status := strings.TrimSpace(filter.Status); status != "" {
		args = append(args, status)
		whereParts = append(whereParts, fmt.Sprintf("status = $%d", len(args)))
	}

	whereClause := ""
	if len(whereParts) > 0 {
		whereClause = "WHERE " + strings.Join(whereParts, " AND ")
	}

	args = append(args, filter.Limit)
	limitPlaceholder := len(args)
	args = append(args, filter.Offset)
	offsetPlaceholder := len(args)

	query := fmt.Sprintf(`
		SELECT `+soloRequestColumns+`
		FROM solo_session_requests
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d
	`, whereClause, limitPlaceholder, offsetPlaceholder)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := make([]models.SoloSessionRequest, 0)
	for rows.Next() {
		request, err := scanSoloRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *request)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return requests, nil
}

func (r *SoloRequestRepository) Count(ctx context.Context, status string) (int, error) {
	query := `SELECT COUNT(*) FROM solo_session_requests`
	args := []any{}
	if status = strings.TrimSpace(status); status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}

	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// UpdateToApproved moves a pending or payment_pending request to approved,
// storing the meeting link and optional scheduled time. Returns pgx.ErrNoRows
// when the request is not in an approvable state.
func (r *SoloRequestRepository) UpdateToApproved(
	ctx context.Context,
	requestID int64,
	meetingLink string,
	scheduledAt *time.Time,
) (*models.SoloSessionRequest, error) {
	query := `
		UPDATE solo_session_requests
		SET status = 'approved', meeting_link = $2, scheduled_at = $3, updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'payment_pending')
		RETURNING ` + soloRequestColumns
	return scanSoloRequest(r.db.QueryRow(ctx, query, requestID, meetingLink, scheduledAt))
}

// UpdateToRejected moves a pending or payment_pending request to rejected
// with the admin-supplied reason.
func (r *SoloRequestRepository) UpdateToRejected(
	ctx context.Context,
	requestID int64,
	reason string,
) (*models.SoloSessionRequest, error) {
	query := `
		UPDATE solo_session_requests
		SET status = 'rejected', rejection_reason = $2, updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'payment_pending')
		RETURNING ` + soloRequestColumns
	return scanSoloRequest(r.db.QueryRow(ctx, query, requestID, reason))
}

// UpdateSchedule edits link and time in place for requests that already
// passed review. The status is left untouched.
func (r *SoloRequestRepository) UpdateSchedule(
	ctx context.Context,
	requestID int64,
	meetingLink string,
	scheduledAt *time.Time,
) (*models.SoloSessionRequest, error) {
	query := `
		UPDATE solo_session_requests
		SET meeting_link = $2, scheduled_at = $3, updated_at = NOW()
		WHERE id = $1 AND status IN ('approved', 'paid')
		RETURNING ` + soloRequestColumns
	return scanSoloRequest(r.db.QueryRow(ctx, query, requestID, meetingLink, scheduledAt))
}

func (r *SoloRequestRepository) UpdateStatusIfCurrent(
	ctx context.Context,
	requestID int64,
	currentStatus string,
	nextStatus string,
) (*models.SoloSessionRequest, error) {
	query := `
		UPDATE solo_session_requests
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + soloRequestColumns
	return scanSoloRequest(r.db.QueryRow(ctx, query, requestID, currentStatus, nextStatus))
}

// MarkPaid finalizes payment for a request awaiting it, recording the
// gateway transaction reference.
func (r *SoloRequestRepository) MarkPaid(
	ctx context.Context,
	requestID int64,
	transactionRef string,
) (*models.SoloSessionRequest, error) {
	query := `
		UPDATE solo_session_requests
		SET status = 'paid', transaction_ref = $2, updated_at = NOW()
		WHERE id = $1 AND status IN ('payment_pending', 'approved')
		RETURNING ` + soloRequestColumns
	return scanSoloRequest(r.db.QueryRow(ctx, query, requestID, transactionRef))
}
