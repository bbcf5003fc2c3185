package repository

import (
	"context"

	"github.com/narbek-a/KidsClubBack/internal/models"
)

type EnrollmentRepository struct {
	db DBTX
}

func NewEnrollmentRepository(db DBTX) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

func (r *EnrollmentRepository) Create(
	ctx context.Context,
	sessionID int64,
	userID int64,
) (*models.Enrollment, error) {
	query := `
		INSERT INTO enrollments (session_id, user_id)
		VALUES ($1, $2)
		RETURNING id, session_id, user_id, created_at
	`
	var enrollment models.Enrollment
	err := r.db.QueryRow(ctx, query, sessionID, userID).Scan(
		&enrollment.ID,
		&enrollment.SessionID,
		&enrollment.UserID,
		&enrollment.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}

func (r *EnrollmentRepository) Delete(ctx context.Context, sessionID int64, userID int64) (bool, error) {
	tag, err := r.db.Exec(
		ctx,
		`DELETE FROM enrollments WHERE session_id = $1 AND user_id = $2`,
		sessionID,
		userID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *EnrollmentRepository) Exists(ctx context.Context, sessionID int64, userID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM enrollments WHERE session_id = $1 AND user_id = $2
		)
	`
	var exists bool
	if err := r.db.QueryRow(ctx, query, sessionID, userID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *EnrollmentRepository) CountBySession(ctx context.Context, sessionID int64) (int, error) {
	var count int
	err := r.db.QueryRow(
		ctx,
		`SELECT COUNT(*) FROM enrollments WHERE session_id = $1`,
		sessionID,
	).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *EnrollmentRepository) CountBySessionIDs(
	ctx context.Context,
	sessionIDs []int64,
) (map[int64]int, error) {
	counts := make(map[int64]int, len(sessionIDs))
	if len(sessionIDs) == 0 {
		return counts, nil
	}

	query := `
		SELECT session_id, COUNT(*)
		FROM enrollments
		WHERE session_id = ANY($1)
		GROUP BY session_id
	`
	rows, err := r.db.Query(ctx, query, sessionIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var sessionID int64
		var count int
		if err := rows.Scan(&sessionID, &count); err != nil {
			return nil, err
		}
		counts[sessionID] = count
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return counts, nil
}

// SessionIDsByUser returns the set of sessions the user is enrolled in.
func (r *EnrollmentRepository) SessionIDsByUser(
	ctx context.Context,
	userID int64,
) (map[int64]struct{}, error) {
	rows, err := r.db.Query(
		ctx,
		`SELECT session_id FROM enrollments WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessionIDs := make(map[int64]struct{})
	for rows.Next() {
		var sessionID int64
		if err := rows.Scan(&sessionID); err != nil {
			return nil, err
		}
		sessionIDs[sessionID] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessionIDs, nil
}
