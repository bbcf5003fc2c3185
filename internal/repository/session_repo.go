package repository

import (
	"context"
	"time"

	"github.com/narbek-a/KidsClubBack/internal/models"
)

type CreateSessionInput struct {
	Title           string
	StartsAt        time.Time
	DurationMinutes int
	Platform        string
	CoachID         *int64
	MaxParticipants int
	IsFree          bool
}

type SessionRepository struct {
	db DBTX
}

func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, title, starts_at, duration_min, platform, coach_id, max_participants, is_free, created_at, updated_at`

func scanSession(row interface{ Scan(dest ...any) error }) (*models.Session, error) {
	var session models.Session
	err := row.Scan(
		&session.ID,
		&session.Title,
		&session.StartsAt,
		&session.DurationMinutes,
		&session.Platform,
		&session.CoachID,
		&session.MaxParticipants,
		&session.IsFree,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepository) Create(
	ctx context.Context,
	input CreateSessionInput,
) (*models.Session, error) {
	query := `
		INSERT INTO sessions (title, starts_at, duration_min, platform, coach_id, max_participants, is_free)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + sessionColumns
	return scanSession(r.db.QueryRow(
		ctx,
		query,
		input.Title,
		input.StartsAt,
		input.DurationMinutes,
		input.Platform,
		input.CoachID,
		input.MaxParticipants,
		input.IsFree,
	))
}

func (r *SessionRepository) GetByID(ctx context.Context, sessionID int64) (*models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE id = $1
	`
	return scanSession(r.db.QueryRow(ctx, query, sessionID))
}

func (r *SessionRepository) Update(
	ctx context.Context,
	sessionID int64,
	input CreateSessionInput,
) (*models.Session, error) {
	query := `
		UPDATE sessions
		SET title = $2, starts_at = $3, duration_min = $4, platform = $5,
		    coach_id = $6, max_participants = $7, is_free = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + sessionColumns
	return scanSession(r.db.QueryRow(
		ctx,
		query,
		sessionID,
		input.Title,
		input.StartsAt,
		input.DurationMinutes,
		input.Platform,
		input.CoachID,
		input.MaxParticipants,
		input.IsFree,
	))
}

func (r *SessionRepository) Delete(ctx context.Context, sessionID int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, sessionID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListUpcoming returns sessions whose nominal end has not passed yet,
// soonest first. When freeOnly is set, paid sessions are filtered out.
func (r *SessionRepository) ListUpcoming(ctx context.Context, freeOnly bool) ([]models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE (starts_at + (duration_min * INTERVAL '1 minute')) > NOW()
	`
	if freeOnly {
		query += ` AND is_free`
	}
	query += ` ORDER BY starts_at ASC, id ASC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]models.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}
