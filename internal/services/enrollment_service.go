package services

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/narbek-a/KidsClubBack/internal/models"
	"github.com/narbek-a/KidsClubBack/internal/repository"
)

var (
	ErrAlreadyEnrolled = errors.New("already enrolled")
	ErrSessionFull     = errors.New("session full")
	ErrNotEnrolled     = errors.New("not enrolled")
)

// JoinWindow is how long before the start time the meeting link opens up.
const JoinWindow = 15 * time.Minute

// Advisory lock classes keep seat claims and solo request creation in
// separate keyspaces.
const (
	lockClassSession     = 1
	lockClassSoloRequest = 2
)

type userReader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type sessionReader interface {
	GetByID(ctx context.Context, sessionID int64) (*models.Session, error)
	ListUpcoming(ctx context.Context, freeOnly bool) ([]models.Session, error)
}

type enrollmentReader interface {
	Exists(ctx context.Context, sessionID int64, userID int64) (bool, error)
	CountBySession(ctx context.Context, sessionID int64) (int, error)
	CountBySessionIDs(ctx context.Context, sessionIDs []int64) (map[int64]int, error)
	SessionIDsByUser(ctx context.Context, userID int64) (map[int64]struct{}, error)
}

type seatCountPublisher interface {
	PublishSeatCount(sessionID int64, count int)
}

type EnrollmentService struct {
	db             *pgxpool.Pool
	sessionRepo    sessionReader
	enrollmentRepo enrollmentReader
	userRepo       userReader
	seats          seatCountPublisher
}

func NewEnrollmentService(
	db *pgxpool.Pool,
	sessionRepo sessionReader,
	enrollmentRepo enrollmentReader,
	userRepo userReader,
	seats seatCountPublisher,
) *EnrollmentService {
	return &EnrollmentService{
		db:             db,
		sessionRepo:    sessionRepo,
		enrollmentRepo: enrollmentRepo,
		userRepo:       userRepo,
		seats:          seats,
	}
}

// IsJoinable reports whether the meeting link should be offered: within
// JoinWindow of the start and before the nominal end.
func IsJoinable(session *models.Session, now time.Time) bool {
	if now.Before(session.StartsAt.Add(-JoinWindow)) {
		return false
	}
	end := session.StartsAt.Add(time.Duration(session.DurationMinutes) * time.Minute)
	return now.Before(end)
}

// Enroll claims a seat for the user. The check-then-insert runs inside a
// transaction holding an advisory lock on the session, so two callers
// racing for the last seat cannot both get it.
func (s *EnrollmentService) Enroll(
	ctx context.Context,
	userID int64,
	sessionID int64,
) (*models.SessionDetail, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txSessionRepo := repository.NewSessionRepository(tx)
	txEnrollmentRepo := repository.NewEnrollmentRepository(tx)

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1, hashint8($2))", lockClassSession, sessionID); err != nil {
		return nil, err
	}

	session, err := txSessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	enrolled, err := txEnrollmentRepo.Exists(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if enrolled {
		return nil, ErrAlreadyEnrolled
	}

	count, err := txEnrollmentRepo.CountBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if count >= session.MaxParticipants {
		return nil, ErrSessionFull
	}

	if _, err := txEnrollmentRepo.Create(ctx, sessionID, userID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrAlreadyEnrolled
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	detail := s.buildDetail(session, count+1, true, time.Now().UTC())
	if s.seats != nil {
		s.seats.PublishSeatCount(sessionID, detail.EnrollmentCount)
	}
	return detail, nil
}

// Cancel releases the user's seat. A second cancel for the same pair
// reports ErrNotEnrolled rather than touching the count again.
func (s *EnrollmentService) Cancel(
	ctx context.Context,
	userID int64,
	sessionID int64,
) (*models.SessionDetail, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txSessionRepo := repository.NewSessionRepository(tx)
	txEnrollmentRepo := repository.NewEnrollmentRepository(tx)

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1, hashint8($2))", lockClassSession, sessionID); err != nil {
		return nil, err
	}

	session, err := txSessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	removed, err := txEnrollmentRepo.Delete(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if !removed {
		return nil, ErrNotEnrolled
	}

	count, err := txEnrollmentRepo.CountBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	detail := s.buildDetail(session, count, false, time.Now().UTC())
	if s.seats != nil {
		s.seats.PublishSeatCount(sessionID, detail.EnrollmentCount)
	}
	return detail, nil
}

// ListAvailable returns upcoming sessions the user may join. Users
// without a subscription only see sessions flagged free; capacity is not
// checked here, only at enroll time.
func (s *EnrollmentService) ListAvailable(
	ctx context.Context,
	userID int64,
) ([]models.SessionDetail, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	freeOnly := user.Role == "user" && !user.HasSubscription
	sessions, err := s.sessionRepo.ListUpcoming(ctx, freeOnly)
	if err != nil {
		return nil, err
	}

	sessionIDs := make([]int64, 0, len(sessions))
	for _, session := range sessions {
		sessionIDs = append(sessionIDs, session.ID)
	}

	counts, err := s.enrollmentRepo.CountBySessionIDs(ctx, sessionIDs)
	if err != nil {
		return nil, err
	}
	mine, err := s.enrollmentRepo.SessionIDsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	details := make([]models.SessionDetail, 0, len(sessions))
	for _, session := range sessions {
		_, enrolled := mine[session.ID]
		sessionCopy := session
		details = append(details, *s.buildDetail(&sessionCopy, counts[session.ID], enrolled, now))
	}

	return details, nil
}

func (s *EnrollmentService) GetSession(
	ctx context.Context,
	userID int64,
	sessionID int64,
) (*models.SessionDetail, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	count, err := s.enrollmentRepo.CountBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	enrolled, err := s.enrollmentRepo.Exists(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	return s.buildDetail(session, count, enrolled, time.Now().UTC()), nil
}

func (s *EnrollmentService) buildDetail(
	session *models.Session,
	count int,
	enrolled bool,
	now time.Time,
) *models.SessionDetail {
	return &models.SessionDetail{
		Session:         *session,
		EnrollmentCount: count,
		Enrolled:        enrolled,
		Joinable:        IsJoinable(session, now),
	}
}
