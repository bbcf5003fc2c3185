package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/narbek-a/KidsClubBack/internal/models"
	"github.com/narbek-a/KidsClubBack/internal/repository"
)

var (
	ErrActiveRequestExists    = errors.New("active request exists")
	ErrInvalidTransition      = errors.New("invalid transition")
	ErrMissingMeetingLink     = errors.New("meeting link required")
	ErrMissingRejectionReason = errors.New("rejection reason required")
)

type soloRequestStore interface {
	GetByID(ctx context.Context, requestID int64) (*models.SoloSessionRequest, error)
	GetLatestByUser(ctx context.Context, userID int64) (*models.SoloSessionRequest, error)
	List(ctx context.Context, filter repository.SoloRequestListFilter) ([]models.SoloSessionRequest, error)
	Count(ctx context.Context, status string) (int, error)
	UpdateToApproved(ctx context.Context, requestID int64, meetingLink string, scheduledAt *time.Time) (*models.SoloSessionRequest, error)
	UpdateToRejected(ctx context.Context, requestID int64, reason string) (*models.SoloSessionRequest, error)
	UpdateSchedule(ctx context.Context, requestID int64, meetingLink string, scheduledAt *time.Time) (*models.SoloSessionRequest, error)
}

type SoloRequestService struct {
	db          *pgxpool.Pool
	requestRepo soloRequestStore
}

func NewSoloRequestService(db *pgxpool.Pool, requestRepo soloRequestStore) *SoloRequestService {
	return &SoloRequestService{db: db, requestRepo: requestRepo}
}

type CreateSoloRequestInput struct {
	CoachID       *int64
	Notes         *string
	PreferredTime *time.Time
}

// CreateRequest opens a new 1:1 request for the user. A user may hold at
// most one request in pending or payment_pending; the existence check and
// insert run under an advisory lock on the user so concurrent creations
// cannot both pass the check.
func (s *SoloRequestService) CreateRequest(
	ctx context.Context,
	userID int64,
	input CreateSoloRequestInput,
) (*models.SoloSessionRequest, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txRequestRepo := repository.NewSoloRequestRepository(tx)

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1, hashint8($2))", lockClassSoloRequest, userID); err != nil {
		return nil, err
	}

	active, err := txRequestRepo.HasActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, ErrActiveRequestExists
	}

	request, err := txRequestRepo.Create(ctx, repository.CreateSoloRequestInput{
		UserID:        userID,
		CoachID:       input.CoachID,
		Notes:         input.Notes,
		PreferredTime: input.PreferredTime,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return request, nil
}

func (s *SoloRequestService) GetCurrent(
	ctx context.Context,
	userID int64,
) (*models.SoloSessionRequest, error) {
	return s.requestRepo.GetLatestByUser(ctx, userID)
}

// Approve moves a request under review to approved. The meeting link is
// mandatory; an approved request with no way to join is a dead end.
func (s *SoloRequestService) Approve(
	ctx context.Context,
	requestID int64,
	meetingLink string,
	scheduledAt *time.Time,
) (*models.SoloSessionRequest, error) {
	meetingLink = strings.TrimSpace(meetingLink)
	if meetingLink == "" {
		return nil, ErrMissingMeetingLink
	}

	request, err := s.requestRepo.UpdateToApproved(ctx, requestID, meetingLink, scheduledAt)
	if err != nil {
		return nil, s.resolveTransitionError(ctx, requestID, err)
	}
	return request, nil
}

// Reject closes a request under review. The reason is mandatory because
// it is shown verbatim to the requester.
func (s *SoloRequestService) Reject(
	ctx context.Context,
	requestID int64,
	reason string,
) (*models.SoloSessionRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrMissingRejectionReason
	}

	request, err := s.requestRepo.UpdateToRejected(ctx, requestID, reason)
	if err != nil {
		return nil, s.resolveTransitionError(ctx, requestID, err)
	}
	return request, nil
}

// Edit updates link and time on an already-reviewed request without
// changing its status. Rejected and still-pending requests cannot be
// edited this way.
func (s *SoloRequestService) Edit(
	ctx context.Context,
	requestID int64,
	meetingLink string,
	scheduledAt *time.Time,
) (*models.SoloSessionRequest, error) {
	meetingLink = strings.TrimSpace(meetingLink)
	if meetingLink == "" {
		return nil, ErrMissingMeetingLink
	}

	request, err := s.requestRepo.UpdateSchedule(ctx, requestID, meetingLink, scheduledAt)
	if err != nil {
		return nil, s.resolveTransitionError(ctx, requestID, err)
	}
	return request, nil
}

func (s *SoloRequestService) ListRequests(
	ctx context.Context,
	filter repository.SoloRequestListFilter,
) ([]models.SoloSessionRequest, int, error) {
	requests, err := s.requestRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.requestRepo.Count(ctx, filter.Status)
	if err != nil {
		return nil, 0, err
	}
	return requests, total, nil
}

// resolveTransitionError tells a missing request apart from one in the
// wrong state: the conditional update matched no row in either case.
func (s *SoloRequestService) resolveTransitionError(
	ctx context.Context,
	requestID int64,
	err error,
) error {
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	if _, getErr := s.requestRepo.GetByID(ctx, requestID); getErr != nil {
		return getErr
	}
	return ErrInvalidTransition
}
