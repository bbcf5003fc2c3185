package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/narbek-a/KidsClubBack/internal/models"
	"github.com/narbek-a/KidsClubBack/internal/repository"
)

type stubSoloRequestStore struct {
	request *models.SoloSessionRequest
	getErr  error
	casErr  error

	approvedLink   string
	approvedAt     *time.Time
	rejectedReason string
	scheduleLink   string
}

func (s *stubSoloRequestStore) GetByID(_ context.Context, _ int64) (*models.SoloSessionRequest, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.request, nil
}

func (s *stubSoloRequestStore) GetLatestByUser(_ context.Context, _ int64) (*models.SoloSessionRequest, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.request, nil
}

func (s *stubSoloRequestStore) List(_ context.Context, _ repository.SoloRequestListFilter) ([]models.SoloSessionRequest, error) {
	if s.request == nil {
		return nil, nil
	}
	return []models.SoloSessionRequest{*s.request}, nil
}

func (s *stubSoloRequestStore) Count(_ context.Context, _ string) (int, error) {
	if s.request == nil {
		return 0, nil
	}
	return 1, nil
}

func (s *stubSoloRequestStore) UpdateToApproved(_ context.Context, _ int64, meetingLink string, scheduledAt *time.Time) (*models.SoloSessionRequest, error) {
	if s.casErr != nil {
		return nil, s.casErr
	}
	s.approvedLink = meetingLink
	s.approvedAt = scheduledAt
	return s.request, nil
}

func (s *stubSoloRequestStore) UpdateToRejected(_ context.Context, _ int64, reason string) (*models.SoloSessionRequest, error) {
	if s.casErr != nil {
		return nil, s.casErr
	}
	s.rejectedReason = reason
	return s.request, nil
}

func (s *stubSoloRequestStore) UpdateSchedule(_ context.Context, _ int64, meetingLink string, _ *time.Time) (*models.SoloSessionRequest, error) {
	if s.casErr != nil {
		return nil, s.casErr
	}
	s.scheduleLink = meetingLink
	return s.request, nil
}

func TestApproveRequiresMeetingLink(t *testing.T) {
	store := &stubSoloRequestStore{}
	service := NewSoloRequestService(nil, store)

	_, err := service.Approve(context.Background(), 1, "   ", nil)
	if !errors.Is(err, ErrMissingMeetingLink) {
		t.Fatalf("expected ErrMissingMeetingLink, got %v", err)
	}
	if store.approvedLink != "" {
		t.Fatalf("store should not be touched on validation failure")
	}
}

func TestApprovePassesTrimmedLinkAndSchedule(t *testing.T) {
	scheduledAt := time.Date(2026, 9, 3, 15, 0, 0, 0, time.UTC)
	store := &stubSoloRequestStore{
		request: &models.SoloSessionRequest{ID: 1, Status: models.SoloStatusApproved},
	}
	service := NewSoloRequestService(nil, store)

	request, err := service.Approve(context.Background(), 1, "  https://meet.example/abc  ", &scheduledAt)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if store.approvedLink != "https://meet.example/abc" {
		t.Fatalf("expected trimmed link, got %q", store.approvedLink)
	}
	if store.approvedAt == nil || !store.approvedAt.Equal(scheduledAt) {
		t.Fatalf("expected scheduled time to pass through, got %v", store.approvedAt)
	}
	if request.Status != models.SoloStatusApproved {
		t.Fatalf("expected approved request back, got %q", request.Status)
	}
}

func TestRejectRequiresReason(t *testing.T) {
	store := &stubSoloRequestStore{}
	service := NewSoloRequestService(nil, store)

	_, err := service.Reject(context.Background(), 1, "")
	if !errors.Is(err, ErrMissingRejectionReason) {
		t.Fatalf("expected ErrMissingRejectionReason, got %v", err)
	}
}

func TestRejectStoresReasonVerbatim(t *testing.T) {
	store := &stubSoloRequestStore{
		request: &models.SoloSessionRequest{ID: 1, Status: models.SoloStatusRejected},
	}
	service := NewSoloRequestService(nil, store)

	reason := "Coach unavailable that week"
	if _, err := service.Reject(context.Background(), 1, reason); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if store.rejectedReason != reason {
		t.Fatalf("expected reason %q, got %q", reason, store.rejectedReason)
	}
}

func TestApproveOnSettledRequestReportsInvalidTransition(t *testing.T) {
	store := &stubSoloRequestStore{
		request: &models.SoloSessionRequest{ID: 1, Status: models.SoloStatusRejected},
		casErr:  pgx.ErrNoRows,
	}
	service := NewSoloRequestService(nil, store)

	_, err := service.Approve(context.Background(), 1, "https://meet.example/abc", nil)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestApproveOnMissingRequestReportsNotFound(t *testing.T) {
	store := &stubSoloRequestStore{
		casErr: pgx.ErrNoRows,
		getErr: pgx.ErrNoRows,
	}
	service := NewSoloRequestService(nil, store)

	_, err := service.Approve(context.Background(), 99, "https://meet.example/abc", nil)
	if !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("expected pgx.ErrNoRows for a missing request, got %v", err)
	}
}

func TestEditRequiresMeetingLink(t *testing.T) {
	store := &stubSoloRequestStore{}
	service := NewSoloRequestService(nil, store)

	_, err := service.Edit(context.Background(), 1, " ", nil)
	if !errors.Is(err, ErrMissingMeetingLink) {
		t.Fatalf("expected ErrMissingMeetingLink, got %v", err)
	}
}

func TestEditOnPendingRequestReportsInvalidTransition(t *testing.T) {
	store := &stubSoloRequestStore{
		request: &models.SoloSessionRequest{ID: 1, Status: models.SoloStatusPending},
		casErr:  pgx.ErrNoRows,
	}
	service := NewSoloRequestService(nil, store)

	_, err := service.Edit(context.Background(), 1, "https://meet.example/new", nil)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}
