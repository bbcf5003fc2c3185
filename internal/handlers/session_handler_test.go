package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/narbek-a/KidsClubBack/internal/models"
	"github.com/narbek-a/KidsClubBack/internal/services"
)

type stubEnrollmentService struct {
	listResult    []models.SessionDetail
	listErr       error
	getResult     *models.SessionDetail
	getErr        error
	enrollResult  *models.SessionDetail
	enrollErr     error
	cancelResult  *models.SessionDetail
	cancelErr     error
	lastActorID   int64
	lastSessionID int64
}

func (s *stubEnrollmentService) ListAvailable(_ context.Context, userID int64) ([]models.SessionDetail, error) {
	s.lastActorID = userID
	return s.listResult, s.listErr
}

func (s *stubEnrollmentService) GetSession(_ context.Context, userID int64, sessionID int64) (*models.SessionDetail, error) {
	s.lastActorID = userID
	s.lastSessionID = sessionID
	return s.getResult, s.getErr
}

func (s *stubEnrollmentService) Enroll(_ context.Context, userID int64, sessionID int64) (*models.SessionDetail, error) {
	s.lastActorID = userID
	s.lastSessionID = sessionID
	return s.enrollResult, s.enrollErr
}

func (s *stubEnrollmentService) Cancel(_ context.Context, userID int64, sessionID int64) (*models.SessionDetail, error) {
	s.lastActorID = userID
	s.lastSessionID = sessionID
	return s.cancelResult, s.cancelErr
}

func newSessionTestApp(service enrollmentApplicationService, userID string) *fiber.App {
	handler := &SessionHandler{service: service}

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("role", "user")
		c.Locals("user_id", userID)
		return c.Next()
	})
	app.Get("/api/v1/sessions", handler.ListSessions)
	app.Get("/api/v1/sessions/:id", handler.GetSession)
	app.Post("/api/v1/sessions/:id/enroll", handler.Enroll)
	app.Delete("/api/v1/sessions/:id/enroll", handler.CancelEnrollment)
	return app
}

func TestEnrollReturnsCreatedSeat(t *testing.T) {
	service := &stubEnrollmentService{
		enrollResult: &models.SessionDetail{
			Session: models.Session{
				ID:              5,
				Title:           "Phonics practice",
				StartsAt:        time.Date(2026, 9, 5, 10, 0, 0, 0, time.UTC),
				DurationMinutes: 45,
				MaxParticipants: 10,
			},
			EnrollmentCount: 4,
			Enrolled:        true,
		},
	}
	app := newSessionTestApp(service, "42")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/5/enroll", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if service.lastActorID != 42 || service.lastSessionID != 5 {
		t.Fatalf("expected actor 42 session 5, got actor %d session %d", service.lastActorID, service.lastSessionID)
	}

	var body struct {
		Session models.SessionDetail `json:"session"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.Session.EnrollmentCount != 4 || !body.Session.Enrolled {
		t.Fatalf("unexpected seat payload: %+v", body.Session)
	}
}

func TestEnrollReturnsConflictWhenFull(t *testing.T) {
	service := &stubEnrollmentService{enrollErr: services.ErrSessionFull}
	app := newSessionTestApp(service, "42")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/5/enroll", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestEnrollReturnsConflictWhenAlreadyEnrolled(t *testing.T) {
	service := &stubEnrollmentService{enrollErr: services.ErrAlreadyEnrolled}
	app := newSessionTestApp(service, "42")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/5/enroll", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestCancelEnrollmentReturnsUnprocessableWhenNotEnrolled(t *testing.T) {
	service := &stubEnrollmentService{cancelErr: services.ErrNotEnrolled}
	app := newSessionTestApp(service, "42")

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/5/enroll", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
}

func TestGetSessionReturnsNotFound(t *testing.T) {
	service := &stubEnrollmentService{getErr: pgx.ErrNoRows}
	app := newSessionTestApp(service, "42")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/999", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestGetSessionRejectsBadID(t *testing.T) {
	service := &stubEnrollmentService{}
	app := newSessionTestApp(service, "42")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/abc", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestMapEnrollmentErrorDefaultsToInternalServerError(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return mapEnrollmentError(c, errors.New("boom"))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
}
