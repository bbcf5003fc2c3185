package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/narbek-a/KidsClubBack/internal/models"
	"github.com/narbek-a/KidsClubBack/internal/repository"
	"github.com/narbek-a/KidsClubBack/internal/services"
)

type soloReviewService interface {
	Approve(ctx context.Context, requestID int64, meetingLink string, scheduledAt *time.Time) (*models.SoloSessionRequest, error)
	Reject(ctx context.Context, requestID int64, reason string) (*models.SoloSessionRequest, error)
	Edit(ctx context.Context, requestID int64, meetingLink string, scheduledAt *time.Time) (*models.SoloSessionRequest, error)
	ListRequests(ctx context.Context, filter repository.SoloRequestListFilter) ([]models.SoloSessionRequest, int, error)
}

type AdminHandler struct {
	sessionRepo    *repository.SessionRepository
	enrollmentRepo *repository.EnrollmentRepository
	soloService    soloReviewService
}

func NewAdminHandler(
	sessionRepo *repository.SessionRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	soloService *services.SoloRequestService,
) *AdminHandler {
	return &AdminHandler{
		sessionRepo:    sessionRepo,
		enrollmentRepo: enrollmentRepo,
		soloService:    soloService,
	}
}

type sessionBody struct {
	Title           string `json:"title"`
	StartsAt        string `json:"starts_at"`
	DurationMinutes int    `json:"duration_minutes"`
	Platform        string `json:"platform"`
	CoachID         *int64 `json:"coach_id"`
	MaxParticipants int    `json:"max_participants"`
	IsFree          bool   `json:"is_free"`
}

func parseSessionBody(c *fiber.Ctx) (*repository.CreateSessionInput, error) {
	var req sessionBody
	if err := c.BodyParser(&req); err != nil {
		return nil, errors.New("Invalid request body")
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return nil, errors.New("title is required")
	}
	startsAt, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartsAt))
	if err != nil {
		return nil, errors.New("starts_at must be a valid RFC3339 timestamp")
	}
	if req.DurationMinutes <= 0 {
		return nil, errors.New("duration_minutes must be greater than 0")
	}
	if req.MaxParticipants <= 0 {
		return nil, errors.New("max_participants must be greater than 0")
	}
	if req.CoachID != nil && *req.CoachID <= 0 {
		return nil, errors.New("Invalid coach id")
	}

	return &repository.CreateSessionInput{
		Title:           req.Title,
		StartsAt:        startsAt.UTC(),
		DurationMinutes: req.DurationMinutes,
		Platform:        strings.TrimSpace(req.Platform),
		CoachID:         req.CoachID,
		MaxParticipants: req.MaxParticipants,
		IsFree:          req.IsFree,
	}, nil
}

func (h *AdminHandler) CreateSession(c *fiber.Ctx) error {
	input, err := parseSessionBody(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	session, err := h.sessionRepo.Create(c.Context(), *input)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to create session"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"session": session})
}

func (h *AdminHandler) UpdateSession(c *fiber.Ctx) error {
	sessionID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || sessionID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	input, err := parseSessionBody(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	session, err := h.sessionRepo.Update(c.Context(), sessionID, *input)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
		}
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to update session"})
	}

	return c.JSON(fiber.Map{"session": session})
}

// DeleteSession removes the session; enrollments go with it via the
// cascade on the join table.
func (h *AdminHandler) DeleteSession(c *fiber.Ctx) error {
	sessionID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || sessionID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	removed, err := h.sessionRepo.Delete(c.Context(), sessionID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to delete session"})
	}
	if !removed {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AdminHandler) ListSessions(c *fiber.Ctx) error {
	sessions, err := h.sessionRepo.ListUpcoming(c.Context(), false)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to list sessions"})
	}

	sessionIDs := make([]int64, 0, len(sessions))
	for _, session := range sessions {
		sessionIDs = append(sessionIDs, session.ID)
	}
	counts, err := h.enrollmentRepo.CountBySessionIDs(c.Context(), sessionIDs)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to list sessions"})
	}

	details := make([]models.SessionDetail, 0, len(sessions))
	for _, session := range sessions {
		details = append(details, models.SessionDetail{
			Session:         session,
			EnrollmentCount: counts[session.ID],
		})
	}

	return c.JSON(fiber.Map{"sessions": details})
}

func (h *AdminHandler) ListSoloRequests(c *fiber.Ctx) error {
	status := strings.TrimSpace(c.Query("status"))
	page, limit := parsePageParams(c)

	requests, total, err := h.soloService.ListRequests(c.Context(), repository.SoloRequestListFilter{
		Status: status,
		Offset: (page - 1) * limit,
		Limit:  limit,
	})
	if err != nil {
		return mapSoloRequestError(c, err)
	}

	return c.JSON(fiber.Map{
		"requests":   requests,
		"pagination": buildPaginationMeta(page, limit, total),
	})
}

type reviewRequestBody struct {
	MeetingLink string  `json:"meeting_link"`
	ScheduledAt *string `json:"scheduled_at"`
	Reason      string  `json:"reason"`
}

func parseReviewBody(c *fiber.Ctx) (*reviewRequestBody, *time.Time, error) {
	var req reviewRequestBody
	if err := c.BodyParser(&req); err != nil {
		return nil, nil, errors.New("Invalid request body")
	}

	var scheduledAt *time.Time
	if req.ScheduledAt != nil {
		parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(*req.ScheduledAt))
		if err != nil {
			return nil, nil, errors.New("scheduled_at must be a valid RFC3339 timestamp")
		}
		utc := parsed.UTC()
		scheduledAt = &utc
	}

	return &req, scheduledAt, nil
}

func (h *AdminHandler) ApproveSoloRequest(c *fiber.Ctx) error {
	requestID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || requestID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request id"})
	}

	req, scheduledAt, err := parseReviewBody(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	request, err := h.soloService.Approve(c.Context(), requestID, req.MeetingLink, scheduledAt)
	if err != nil {
		return mapSoloRequestError(c, err)
	}

	return c.JSON(fiber.Map{"request": request})
}

func (h *AdminHandler) RejectSoloRequest(c *fiber.Ctx) error {
	requestID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || requestID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request id"})
	}

	req, _, err := parseReviewBody(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	request, err := h.soloService.Reject(c.Context(), requestID, req.Reason)
	if err != nil {
		return mapSoloRequestError(c, err)
	}

	return c.JSON(fiber.Map{"request": request})
}

func (h *AdminHandler) EditSoloRequest(c *fiber.Ctx) error {
	requestID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || requestID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request id"})
	}

	req, scheduledAt, err := parseReviewBody(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	request, err := h.soloService.Edit(c.Context(), requestID, req.MeetingLink, scheduledAt)
	if err != nil {
		return mapSoloRequestError(c, err)
	}

	return c.JSON(fiber.Map{"request": request})
}
