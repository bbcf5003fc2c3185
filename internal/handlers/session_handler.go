package handlers

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/narbek-a/KidsClubBack/internal/models"
	"github.com/narbek-a/KidsClubBack/internal/services"
)

type enrollmentApplicationService interface {
	ListAvailable(ctx context.Context, userID int64) ([]models.SessionDetail, error)
	GetSession(ctx context.Context, userID int64, sessionID int64) (*models.SessionDetail, error)
	Enroll(ctx context.Context, userID int64, sessionID int64) (*models.SessionDetail, error)
	Cancel(ctx context.Context, userID int64, sessionID int64) (*models.SessionDetail, error)
}

type SessionHandler struct {
	service enrollmentApplicationService
}

func NewSessionHandler(service *services.EnrollmentService) *SessionHandler {
	return &SessionHandler{service: service}
}

func (h *SessionHandler) ListSessions(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	sessions, err := h.service.ListAvailable(c.Context(), userID)
	if err != nil {
		return mapEnrollmentError(c, err)
	}

	return c.JSON(fiber.Map{"sessions": sessions})
}

func (h *SessionHandler) GetSession(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	sessionID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || sessionID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	session, err := h.service.GetSession(c.Context(), userID, sessionID)
	if err != nil {
		return mapEnrollmentError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) Enroll(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	sessionID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || sessionID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	session, err := h.service.Enroll(c.Context(), userID, sessionID)
	if err != nil {
		return mapEnrollmentError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) CancelEnrollment(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	sessionID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || sessionID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	session, err := h.service.Cancel(c.Context(), userID, sessionID)
	if err != nil {
		return mapEnrollmentError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func mapEnrollmentError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrAlreadyEnrolled):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "You have already joined this session"})
	case errors.Is(err, services.ErrSessionFull):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "No seats left for this session"})
	case errors.Is(err, services.ErrNotEnrolled):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "You are not enrolled in this session"})
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process session request"})
	}
}
