package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/narbek-a/KidsClubBack/internal/models"
	"github.com/narbek-a/KidsClubBack/internal/services"
)

type soloRequestApplicationService interface {
	CreateRequest(ctx context.Context, userID int64, input services.CreateSoloRequestInput) (*models.SoloSessionRequest, error)
	GetCurrent(ctx context.Context, userID int64) (*models.SoloSessionRequest, error)
}

type SoloRequestHandler struct {
	service soloRequestApplicationService
}

func NewSoloRequestHandler(service *services.SoloRequestService) *SoloRequestHandler {
	return &SoloRequestHandler{service: service}
}

type createSoloRequestBody struct {
	CoachID       *int64  `json:"coach_id"`
	Notes         *string `json:"notes"`
	PreferredTime *string `json:"preferred_time"`
}

func (h *SoloRequestHandler) CreateRequest(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req createSoloRequestBody
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if req.CoachID != nil && *req.CoachID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid coach id"})
	}
	if req.Notes != nil && strings.TrimSpace(*req.Notes) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "notes must not be empty"})
	}

	var preferredTime *time.Time
	if req.PreferredTime != nil {
		parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(*req.PreferredTime))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).
				JSON(fiber.Map{"error": "preferred_time must be a valid RFC3339 timestamp"})
		}
		utc := parsed.UTC()
		preferredTime = &utc
	}

	request, err := h.service.CreateRequest(c.Context(), userID, services.CreateSoloRequestInput{
		CoachID:       req.CoachID,
		Notes:         req.Notes,
		PreferredTime: preferredTime,
	})
	if err != nil {
		return mapSoloRequestError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"request": request})
}

func (h *SoloRequestHandler) GetMyRequest(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	request, err := h.service.GetCurrent(c.Context(), userID)
	if err != nil {
		return mapSoloRequestError(c, err)
	}

	return c.JSON(fiber.Map{"request": request})
}

func mapSoloRequestError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrActiveRequestExists):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "You already have an open request"})
	case errors.Is(err, services.ErrMissingMeetingLink), errors.Is(err, services.ErrMissingRejectionReason):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidTransition):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "Request is not in a state that allows this action"})
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Request not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process request"})
	}
}
