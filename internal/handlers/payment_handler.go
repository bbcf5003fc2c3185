package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/narbek-a/KidsClubBack/internal/models"
	"github.com/narbek-a/KidsClubBack/internal/services"
)

type paymentApplicationService interface {
	Initiate(ctx context.Context, userID int64, locationHint string) (*services.PaymentRedirect, error)
	Reconcile(ctx context.Context, callback services.PaymentCallback) (*models.SoloSessionRequest, error)
}

type PaymentHandler struct {
	service paymentApplicationService
}

func NewPaymentHandler(service *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{service: service}
}

type initiatePaymentBody struct {
	Location string `json:"location"`
}

func (h *PaymentHandler) InitiatePayment(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req initiatePaymentBody
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	redirect, err := h.service.Initiate(c.Context(), userID, req.Location)
	if err != nil {
		return mapPaymentError(c, err)
	}

	return c.JSON(fiber.Map{"payment": redirect})
}

// Callback is the public endpoint the gateway posts transaction outcomes
// to. Authenticity is established by the signature, not by a user token.
func (h *PaymentHandler) Callback(c *fiber.Ctx) error {
	var callback services.PaymentCallback
	if err := c.BodyParser(&callback); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if callback.Reference == "" || callback.Outcome == "" || callback.Signature == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "reference, outcome and signature are required"})
	}

	request, err := h.service.Reconcile(c.Context(), callback)
	if err != nil {
		return mapPaymentError(c, err)
	}

	return c.JSON(fiber.Map{"request": request})
}

func mapPaymentError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrNoActiveRequest):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "No open request to pay for"})
	case errors.Is(err, services.ErrPaymentInitFailed):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Payment provider is unavailable, please try again"})
	case errors.Is(err, services.ErrBadSignature), errors.Is(err, services.ErrUnknownReference):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid payment callback"})
	case errors.Is(err, services.ErrInvalidTransition):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "Request is not in a payable state"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process payment"})
	}
}
