package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/narbek-a/KidsClubBack/internal/models"
	"github.com/narbek-a/KidsClubBack/internal/repository"
)

var (
	ErrNoActiveRequest   = errors.New("no active request")
	ErrPaymentInitFailed = errors.New("payment init failed")
	ErrUnknownReference  = errors.New("unknown payment reference")
	ErrBadSignature      = errors.New("bad callback signature")
)

const (
	CallbackOutcomeSuccess = "success"
	CallbackOutcomeFailed  = "failed"
)

// Pricing holds the two-tier price list. Location is an explicit input to
// Initiate, never ambient state, so pricing stays deterministic.
type Pricing struct {
	DomesticCountry       string
	DomesticAmount        float64
	DomesticCurrency      string
	InternationalAmount   float64
	InternationalCurrency string
}

func (p Pricing) For(locationHint string) (float64, string) {
	if strings.EqualFold(strings.TrimSpace(locationHint), p.DomesticCountry) {
		return p.DomesticAmount, p.DomesticCurrency
	}
	return p.InternationalAmount, p.InternationalCurrency
}

type payableRequestStore interface {
	GetByID(ctx context.Context, requestID int64) (*models.SoloSessionRequest, error)
	GetLatestByUser(ctx context.Context, userID int64) (*models.SoloSessionRequest, error)
	UpdateStatusIfCurrent(ctx context.Context, requestID int64, currentStatus string, nextStatus string) (*models.SoloSessionRequest, error)
}

type paymentAttemptStore interface {
	Create(ctx context.Context, input repository.CreatePaymentAttemptInput) (*models.PaymentAttempt, error)
	UpdateStatusIfCurrent(ctx context.Context, attemptID int64, currentStatus string, nextStatus string) (*models.PaymentAttempt, error)
}

type PaymentService struct {
	db             *pgxpool.Pool
	requestRepo    payableRequestStore
	paymentRepo    paymentAttemptStore
	gateway        PaymentGateway
	pricing        Pricing
	callbackURL    string
	callbackSecret string
}

func NewPaymentService(
	db *pgxpool.Pool,
	requestRepo payableRequestStore,
	paymentRepo paymentAttemptStore,
	gateway PaymentGateway,
	pricing Pricing,
	callbackURL string,
	callbackSecret string,
) *PaymentService {
	return &PaymentService{
		db:             db,
		requestRepo:    requestRepo,
		paymentRepo:    paymentRepo,
		gateway:        gateway,
		pricing:        pricing,
		callbackURL:    callbackURL,
		callbackSecret: callbackSecret,
	}
}

type PaymentRedirect struct {
	RedirectURL string  `json:"redirect_url"`
	Reference   string  `json:"reference"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
}

// Initiate opens a gateway transaction for the user's latest request,
// which must still be payable. A failed gateway call leaves the request
// where it was, so the user can simply retry.
func (s *PaymentService) Initiate(
	ctx context.Context,
	userID int64,
	locationHint string,
) (*PaymentRedirect, error) {
	request, err := s.requestRepo.GetLatestByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveRequest
		}
		return nil, err
	}
	// Payment may come before or after review, so an approved request is
	// still payable. Paid and rejected requests are settled.
	if !request.IsActive() && request.Status != models.SoloStatusApproved {
		return nil, ErrNoActiveRequest
	}

	amount, currency := s.pricing.For(locationHint)
	reference := uuid.NewString()

	attempt, err := s.paymentRepo.Create(ctx, repository.CreatePaymentAttemptInput{
		RequestID: request.ID,
		Reference: reference,
		Amount:    amount,
		Currency:  currency,
	})
	if err != nil {
		return nil, err
	}

	payment, err := s.gateway.CreatePayment(ctx, CreatePaymentInput{
		Reference:   reference,
		Amount:      amount,
		Currency:    currency,
		Description: fmt.Sprintf("1:1 coaching session, request #%d", request.ID),
		CallbackURL: s.callbackURL,
	})
	if err != nil {
		log.Printf("payment gateway initiate for request %d: %v", request.ID, err)
		if _, markErr := s.paymentRepo.UpdateStatusIfCurrent(
			ctx,
			attempt.ID,
			models.PaymentStatusPending,
			models.PaymentStatusFailed,
		); markErr != nil && !errors.Is(markErr, pgx.ErrNoRows) {
			log.Printf("mark payment attempt %d failed: %v", attempt.ID, markErr)
		}
		return nil, ErrPaymentInitFailed
	}

	if request.Status == models.SoloStatusPending {
		// Payment-first flow: the request now waits on the gateway. If an
		// admin approved it in the meantime it is still payable as-is.
		if _, err := s.requestRepo.UpdateStatusIfCurrent(
			ctx,
			request.ID,
			models.SoloStatusPending,
			models.SoloStatusPaymentPending,
		); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
	}

	return &PaymentRedirect{
		RedirectURL: payment.RedirectURL,
		Reference:   reference,
		Amount:      amount,
		Currency:    currency,
	}, nil
}

type PaymentCallback struct {
	Reference string `json:"reference"`
	Outcome   string `json:"outcome"`
	Signature string `json:"signature"`
}

// SignCallback computes the signature the gateway is expected to attach:
// hex HMAC-SHA256 over "reference.outcome".
func SignCallback(secret, reference, outcome string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(reference + "." + outcome))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *PaymentService) verifyCallback(callback PaymentCallback) bool {
	expected := SignCallback(s.callbackSecret, callback.Reference, callback.Outcome)
	return hmac.Equal([]byte(expected), []byte(callback.Signature))
}

// Reconcile applies a gateway callback to the request it belongs to.
// Unverifiable or unknown callbacks are dropped without touching state.
// Replays of an already-settled transaction are accepted as no-ops.
func (s *PaymentService) Reconcile(
	ctx context.Context,
	callback PaymentCallback,
) (*models.SoloSessionRequest, error) {
	if !s.verifyCallback(callback) {
		log.Printf("payment callback with bad signature for reference %q dropped", callback.Reference)
		return nil, ErrBadSignature
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txPaymentRepo := repository.NewPaymentAttemptRepository(tx)
	txRequestRepo := repository.NewSoloRequestRepository(tx)

	attempt, err := txPaymentRepo.GetByReferenceForUpdate(ctx, callback.Reference)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			log.Printf("payment callback for unknown reference %q dropped", callback.Reference)
			return nil, ErrUnknownReference
		}
		return nil, err
	}

	if attempt.Status == models.PaymentStatusSucceeded {
		// Replayed callback for a settled transaction.
		return txRequestRepo.GetByID(ctx, attempt.RequestID)
	}

	if callback.Outcome != CallbackOutcomeSuccess {
		if _, err := txPaymentRepo.UpdateStatusIfCurrent(
			ctx,
			attempt.ID,
			models.PaymentStatusPending,
			models.PaymentStatusFailed,
		); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
		return s.requestRepo.GetByID(ctx, attempt.RequestID)
	}

	if _, err := txPaymentRepo.UpdateStatusIfCurrent(
		ctx,
		attempt.ID,
		attempt.Status,
		models.PaymentStatusSucceeded,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}

	request, err := txRequestRepo.MarkPaid(ctx, attempt.RequestID, attempt.Reference)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			current, getErr := txRequestRepo.GetByIDForUpdate(ctx, attempt.RequestID)
			if getErr != nil {
				return nil, getErr
			}
			if current.Status == models.SoloStatusPaid {
				if err := tx.Commit(ctx); err != nil {
					return nil, err
				}
				return current, nil
			}
			log.Printf("payment callback for request %d in state %q dropped", current.ID, current.Status)
			return nil, ErrInvalidTransition
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return request, nil
}
