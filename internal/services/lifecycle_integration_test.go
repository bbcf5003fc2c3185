package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/narbek-a/KidsClubBack/internal/models"
	"github.com/narbek-a/KidsClubBack/internal/repository"
)

var (
	testDBOnce sync.Once
	testDBPool *pgxpool.Pool
	testDBErr  error
)

func TestEnrollmentServiceLastSeatRace(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	service := newIntegrationEnrollmentService(pool)

	firstID := createTestAccount(t, ctx, pool, "user")
	secondID := createTestAccount(t, ctx, pool, "user")
	thirdID := createTestAccount(t, ctx, pool, "user")
	coachID := createTestAccount(t, ctx, pool, "admin")
	t.Cleanup(func() { cleanupTestUsers(t, ctx, pool, firstID, secondID, thirdID, coachID) })

	session := createTestSession(t, ctx, pool, coachID, 2)

	userIDs := []int64{firstID, secondID, thirdID}
	results := make(chan error, len(userIDs))
	for _, userID := range userIDs {
		go func(id int64) {
			_, err := service.Enroll(ctx, id, session.ID)
			results <- err
		}(userID)
	}

	var enrolled, full int
	for range userIDs {
		switch err := <-results; {
		case err == nil:
			enrolled++
		case errors.Is(err, ErrSessionFull):
			full++
		default:
			t.Fatalf("unexpected enroll error: %v", err)
		}
	}

	if enrolled != 2 || full != 1 {
		t.Fatalf("expected 2 enrolled and 1 rejected, got %d enrolled, %d rejected", enrolled, full)
	}

	count, err := repository.NewEnrollmentRepository(pool).CountBySession(ctx, session.ID)
	if err != nil {
		t.Fatalf("CountBySession: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 stored enrollments, got %d", count)
	}
}

func TestEnrollmentServiceDoubleEnrollAndDoubleCancel(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	service := newIntegrationEnrollmentService(pool)

	userID := createTestAccount(t, ctx, pool, "user")
	coachID := createTestAccount(t, ctx, pool, "admin")
	t.Cleanup(func() { cleanupTestUsers(t, ctx, pool, userID, coachID) })

	session := createTestSession(t, ctx, pool, coachID, 5)

	if _, err := service.Enroll(ctx, userID, session.ID); err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if _, err := service.Enroll(ctx, userID, session.ID); !errors.Is(err, ErrAlreadyEnrolled) {
		t.Fatalf("expected ErrAlreadyEnrolled, got %v", err)
	}

	detail, err := service.Cancel(ctx, userID, session.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if detail.EnrollmentCount != 0 {
		t.Fatalf("expected count 0 after cancel, got %d", detail.EnrollmentCount)
	}

	if _, err := service.Cancel(ctx, userID, session.ID); !errors.Is(err, ErrNotEnrolled) {
		t.Fatalf("expected ErrNotEnrolled on second cancel, got %v", err)
	}
}

func TestSoloRequestServiceSingleActiveRequest(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	service := NewSoloRequestService(pool, repository.NewSoloRequestRepository(pool))

	userID := createTestAccount(t, ctx, pool, "user")
	t.Cleanup(func() { cleanupTestUsers(t, ctx, pool, userID) })

	notes := "Wants help with reading practice"
	request, err := service.CreateRequest(ctx, userID, CreateSoloRequestInput{Notes: &notes})
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	if request.Status != models.SoloStatusPending {
		t.Fatalf("expected pending request, got %q", request.Status)
	}

	if _, err := service.CreateRequest(ctx, userID, CreateSoloRequestInput{Notes: &notes}); !errors.Is(err, ErrActiveRequestExists) {
		t.Fatalf("expected ErrActiveRequestExists, got %v", err)
	}

	if _, err := service.Reject(ctx, request.ID, "No capacity this month"); err != nil {
		t.Fatalf("Reject: %v", err)
	}

	reopened, err := service.CreateRequest(ctx, userID, CreateSoloRequestInput{Notes: &notes})
	if err != nil {
		t.Fatalf("CreateRequest after rejection: %v", err)
	}
	if reopened.ID == request.ID {
		t.Fatalf("expected a fresh request after rejection")
	}
}

func TestPaymentServiceReconcileIsIdempotent(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)

	userID := createTestAccount(t, ctx, pool, "user")
	t.Cleanup(func() { cleanupTestUsers(t, ctx, pool, userID) })

	requestService := NewSoloRequestService(pool, repository.NewSoloRequestRepository(pool))
	notes := "Evening slot preferred"
	request, err := requestService.CreateRequest(ctx, userID, CreateSoloRequestInput{Notes: &notes})
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}

	secret := "integration-secret"
	paymentService := NewPaymentService(
		pool,
		repository.NewSoloRequestRepository(pool),
		repository.NewPaymentAttemptRepository(pool),
		&stubGateway{},
		testPricing(),
		"https://api.example/payments/callback",
		secret,
	)

	redirect, err := paymentService.Initiate(ctx, userID, "KZ")
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	callback := PaymentCallback{
		Reference: redirect.Reference,
		Outcome:   CallbackOutcomeSuccess,
		Signature: SignCallback(secret, redirect.Reference, CallbackOutcomeSuccess),
	}

	settled, err := paymentService.Reconcile(ctx, callback)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if settled.ID != request.ID || settled.Status != models.SoloStatusPaid {
		t.Fatalf("expected request %d paid, got %+v", request.ID, settled)
	}
	if settled.TransactionRef == nil || *settled.TransactionRef != redirect.Reference {
		t.Fatalf("expected transaction ref %q, got %v", redirect.Reference, settled.TransactionRef)
	}

	replayed, err := paymentService.Reconcile(ctx, callback)
	if err != nil {
		t.Fatalf("Reconcile replay: %v", err)
	}
	if replayed.Status != models.SoloStatusPaid {
		t.Fatalf("expected replay to report the paid request, got %q", replayed.Status)
	}
}

func TestPaymentServiceApprovalFirstFlow(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)

	userID := createTestAccount(t, ctx, pool, "user")
	t.Cleanup(func() { cleanupTestUsers(t, ctx, pool, userID) })

	requestService := NewSoloRequestService(pool, repository.NewSoloRequestRepository(pool))
	notes := "Morning slot preferred"
	request, err := requestService.CreateRequest(ctx, userID, CreateSoloRequestInput{Notes: &notes})
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}

	approved, err := requestService.Approve(ctx, request.ID, "https://meet.example/solo", nil)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if approved.Status != models.SoloStatusApproved {
		t.Fatalf("expected approved request, got %q", approved.Status)
	}

	secret := "integration-secret"
	paymentService := NewPaymentService(
		pool,
		repository.NewSoloRequestRepository(pool),
		repository.NewPaymentAttemptRepository(pool),
		&stubGateway{},
		testPricing(),
		"https://api.example/payments/callback",
		secret,
	)

	redirect, err := paymentService.Initiate(ctx, userID, "KZ")
	if err != nil {
		t.Fatalf("Initiate on approved request: %v", err)
	}

	afterInitiate, err := repository.NewSoloRequestRepository(pool).GetByID(ctx, request.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if afterInitiate.Status != models.SoloStatusApproved {
		t.Fatalf("initiate must leave an approved request approved, got %q", afterInitiate.Status)
	}

	settled, err := paymentService.Reconcile(ctx, PaymentCallback{
		Reference: redirect.Reference,
		Outcome:   CallbackOutcomeSuccess,
		Signature: SignCallback(secret, redirect.Reference, CallbackOutcomeSuccess),
	})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if settled.Status != models.SoloStatusPaid {
		t.Fatalf("expected paid request, got %q", settled.Status)
	}
	if settled.MeetingLink == nil || *settled.MeetingLink != "https://meet.example/solo" {
		t.Fatalf("meeting link must survive payment, got %v", settled.MeetingLink)
	}
}

func integrationTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	testDBOnce.Do(func() {
		_ = godotenv.Load(".env")
		_ = godotenv.Load(filepath.Join("..", "..", ".env"))

		dbURL := os.Getenv("DB_URL")
		if dbURL == "" {
			testDBErr = fmt.Errorf("DB_URL is not set")
			return
		}

		cfg, err := pgxpool.ParseConfig(dbURL)
		if err != nil {
			testDBErr = err
			return
		}

		testDBPool, testDBErr = pgxpool.NewWithConfig(context.Background(), cfg)
		if testDBErr != nil {
			return
		}
		testDBErr = testDBPool.Ping(context.Background())
	})

	if testDBErr != nil {
		t.Skipf("skipping integration test: %v", testDBErr)
	}
	return testDBPool
}

func newIntegrationEnrollmentService(pool *pgxpool.Pool) *EnrollmentService {
	return NewEnrollmentService(
		pool,
		repository.NewSessionRepository(pool),
		repository.NewEnrollmentRepository(pool),
		repository.NewUserRepository(pool),
		nil,
	)
}

func createTestAccount(t *testing.T, ctx context.Context, pool *pgxpool.Pool, role string) int64 {
	t.Helper()

	userRepo := repository.NewUserRepository(pool)
	user := &models.User{
		Email:        fmt.Sprintf("lifecycle-test-%s-%d@example.com", role, time.Now().UnixNano()),
		PasswordHash: "test-hash",
		Role:         role,
	}
	if err := userRepo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser(%s): %v", role, err)
	}
	return user.ID
}

func createTestSession(t *testing.T, ctx context.Context, pool *pgxpool.Pool, coachID int64, maxParticipants int) *models.Session {
	t.Helper()

	session, err := repository.NewSessionRepository(pool).Create(ctx, repository.CreateSessionInput{
		Title:           "Phonics practice",
		StartsAt:        time.Now().UTC().Add(24 * time.Hour),
		DurationMinutes: 45,
		Platform:        "zoom",
		CoachID:         &coachID,
		MaxParticipants: maxParticipants,
		IsFree:          true,
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return session
}

func cleanupTestUsers(t *testing.T, ctx context.Context, pool *pgxpool.Pool, userIDs ...int64) {
	t.Helper()

	if len(userIDs) == 0 {
		return
	}

	if _, err := pool.Exec(ctx, "DELETE FROM payment_attempts WHERE request_id IN (SELECT id FROM solo_session_requests WHERE user_id = ANY($1))", userIDs); err != nil {
		t.Fatalf("cleanup payment attempts: %v", err)
	}
	if _, err := pool.Exec(ctx, "DELETE FROM solo_session_requests WHERE user_id = ANY($1) OR coach_id = ANY($1)", userIDs); err != nil {
		t.Fatalf("cleanup solo requests: %v", err)
	}
	if _, err := pool.Exec(ctx, "DELETE FROM enrollments WHERE user_id = ANY($1)", userIDs); err != nil {
		t.Fatalf("cleanup enrollments: %v", err)
	}
	if _, err := pool.Exec(ctx, "DELETE FROM sessions WHERE coach_id = ANY($1)", userIDs); err != nil {
		t.Fatalf("cleanup sessions: %v", err)
	}
	if _, err := pool.Exec(ctx, "DELETE FROM users WHERE id = ANY($1)", userIDs); err != nil {
		t.Fatalf("cleanup users: %v", err)
	}
}
