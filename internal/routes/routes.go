package routes

import (
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/narbek-a/KidsClubBack/internal/config"
	"github.com/narbek-a/KidsClubBack/internal/handlers"
	"github.com/narbek-a/KidsClubBack/internal/middleware"
	"github.com/narbek-a/KidsClubBack/internal/repository"
	"github.com/narbek-a/KidsClubBack/internal/services"
	seatws "github.com/narbek-a/KidsClubBack/internal/websocket"
)

func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool) {
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	soloRequestRepo := repository.NewSoloRequestRepository(db)
	paymentRepo := repository.NewPaymentAttemptRepository(db)

	seatHub := seatws.NewHub()
	go seatHub.Run()

	gateway := services.NewHTTPPaymentGateway(
		cfg.PaymentGatewayURL,
		cfg.PaymentMerchantID,
		cfg.PaymentAPIKey,
	)

	enrollmentService := services.NewEnrollmentService(db, sessionRepo, enrollmentRepo, userRepo, seatHub)
	soloRequestService := services.NewSoloRequestService(db, soloRequestRepo)
	paymentService := services.NewPaymentService(
		db,
		soloRequestRepo,
		paymentRepo,
		gateway,
		services.Pricing{
			DomesticCountry:       cfg.DomesticCountry,
			DomesticAmount:        cfg.DomesticPrice,
			DomesticCurrency:      cfg.DomesticCurrency,
			InternationalAmount:   cfg.InternationalPrice,
			InternationalCurrency: cfg.InternationalCurrency,
		},
		cfg.PaymentCallbackURL,
		cfg.PaymentCallbackSecret,
	)

	authHandler := handlers.NewAuthHandler(userRepo, cfg.JWTSecret)
	sessionHandler := handlers.NewSessionHandler(enrollmentService)
	soloHandler := handlers.NewSoloRequestHandler(soloRequestService)
	paymentHandler := handlers.NewPaymentHandler(paymentService)
	adminHandler := handlers.NewAdminHandler(sessionRepo, enrollmentRepo, soloRequestService)
	seatFeedHandler := handlers.NewSeatFeedHandler(seatHub)

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", middleware.AuthRequired(cfg.JWTSecret), authHandler.Me)

	// Gateway callback is public; authenticity comes from the signature.
	api.Post("/payments/callback", paymentHandler.Callback)

	authProtected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	sessions := authProtected.Group("/sessions")
	sessions.Get("", sessionHandler.ListSessions)
	sessions.Get("/:id", sessionHandler.GetSession)
	sessions.Post("/:id/enroll", sessionHandler.Enroll)
	sessions.Delete("/:id/enroll", sessionHandler.CancelEnrollment)

	solo := authProtected.Group("/solo-requests")
	solo.Post("", soloHandler.CreateRequest)
	solo.Get("/me", soloHandler.GetMyRequest)
	solo.Post("/pay", paymentHandler.InitiatePayment)

	admin := authProtected.Group("/admin", middleware.AdminRequired())

	adminSessions := admin.Group("/sessions")
	adminSessions.Get("", adminHandler.ListSessions)
	adminSessions.Post("", adminHandler.CreateSession)
	adminSessions.Put("/:id", adminHandler.UpdateSession)
	adminSessions.Delete("/:id", adminHandler.DeleteSession)

	adminSolo := admin.Group("/solo-requests")
	adminSolo.Get("", adminHandler.ListSoloRequests)
	adminSolo.Put("/:id/approve", adminHandler.ApproveSoloRequest)
	adminSolo.Put("/:id/reject", adminHandler.RejectSoloRequest)
	adminSolo.Put("/:id", adminHandler.EditSoloRequest)

	authProtected.Use("/ws/sessions/:id", seatFeedHandler.Upgrade)
	authProtected.Get("/ws/sessions/:id", websocket.New(seatFeedHandler.HandleWebSocket))
}
