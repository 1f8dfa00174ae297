package routes

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/finzzzi/event-management-api/internal/config"
	"github.com/finzzzi/event-management-api/internal/handlers"
	"github.com/finzzzi/event-management-api/internal/middleware"
	"github.com/finzzzi/event-management-api/internal/selection"
	"github.com/finzzzi/event-management-api/internal/services"
)

// Register wires up all HTTP routes. It returns the expiry watcher so the
// caller controls its lifecycle.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config) *services.ExpiryWatcher {
	ticketService := services.NewTicketService(cfg.UploadDir)
	transactionService := services.NewTransactionService(db, ticketService)
	reportService := services.NewReportService(db)
	watcher := services.NewExpiryWatcher(db, transactionService, cfg.PaymentWindow)
	selectionStore := selection.NewStore(cfg.SelectionDir)

	authHandler := handlers.NewAuthHandler(db, cfg)
	passwordResetHandler := handlers.NewPasswordResetHandler(db)
	eventHandler := handlers.NewEventHandler(db)
	voucherHandler := handlers.NewVoucherHandler(db)
	transactionHandler := handlers.NewTransactionHandler(db, transactionService, watcher,
		selectionStore, ticketService, cfg.UploadDir)
	reviewHandler := handlers.NewReviewHandler(db)
	reportHandler := handlers.NewReportHandler(reportService)

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/reset-password", passwordResetHandler.RequestReset)
	auth.Get("/reset-password/validate", passwordResetHandler.ValidateToken)
	auth.Post("/reset-password/confirm", passwordResetHandler.ConfirmReset)

	// Public browsing
	api.Get("/events", eventHandler.ListEvents)
	api.Get("/events/detail/:id", eventHandler.GetEvent)
	api.Get("/organizers/:id", reviewHandler.OrganizerProfile)

	// Protected routes
	protected := api.Group("", middleware.AuthMiddleware(cfg))

	protected.Get("/auth/user", authHandler.GetUser)
	protected.Get("/auth/user/points", authHandler.ListPointTransactions)

	protected.Post("/transactions", transactionHandler.CreateTransaction)
	protected.Get("/transactions", transactionHandler.ListTransactions)
	protected.Get("/transactions/:id", transactionHandler.GetTransaction)
	protected.Patch("/transactions/:id", transactionHandler.ApplyDiscount)
	protected.Patch("/transactions/:id/confirm", transactionHandler.ConfirmTransaction)
	protected.Patch("/transactions/:id/payment-proof", transactionHandler.UploadPaymentProof)
	protected.Patch("/transactions/:id/cancel", transactionHandler.CancelTransaction)

	protected.Post("/reviews", reviewHandler.CreateReview)
	protected.Get("/reviews/transaction/:id", reviewHandler.GetReviewByTransaction)

	// Organizer routes
	organizer := protected.Group("", middleware.RequireOrganizer())

	organizer.Post("/events", eventHandler.CreateEvent)
	organizer.Put("/events/:id", eventHandler.UpdateEvent)
	organizer.Delete("/events/:id", eventHandler.DeleteEvent)
	organizer.Get("/events/:id/attendees", eventHandler.ListAttendees)

	organizer.Post("/vouchers", voucherHandler.CreateVoucher)
	organizer.Get("/vouchers", voucherHandler.ListVouchers)
	organizer.Put("/vouchers/:id", voucherHandler.UpdateVoucher)
	organizer.Delete("/vouchers/:id", voucherHandler.DeleteVoucher)

	organizer.Get("/organizer/transactions", transactionHandler.ListEventTransactions)
	organizer.Patch("/transactions/:id/accept", transactionHandler.AcceptTransaction)
	organizer.Patch("/transactions/:id/reject", transactionHandler.RejectTransaction)
	organizer.Get("/reports/statistics", reportHandler.GetStatistics)

	return watcher
}
