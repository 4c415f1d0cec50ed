package routes

import (
	"barberops-backend/firebase"
	"barberops-backend/handlers"
	"barberops-backend/ledger"
	"barberops-backend/middleware"
	"barberops-backend/notify"
	"barberops-backend/settlement"
	"barberops-backend/vouchers"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func SetupRoutes(r *gin.Engine, db *gorm.DB, push firebase.PushClient) {
	// Shared domain services
	wallets := &ledger.WalletLedger{DB: db}
	points := &ledger.PointsLedger{DB: db}
	registry := &vouchers.Registry{DB: db}
	dispatcher := &notify.Dispatcher{DB: db, Push: push}
	orchestrator := &settlement.Orchestrator{
		DB:       db,
		Wallets:  wallets,
		Points:   points,
		Vouchers: registry,
		Notifier: dispatcher,
	}

	// Initialize handlers
	authHandler := &handlers.AuthHandler{DB: db}
	catalogHandler := &handlers.CatalogHandler{DB: db}
	bookingHandler := &handlers.BookingHandler{DB: db, Notifier: dispatcher}
	transactionHandler := &handlers.TransactionHandler{DB: db, Settlement: orchestrator}
	walletHandler := &handlers.WalletHandler{DB: db, Wallets: wallets, Points: points}
	pointsHandler := &handlers.PointsHandler{DB: db, Points: points}
	voucherHandler := &handlers.VoucherHandler{DB: db, Registry: registry}
	configHandler := &handlers.LoyaltyConfigHandler{DB: db}
	notificationHandler := &handlers.NotificationHandler{DB: db}

	// Public routes
	api := r.Group("/api")
	{
		// Auth routes, rate limited per client IP
		authLimiter := middleware.NewRateLimiter(middleware.AuthLimit())
		auth := api.Group("/auth")
		auth.Use(authLimiter.Middleware())
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.RefreshTokenHandler)
			auth.POST("/forgot-password", authHandler.ForgotPassword)
			auth.POST("/reset-password", authHandler.ResetPassword)
		}

		// Public catalog routes
		api.GET("/branches", catalogHandler.ListBranches)
		api.GET("/branches/:id", catalogHandler.GetBranch)
		api.GET("/barbers", catalogHandler.ListBarbers)
		api.GET("/services", catalogHandler.ListServices)
		api.GET("/products", catalogHandler.ListProducts)
		api.GET("/products/:id", catalogHandler.GetProduct)
	}

	// Protected routes (require authentication)
	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware())
	{
		// User profile
		protected.GET("/auth/profile", authHandler.GetProfile)
		protected.PUT("/auth/profile", authHandler.UpdateProfile)
		protected.POST("/auth/change-password", authHandler.ChangePassword)

		// Customer loyalty
		protected.GET("/wallet", walletHandler.GetMyWallet)
		protected.GET("/wallet/history", walletHandler.GetMyHistory)
		protected.GET("/points", pointsHandler.GetMyPoints)
		protected.GET("/points/history", pointsHandler.GetMyHistory)
		protected.GET("/vouchers/mine", voucherHandler.MyVouchers)

		// Bookings
		protected.POST("/bookings", bookingHandler.Create)
		protected.GET("/bookings/mine", bookingHandler.MyBookings)
		protected.POST("/bookings/:id/cancel", bookingHandler.Cancel)

		// Receipts and notifications
		protected.GET("/transactions/mine", transactionHandler.MyTransactions)
		protected.GET("/notifications", notificationHandler.List)
		protected.PUT("/notifications/:id/read", notificationHandler.MarkRead)
		protected.PUT("/notifications/read-all", notificationHandler.MarkAllRead)
	}

	// Staff routes (POS operations)
	staff := api.Group("/pos")
	staff.Use(middleware.AuthMiddleware())
	staff.Use(middleware.StaffMiddleware())
	{
		staff.POST("/transactions", transactionHandler.Create)
		staff.GET("/transactions", transactionHandler.List)
		staff.GET("/transactions/:id", transactionHandler.Get)
		staff.GET("/transactions/receipt/:number", transactionHandler.GetByReceipt)
		staff.PATCH("/transactions/:id/status", transactionHandler.UpdateStatus)
		staff.GET("/sales/daily", transactionHandler.DailySummary)
		staff.POST("/vouchers/check", voucherHandler.Check)
		staff.POST("/vouchers", voucherHandler.Create)
		staff.POST("/vouchers/:id/send-requests", voucherHandler.CreateSendRequest)
		staff.GET("/wallets/:id", walletHandler.GetUserWallet)
		staff.GET("/points/:id", pointsHandler.GetUserPoints)
		staff.GET("/bookings", bookingHandler.List)
		staff.GET("/bookings/:id", bookingHandler.Get)
		staff.PUT("/bookings/:id/status", bookingHandler.UpdateStatus)
	}

	// Admin routes (require branch_admin or super_admin)
	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware())
	admin.Use(middleware.AdminMiddleware())
	{
		// Catalog management
		admin.POST("/branches", catalogHandler.CreateBranch)
		admin.PUT("/branches/:id", catalogHandler.UpdateBranch)
		admin.POST("/barbers", catalogHandler.CreateBarber)
		admin.PUT("/barbers/:id", catalogHandler.UpdateBarber)
		admin.POST("/services", catalogHandler.CreateService)
		admin.PUT("/services/:id", catalogHandler.UpdateService)
		admin.POST("/products", catalogHandler.CreateProduct)
		admin.PUT("/products/:id", catalogHandler.UpdateProduct)

		// User management
		admin.GET("/users", authHandler.ListUsers)
		admin.GET("/users/:id", authHandler.GetUser)
		admin.PUT("/users/:id", authHandler.UpdateUser)

		// Refunds and wallet credit
		admin.POST("/transactions/:id/refund", transactionHandler.Refund)
		admin.POST("/wallets/credit", walletHandler.Credit)

		// Points administration
		admin.POST("/points/adjust", pointsHandler.Adjust)
		admin.POST("/points/expiry", pointsHandler.ProcessExpiry)

		// Voucher lifecycle
		admin.GET("/vouchers", voucherHandler.List)
		admin.GET("/vouchers/:id", voucherHandler.Get)
		admin.POST("/vouchers/batch", voucherHandler.CreateBatch)
		admin.POST("/vouchers/:id/approve", voucherHandler.Approve)
		admin.POST("/vouchers/:id/reject", voucherHandler.Reject)
		admin.PUT("/vouchers/:id/active", voucherHandler.SetActive)
		admin.POST("/vouchers/:id/assign", voucherHandler.Assign)
		admin.GET("/voucher-send-requests", voucherHandler.ListSendRequests)
		admin.POST("/voucher-send-requests/:id/approve", voucherHandler.ApproveSendRequest)
		admin.POST("/voucher-send-requests/:id/reject", voucherHandler.RejectSendRequest)

		// Loyalty configuration
		admin.GET("/loyalty-config", configHandler.List)
		admin.PUT("/loyalty-config", configHandler.Update)
	}

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
}
