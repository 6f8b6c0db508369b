package routes

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"mindcare-server/internal/config"
	"mindcare-server/internal/handlers"
	"mindcare-server/internal/middleware"
	"mindcare-server/internal/models"
	"mindcare-server/internal/payment"
)

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, db *gorm.DB, cfg *config.Config) {
	// Initialize handlers
	paymentClient := payment.NewClient(cfg.IremboPay)
	authHandler := handlers.NewAuthHandler(db, cfg)
	userHandler := handlers.NewUserHandler(db)
	doctorHandler := handlers.NewDoctorHandler(db)
	appointmentHandler := handlers.NewAppointmentHandler(db, paymentClient)
	paymentHandler := handlers.NewPaymentHandler(db, paymentClient, cfg.IremboPay.CallbackSecret)

	// Public routes (no authentication required)
	public := router.Group("/api/v1")
	{
		authRoutes := public.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/refresh-token", authHandler.RefreshToken)
		}

		// The gateway notifies payment outcomes without a user session
		public.POST("/payments/callback", paymentHandler.PaymentCallback)
	}

	// Authenticated routes
	private := router.Group("/api/v1")
	private.Use(middleware.AuthMiddleware(cfg))
	{
		authRoutesPrivate := private.Group("/auth")
		{
			authRoutesPrivate.POST("/logout", authHandler.Logout)
			authRoutesPrivate.GET("/profile", authHandler.GetProfile)
			authRoutesPrivate.PUT("/profile", authHandler.UpdateProfile)
			authRoutesPrivate.GET("/dashboard", authHandler.Dashboard)
		}

		// Doctor directory and approval flow
		doctorRoutes := private.Group("/doctors")
		{
			doctorRoutes.GET("", doctorHandler.GetDoctors)
			doctorRoutes.GET("/pending", middleware.RoleAuthMiddleware(models.RoleAdmin), doctorHandler.GetPendingDoctors)
			doctorRoutes.PUT("/me", middleware.RoleAuthMiddleware(models.RoleDoctor), doctorHandler.UpdateOwnProfile)
			doctorRoutes.GET("/:id", doctorHandler.GetDoctorByID)
			doctorRoutes.PATCH("/:id/approval", middleware.RoleAuthMiddleware(models.RoleAdmin), doctorHandler.SetApproval)
		}

		// User management routes (admin, plus patient listing for doctors)
		userRoutes := private.Group("/users")
		{
			userRoutes.GET("/patients", middleware.RoleAuthMiddleware(models.RoleDoctor, models.RoleAdmin), userHandler.GetPatients)

			adminRoutes := userRoutes.Group("")
			adminRoutes.Use(middleware.RoleAuthMiddleware(models.RoleAdmin))
			{
				adminRoutes.POST("", userHandler.CreateUser)
				adminRoutes.GET("", userHandler.GetUsers)
				adminRoutes.GET("/:id", userHandler.GetUserByID)
				adminRoutes.PUT("/:id", userHandler.UpdateUser)
				adminRoutes.DELETE("/:id", userHandler.DeleteUser)
			}
		}

		private.GET("/admin/stats", middleware.RoleAuthMiddleware(models.RoleAdmin), userHandler.GetAdminStats)

		// Appointment routes
		appointmentRoutes := private.Group("/appointments")
		{
			// Patients book for themselves; the price is computed server-side
			appointmentRoutes.POST("", middleware.RoleAuthMiddleware(models.RolePatient), appointmentHandler.BookAppointment)

			// All authenticated users see their own slice of the schedule
			appointmentRoutes.GET("", appointmentHandler.GetAppointmentsForUser)

			// Authorization for the rest happens inside the handlers
			appointmentRoutes.GET("/:id", appointmentHandler.GetAppointmentByID)
			appointmentRoutes.PATCH("/:id/status", appointmentHandler.UpdateAppointmentStatus)
		}

		// Payment routes
		paymentRoutes := private.Group("/payments")
		{
			paymentRoutes.POST("/create", paymentHandler.CreatePayment)
			paymentRoutes.GET("", middleware.RoleAuthMiddleware(models.RoleAdmin), paymentHandler.GetTransactions)
		}
	}

	// Simple health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "UP"})
	})
}
