package api

import (
	"alcyxob/wellness-portal/internal/domain"
	"alcyxob/wellness-portal/internal/identity"
	"alcyxob/wellness-portal/internal/logger"
	"alcyxob/wellness-portal/internal/repository"
	"alcyxob/wellness-portal/internal/service"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Deps is everything the HTTP layer needs.
type Deps struct {
	Auth           identity.Service
	Profiles       repository.ProfileRepository
	Applications   repository.PartnerApplicationRepository
	ProgramService service.ProgramService
	PartnerService service.PartnerService
	LookupTimeout  time.Duration
	AllowOrigins   []string
	Log            *logger.Logger
}

func SetupRoutes(router *gin.Engine, d Deps) {
	authHandler := NewAuthHandler(d.Auth, d.Profiles, d.Applications, d.LookupTimeout, d.Log)
	programHandler := NewProgramHandler(d.ProgramService)
	partnerHandler := NewPartnerHandler(d.ProgramService, d.PartnerService)

	router.Use(RequestLogger(d.Log), CORS(d.AllowOrigins))

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/sign-in", authHandler.SignIn)
			authGroup.POST("/sign-up", authHandler.SignUp)
			authGroup.POST("/sign-out", authHandler.SignOut)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.POST("/confirm", authHandler.Confirm)
		}
		// GET /api/v1/session - restore only, never chooses a landing route
		apiV1.GET("/session", authHandler.Session)
	}

	protected := apiV1.Group("")
	protected.Use(AuthMiddleware(d.Auth, d.Profiles))
	{
		programGroup := protected.Group("/program")
		programGroup.Use(RoleMiddleware(domain.RoleCustomer))
		{
			programGroup.GET("", programHandler.GetProgram)
			programGroup.GET("/photos/download-url", programHandler.PhotoDownloadURL)

			weekGroup := programGroup.Group("/weeks/:week")
			{
				weekGroup.GET("", programHandler.GetWeek)
				weekGroup.POST("/videos/:videoId/watched", programHandler.MarkVideoWatched)

				weekGroup.POST("/meal-logs", programHandler.AddMealLog)
				weekGroup.PATCH("/meal-logs/:id", programHandler.EditMealLog)
				weekGroup.DELETE("/meal-logs/:id", programHandler.DeleteMealLog)

				weekGroup.POST("/weight-logs", programHandler.AddWeightLog)
				weekGroup.PATCH("/weight-logs/:id", programHandler.EditWeightLog)
				weekGroup.DELETE("/weight-logs/:id", programHandler.DeleteWeightLog)

				// 409 unless every video is watched and the log quotas are met
				weekGroup.POST("/complete", programHandler.CompleteWeek)
				weekGroup.POST("/photos/upload-url", programHandler.RequestPhotoUploadURL)
			}
		}

		protected.POST("/appointments/:appointmentId/reschedule", RoleMiddleware(domain.RoleCustomer), programHandler.RequestReschedule)

		customerGroup := protected.Group("/customers/:customerId")
		customerGroup.Use(RoleMiddleware(domain.RolePartner, domain.RoleAdmin))
		{
			customerGroup.GET("/program", partnerHandler.GetCustomerProgram)
			customerGroup.POST("/appointments", partnerHandler.BookAppointment)
			customerGroup.POST("/appointments/:appointmentId/approve", partnerHandler.ApproveReschedule)
		}

		adminGroup := protected.Group("/admin")
		adminGroup.Use(RoleMiddleware(domain.RoleAdmin))
		{
			adminGroup.POST("/partner-applications/decision", partnerHandler.DecidePartnerApplication)
			adminGroup.GET("/partner-applications/latest", partnerHandler.LatestPartnerApplication)
		}
	}
}
