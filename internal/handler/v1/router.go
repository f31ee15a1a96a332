package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/harborhealth/clinicdesk/internal/domain"
	"github.com/harborhealth/clinicdesk/internal/middleware"
	"github.com/harborhealth/clinicdesk/pkg/auth"
	"github.com/harborhealth/clinicdesk/pkg/metrics"
)

type Handlers struct {
	Auth         *AuthHandler
	Appointments *AppointmentHandler
	Patients     *PatientHandler
	Providers    *ProviderHandler
}

// NewRouter wires the HTTP surface: public auth endpoints, the scheduling
// API behind JWT auth, and the operational endpoints.
func NewRouter(h Handlers, jwtManager *auth.JWTManager, mc *metrics.Collector, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Observe(mc, log))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.MetricsHandler()))

	public := router.Group("/api/v1")
	{
		public.POST("/auth/login", h.Auth.Login)
		public.POST("/auth/refresh", h.Auth.Refresh)
	}

	private := router.Group("/api/v1")
	private.Use(middleware.Authenticate(jwtManager))
	{
		private.POST("/auth/change-password", h.Auth.ChangePassword)

		appts := private.Group("/appointments")
		{
			appts.GET("", h.Appointments.List)
			appts.POST("", h.Appointments.Create)
			appts.GET("/:id", h.Appointments.Get)
			appts.PUT("/:id", h.Appointments.Update)
			appts.PATCH("/:id", h.Appointments.Update)
			appts.POST("/:id/cancel", h.Appointments.Cancel)
			appts.DELETE("/:id", middleware.RequireRoles(domain.RoleStaff, domain.RoleAdmin), h.Appointments.Delete)
		}

		// Role-scoped dashboard views
		private.GET("/patient/appointments", middleware.RequireRoles(domain.RolePatient), h.Appointments.ListMine)
		private.GET("/doctor/appointments", middleware.RequireRoles(domain.RoleDoctor), h.Appointments.ListMine)
		private.GET("/staff/appointments", middleware.RequireRoles(domain.RoleStaff, domain.RoleAdmin), h.Appointments.ListMine)

		patients := private.Group("/patients")
		{
			patients.GET("/:id", h.Patients.Get)

			staffOnly := patients.Group("")
			staffOnly.Use(middleware.RequireRoles(domain.RoleStaff, domain.RoleAdmin))
			{
				staffOnly.POST("", h.Patients.Create)
				staffOnly.GET("", h.Patients.List)
				staffOnly.DELETE("/:id", h.Patients.Delete)
			}
		}

		providers := private.Group("/providers")
		{
			providers.GET("", h.Providers.List)
			providers.GET("/:id", h.Providers.Get)
			providers.POST("", middleware.RequireRoles(domain.RoleStaff, domain.RoleAdmin), h.Providers.Create)
		}
	}

	return router
}
