package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/melodia-school/melodia-api/internal/handler"
	"github.com/melodia-school/melodia-api/internal/middleware"
	"github.com/melodia-school/melodia-api/internal/models"
	"github.com/melodia-school/melodia-api/internal/repository"
	"github.com/melodia-school/melodia-api/internal/service"
	"github.com/melodia-school/melodia-api/pkg/config"
	"github.com/melodia-school/melodia-api/pkg/logger"
	corsmiddleware "github.com/melodia-school/melodia-api/pkg/middleware/cors"
	reqidmiddleware "github.com/melodia-school/melodia-api/pkg/middleware/requestid"
)

// Dependencies carries everything the router needs to wire routes.
type Dependencies struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *service.MetricsService

	Auth      *service.AuthService
	Users     *repository.UserRepository
	Students  *handler.StudentHandler
	Families  *handler.FamilyHandler
	Status    *handler.StatusHandler
	Programs  *handler.ProgramHandler
	Teachers  *handler.TeacherHandler
	Offerings *handler.OfferingHandler
	Calendar  *handler.CalendarHandler
	Enroll    *handler.EnrollmentHandler
	Finance   *handler.FinanceHandler
	Dashboard *handler.DashboardHandler
	AuthH     *handler.AuthHandler
	UsersH    *handler.UserHandler
}

// New assembles the gin engine: global middleware, health probes, the public
// marketing surface, and the authenticated admin and portal routes.
func New(deps Dependencies) *gin.Engine {
	cfg := deps.Config

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	// Marketing site endpoints, readable without a session.
	api.GET("/programs", deps.Programs.List)
	api.GET("/programs/:id", deps.Programs.Get)
	api.GET("/teachers", deps.Teachers.List)
	api.GET("/teachers/:id", deps.Teachers.Get)
	api.GET("/offerings", deps.Offerings.List)
	api.GET("/offerings/:id", deps.Offerings.Get)
	api.GET("/offerings/:id/events", deps.Offerings.Events)
	api.GET("/offerings/:id/class-dates", deps.Offerings.ClassDates)
	api.GET("/calendar/events", deps.Calendar.Events)

	auth := api.Group("/auth")
	{
		auth.POST("/login", deps.AuthH.Login)
		auth.POST("/google", deps.AuthH.GoogleLogin)
		auth.POST("/refresh", deps.AuthH.Refresh)
	}

	authed := api.Group("")
	authed.Use(middleware.JWT(deps.Auth))
	{
		authed.POST("/auth/logout", deps.AuthH.Logout)
		authed.POST("/auth/change-password", deps.AuthH.ChangePassword)
		authed.GET("/auth/me", deps.AuthH.Me)

		authed.GET("/statuses/students", deps.Status.Catalogue)
		authed.GET("/statuses/permissions", deps.Status.Permissions)
		authed.GET("/statuses/validate", deps.Status.Validate)
	}

	staff := api.Group("")
	staff.Use(middleware.JWT(deps.Auth))
	staff.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher))
	{
		staff.GET("/students", deps.Students.List)
		staff.POST("/students", deps.Students.Create)
		staff.PUT("/students/:id", deps.Students.Update)
		staff.PUT("/students/:id/status",
			middleware.Audit(deps.Users, models.AuditActionStatusChange, "student"),
			deps.Students.ChangeStatus)
		staff.GET("/students/:id/status/history", deps.Students.StatusHistory)

		staff.GET("/families", deps.Families.List)
		staff.POST("/families", deps.Families.Create)
		staff.PUT("/families/:id", deps.Families.Update)
		staff.PUT("/families/:id/status",
			middleware.Audit(deps.Users, models.AuditActionStatusChange, "family"),
			deps.Families.ChangeStatus)
		staff.GET("/families/:id/status/history", deps.Families.StatusHistory)

		staff.POST("/programs", deps.Programs.Create)
		staff.PUT("/programs/:id", deps.Programs.Update)
		staff.DELETE("/programs/:id", deps.Programs.Delete)

		staff.POST("/teachers", deps.Teachers.Create)
		staff.PUT("/teachers/:id", deps.Teachers.Update)
		staff.DELETE("/teachers/:id", deps.Teachers.Delete)

		staff.POST("/offerings", deps.Offerings.Create)
		staff.PUT("/offerings/:id", deps.Offerings.Update)
		staff.DELETE("/offerings/:id", deps.Offerings.Delete)

		staff.POST("/enrollments", deps.Enroll.Enroll)
		staff.POST("/enrollments/:id/cancel", deps.Enroll.Cancel)
		staff.POST("/enrollments/:id/complete", deps.Enroll.Complete)
	}

	// Record reads shared by staff and the family portal. FamilyScope pins
	// the family routes to the caller's own family; student reads enforce
	// the same check in the handler against the record's family link.
	scoped := api.Group("")
	scoped.Use(middleware.JWT(deps.Auth))
	{
		scoped.GET("/students/:id", deps.Students.Get)
		scoped.GET("/families/:id", middleware.FamilyScope(), deps.Families.Get)
		scoped.GET("/enrollments", deps.Enroll.List)
	}

	if cfg.Finance.Enabled {
		finance := api.Group("")
		finance.Use(middleware.JWT(deps.Auth))
		{
			finance.GET("/invoices", deps.Finance.ListInvoices)
			finance.GET("/invoices/:id", deps.Finance.GetInvoice)
			finance.GET("/families/:id/balance", middleware.FamilyScope(), deps.Finance.Balance)
			finance.GET("/families/:id/statement", middleware.FamilyScope(), deps.Finance.Statement)
		}

		billing := api.Group("")
		billing.Use(middleware.JWT(deps.Auth))
		billing.Use(middleware.RequireRoles(models.RoleAdmin))
		{
			billing.POST("/invoices", deps.Finance.CreateInvoice)
			billing.POST("/invoices/:id/pay", deps.Finance.MarkPaid)
		}
	}

	admin := api.Group("")
	admin.Use(middleware.JWT(deps.Auth))
	admin.Use(middleware.RequireRoles(models.RoleAdmin))
	{
		if cfg.Dashboard.Enabled {
			admin.GET("/dashboard/summary", deps.Dashboard.Summary)
			admin.GET("/dashboard/metrics", deps.Dashboard.SystemMetrics)
		}

		admin.GET("/users", deps.UsersH.List)
		admin.GET("/users/:id", deps.UsersH.Get)
		admin.POST("/users", deps.UsersH.Create)
		admin.PUT("/users/:id", deps.UsersH.Update)
		admin.DELETE("/users/:id", deps.UsersH.Delete)
	}

	return r
}
