package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/melodia-school/melodia-api/api/swagger"
	"github.com/melodia-school/melodia-api/internal/handler"
	"github.com/melodia-school/melodia-api/internal/repository"
	"github.com/melodia-school/melodia-api/internal/router"
	"github.com/melodia-school/melodia-api/internal/service"
	"github.com/melodia-school/melodia-api/pkg/cache"
	"github.com/melodia-school/melodia-api/pkg/config"
	"github.com/melodia-school/melodia-api/pkg/database"
	"github.com/melodia-school/melodia-api/pkg/logger"
)

// @title Melodia School API
// @version 1.0.0
// @description Music school API: public catalogue, admin back office, and family portal
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	familyRepo := repository.NewFamilyRepository(db)
	historyRepo := repository.NewStatusHistoryRepository(db)
	programRepo := repository.NewProgramRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	offeringRepo := repository.NewOfferingRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	dashboardRepo := repository.NewDashboardRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, redisClient != nil)

	var google service.GoogleVerifier
	if cfg.Google.ClientID != "" {
		google = service.NewGoogleOAuthClient(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURL)
	}

	authSvc := service.NewAuthService(userRepo, google, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "melodia-api",
	})

	statusSvc := service.NewStatusService(studentRepo, familyRepo, historyRepo, enrollmentRepo, nil, nil, logr)
	studentSvc := service.NewStudentService(studentRepo, nil, logr)
	familySvc := service.NewFamilyService(familyRepo, nil, logr)
	programSvc := service.NewProgramService(programRepo, nil, logr)
	teacherSvc := service.NewTeacherService(teacherRepo, nil, logr)
	offeringSvc := service.NewOfferingService(offeringRepo, nil, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, studentRepo, offeringRepo, nil, logr)
	calendarSvc := service.NewCalendarService(offeringRepo, cacheRepo, cfg.Calendar.CacheTTL, cfg.Calendar.MaxRangeDays, logr)
	financeSvc := service.NewFinanceService(invoiceRepo, familyRepo, cfg.Finance.Currency, nil, logr)
	dashboardSvc := service.NewDashboardService(dashboardRepo, cacheSvc, cfg.Dashboard.CacheTTL, logr)
	userSvc := service.NewUserService(userRepo, nil, logr)

	r := router.New(router.Dependencies{
		Config:    cfg,
		Logger:    logr,
		Metrics:   metricsSvc,
		Auth:      authSvc,
		Users:     userRepo,
		Students:  handler.NewStudentHandler(studentSvc, statusSvc),
		Families:  handler.NewFamilyHandler(familySvc, statusSvc),
		Status:    handler.NewStatusHandler(statusSvc),
		Programs:  handler.NewProgramHandler(programSvc),
		Teachers:  handler.NewTeacherHandler(teacherSvc),
		Offerings: handler.NewOfferingHandler(offeringSvc, calendarSvc),
		Calendar:  handler.NewCalendarHandler(calendarSvc),
		Enroll:    handler.NewEnrollmentHandler(enrollmentSvc),
		Finance:   handler.NewFinanceHandler(financeSvc),
		Dashboard: handler.NewDashboardHandler(dashboardSvc, metricsSvc),
		AuthH:     handler.NewAuthHandler(authSvc),
		UsersH:    handler.NewUserHandler(userSvc),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Sugar().Infow("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Sugar().Errorw("forced shutdown", "error", err)
	}
}
