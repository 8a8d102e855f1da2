package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/ios-sistema/presenca-api/api/swagger"
	"github.com/ios-sistema/presenca-api/internal/handler"
	"github.com/ios-sistema/presenca-api/internal/middleware"
	"github.com/ios-sistema/presenca-api/internal/repository"
	"github.com/ios-sistema/presenca-api/internal/service"
	"github.com/ios-sistema/presenca-api/pkg/cache"
	"github.com/ios-sistema/presenca-api/pkg/config"
	"github.com/ios-sistema/presenca-api/pkg/database"
	"github.com/ios-sistema/presenca-api/pkg/logger"
	corsmiddleware "github.com/ios-sistema/presenca-api/pkg/middleware/cors"
	reqidmiddleware "github.com/ios-sistema/presenca-api/pkg/middleware/requestid"
	"github.com/ios-sistema/presenca-api/pkg/storage"
)

// @title Presenca API
// @version 1.0.0
// @description Attendance tracking and student roster administration
// @BasePath /api
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

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

	justificationStore, err := storage.NewLocalStorage(cfg.Justifications.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init justification storage", "error", err)
	}
	reportStore, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init report storage", "error", err)
	}
	reportSigner := storage.NewDownloadTokenSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)

	validate := validator.New()

	// Repositories
	userRepo := repository.NewUserRepository(db)
	unitRepo := repository.NewUnitRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	classRepo := repository.NewClassRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	dropoutRepo := repository.NewDropoutRepository(db)
	justificationRepo := repository.NewJustificationRepository(db)
	reportJobRepo := repository.NewReportJobRepository(db)

	// Services
	metricsService := service.NewMetricsService()
	cacheEnabled := cfg.Dashboard.CacheEnabled && redisClient != nil
	var cacheService *service.CacheService
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheService = service.NewCacheService(cacheRepo, metricsService, cfg.Dashboard.CacheTTL, logr, cacheEnabled)
	} else {
		cacheService = service.NewCacheService(nil, metricsService, cfg.Dashboard.CacheTTL, logr, false)
	}

	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "presenca-api",
	})
	scopeService := service.NewScopeService(classRepo, studentRepo, logr)
	userService := service.NewUserService(userRepo, validate, logr)
	unitService := service.NewUnitService(unitRepo, validate, logr)
	courseService := service.NewCourseService(courseRepo, validate, logr)
	studentService := service.NewStudentService(studentRepo, scopeService, validate, logr)
	classService := service.NewClassService(classRepo, userRepo, studentRepo, scopeService, validate, logr)
	attendanceService := service.NewAttendanceService(attendanceRepo, classRepo, studentRepo, scopeService, validate, logr, cfg.Attendance.TodayOnly)
	pendingService := service.NewPendingService(scopeService, courseRepo, attendanceRepo, studentRepo, cacheService, cfg.Dashboard.CacheTTL, logr)
	importService := service.NewImportService(studentRepo, classRepo, scopeService, logr, cfg.Import.MaxRows, cfg.Import.MaxErrorsReturned)
	dropoutService := service.NewDropoutService(dropoutRepo, studentRepo, classRepo, scopeService, validate, logr)
	justificationService := service.NewJustificationService(justificationRepo, attendanceRepo, scopeService, justificationStore, validate, logr, cfg.Justifications.MaxFileSizeBytes)
	reportService := service.NewReportService(reportJobRepo, attendanceRepo, studentRepo, scopeService, reportStore, reportSigner, cfg.Reports.WorkerConcurrency, logr)
	dashboardService := service.NewDashboardService(studentRepo, classRepo, attendanceRepo, scopeService, pendingService, cacheService, logr)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	reportService.Start(workerCtx)
	defer reportService.Stop()

	// Handlers
	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	unitHandler := handler.NewUnitHandler(unitService)
	courseHandler := handler.NewCourseHandler(courseService)
	studentHandler := handler.NewStudentHandler(studentService, importService)
	classHandler := handler.NewClassHandler(classService)
	attendanceHandler := handler.NewAttendanceHandler(attendanceService, pendingService)
	dropoutHandler := handler.NewDropoutHandler(dropoutService)
	justificationHandler := handler.NewJustificationHandler(justificationService)
	reportHandler := handler.NewReportHandler(reportService)
	dashboardHandler := handler.NewDashboardHandler(dashboardService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Metrics)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	// Public routes
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)
	api.POST("/auth/first-access", authHandler.FirstAccess)
	api.GET("/downloads/reports", reportHandler.File)

	protected := api.Group("", middleware.JWT(authService))

	auth := protected.Group("/auth")
	auth.POST("/logout", authHandler.Logout)
	auth.GET("/me", authHandler.Me)
	auth.POST("/change-password", authHandler.ChangePassword)
	auth.POST("/reset-password", middleware.AdminOnly(), authHandler.ResetPassword)
	auth.POST("/approve/:id", middleware.AdminOnly(), authHandler.Approve)

	users := protected.Group("/users")
	users.GET("/:id", userHandler.Get)
	users.Use(middleware.AdminOnly())
	users.GET("", userHandler.List)
	users.GET("/pending", userHandler.ListPending)
	users.POST("", userHandler.Create)
	users.PUT("/:id", userHandler.Update)
	users.DELETE("/:id", userHandler.Delete)

	units := protected.Group("/units")
	units.GET("", unitHandler.List)
	units.GET("/:id", unitHandler.Get)
	units.POST("", middleware.AdminOnly(), unitHandler.Create)
	units.PUT("/:id", middleware.AdminOnly(), unitHandler.Update)
	units.DELETE("/:id", middleware.AdminOnly(), unitHandler.Delete)

	courses := protected.Group("/courses")
	courses.GET("", courseHandler.List)
	courses.GET("/:id", courseHandler.Get)
	courses.POST("", middleware.AdminOnly(), courseHandler.Create)
	courses.PUT("/:id", middleware.AdminOnly(), courseHandler.Update)
	courses.DELETE("/:id", middleware.AdminOnly(), courseHandler.Delete)

	students := protected.Group("/students")
	students.GET("", studentHandler.List)
	students.GET("/:id", studentHandler.Get)
	students.POST("", studentHandler.Create)
	students.PUT("/:id", studentHandler.Update)
	students.PATCH("/:id/status", studentHandler.ChangeStatus)
	students.POST("/import", studentHandler.Import)

	classes := protected.Group("/classes")
	classes.GET("", classHandler.List)
	classes.GET("/:id", classHandler.Get)
	classes.POST("", classHandler.Create)
	classes.PUT("/:id", classHandler.Update)
	classes.DELETE("/:id", classHandler.Delete)
	classes.POST("/:id/students/:studentId", classHandler.Enroll)
	classes.DELETE("/:id/students/:studentId", classHandler.Unenroll)

	attendance := protected.Group("/attendance")
	attendance.POST("", attendanceHandler.Create)
	attendance.GET("/class/:classId", attendanceHandler.ListByClass)
	attendance.GET("/pending", attendanceHandler.Pending)
	attendance.POST("/reset-all", middleware.AdminOnly(), attendanceHandler.ResetAll)

	dropouts := protected.Group("/dropouts")
	dropouts.POST("", dropoutHandler.Withdraw)
	dropouts.GET("", dropoutHandler.List)
	dropouts.GET("/reasons", dropoutHandler.Reasons)
	dropouts.POST("/:studentId/reactivate", middleware.AdminOnly(), dropoutHandler.Reactivate)

	justifications := protected.Group("/justifications")
	justifications.POST("", justificationHandler.Create)
	justifications.GET("/reasons", justificationHandler.Reasons)
	justifications.GET("/student/:studentId", justificationHandler.ListByStudent)
	justifications.PATCH("/:id/review", justificationHandler.Review)
	justifications.GET("/:id/file", justificationHandler.DownloadFile)
	justifications.DELETE("/:id", justificationHandler.Delete)

	reports := protected.Group("/reports")
	reports.POST("", reportHandler.Submit)
	reports.GET("", reportHandler.List)
	reports.GET("/:id", reportHandler.Status)
	reports.GET("/:id/download", reportHandler.Download)

	protected.GET("/dashboard", dashboardHandler.Summary)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
