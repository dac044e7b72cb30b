package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"studentfiles/config"
	"studentfiles/controllers"
	"studentfiles/middleware"
	"studentfiles/services"
	"studentfiles/storage"
)

// Dependencies are the collaborators cmd wires up from the environment.
// Backup and States may be nil.
type Dependencies struct {
	Store  storage.Storage
	Chain  *services.DriveChain
	Backup services.BackupStore
	States services.StateStore
}

// ServiceContainer holds all services and the settings the routes need.
type ServiceContainer struct {
	JWTSecret     string
	AuthRequired  bool
	MaxExcelSize  int64
	ParentLimiter *middleware.IPRateLimiter

	Issuer         *services.TokenIssuer
	TeacherService *services.TeacherService
	ExcelService   *services.ExcelService
	FolderService  *services.FolderService
	FileService    *services.FileService
	CaptchaService *services.CaptchaService
	ParentService  *services.ParentService
	AuthService    *services.AuthService
	TrashService   *services.TrashService
}

// NewServiceContainer builds every service from the config and the wired
// dependencies.
func NewServiceContainer(cfg *config.Config, deps Dependencies) *ServiceContainer {
	if deps.States == nil {
		deps.States = services.NewStateManager()
	}
	if deps.Chain == nil {
		deps.Chain = services.NewDriveChain()
	}

	captchaService := services.NewCaptchaService(deps.Store, cfg.CaptchaStrict)

	var limiter *middleware.IPRateLimiter
	if cfg.ParentRateLimit > 0 {
		limiter = middleware.NewIPRateLimiter(cfg.ParentRateLimit, cfg.ParentRateBurst)
	}

	oauthConfig := services.NewGoogleOAuthConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)

	return &ServiceContainer{
		JWTSecret:     cfg.JWTSecret,
		AuthRequired:  cfg.AuthRequired,
		MaxExcelSize:  cfg.MaxFileSize,
		ParentLimiter: limiter,

		Issuer:         services.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTExpiration),
		TeacherService: services.NewTeacherService(deps.Store),
		ExcelService:   services.NewExcelService(deps.Store),
		FolderService:  services.NewFolderService(deps.Store, deps.Chain, cfg.DriveBatchSize, cfg.DriveBatchDelay),
		FileService:    services.NewFileService(deps.Store, deps.Chain, deps.Backup, cfg.UploadDir, cfg.MaxFileSize, cfg.MaxFilesPerUpload),
		CaptchaService: captchaService,
		ParentService:  services.NewParentService(deps.Store, captchaService),
		AuthService:    services.NewAuthService(deps.Store, deps.States, oauthConfig, cfg.FrontendRedirectURL).WithProfileEndpoint(cfg.GoogleAPIEndpoint),
		TrashService:   services.NewTrashService(deps.Store, deps.Backup, cfg.UploadDir, cfg.PurgeRetention),
	}
}

// NewRouter returns the engine with middleware, health, metrics and the
// /api routes registered.
func NewRouter(container *ServiceContainer, allowedOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(middleware.CORS(allowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().UTC(),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	SetupRoutes(router.Group("/api"), container)
	return router
}

// SetupRoutes registers all route groups under api.
func SetupRoutes(api *gin.RouterGroup, container *ServiceContainer) {
	teacherController := controllers.NewTeacherController(container.TeacherService, container.Issuer)
	studentController := controllers.NewStudentController(container.TeacherService, container.ExcelService, container.MaxExcelSize)
	folderController := controllers.NewFolderController(container.FolderService)
	fileController := controllers.NewFileController(container.FileService)
	parentController := controllers.NewParentController(container.ParentService, container.CaptchaService)
	authController := controllers.NewAuthController(container.AuthService, container.Issuer)

	RegisterAuthRoutes(api, teacherController, authController)

	teacher := api.Group("/teacher/:id")
	teacher.Use(middleware.AuthMiddleware(container.JWTSecret, container.AuthRequired), middleware.TeacherScope("id"))
	RegisterTeacherRoutes(teacher, teacherController, authController)
	RegisterStudentRoutes(teacher, studentController)
	RegisterFolderRoutes(teacher, folderController)
	RegisterFileRoutes(api, teacher, fileController, middleware.AuthMiddleware(container.JWTSecret, container.AuthRequired))

	RegisterParentRoutes(api, parentController, container.ParentLimiter)
}
