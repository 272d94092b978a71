package router

import (
	"time"

	"wisdom-campus/internal/auth0"
	"wisdom-campus/internal/config"
	"wisdom-campus/internal/handler"
	"wisdom-campus/internal/middleware"
	"wisdom-campus/internal/notify"
	"wisdom-campus/internal/service"
	"wisdom-campus/internal/store"
	"wisdom-campus/internal/token"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupRouter 组装全部依赖并注册路由。
// provider 由 main 决定是真实 Auth0 客户端还是内存 Mock。
func SetupRouter(cfg *config.Config, db *gorm.DB, provider auth0.Provider) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	users := store.NewUserStore(db)
	issuer := token.NewIssuer(
		cfg.JWT.Secret,
		cfg.JWT.Issuer,
		time.Duration(cfg.JWT.AccessExpireMin)*time.Minute,
		time.Duration(cfg.JWT.RefreshExpireDays)*24*time.Hour,
	)
	notifier := notify.NewNotifier(provider, time.Duration(cfg.App.VerifyCooldownSeconds)*time.Second)
	authSvc := service.NewAuthService(provider, users, issuer, notifier,
		time.Duration(cfg.App.StaleUnverifiedSecs)*time.Second)

	authHandler := handler.NewAuthHandler(authSvc, issuer)
	userHandler := handler.NewUserHandler(db, users)
	adminHandler := handler.NewAdminHandler(users, authSvc, cfg.App.PageSize)
	learningHandler := handler.NewLearningHandler(db)
	communityHandler := handler.NewCommunityHandler(db)

	// ====== API ======
	api := r.Group("/api/v1")

	// 无需登录的接口
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/refresh-token", authHandler.RefreshToken)
	api.POST("/auth/logout", authHandler.Logout)
	api.POST("/auth/resend-verification", authHandler.ResendVerification)
	api.POST("/auth/forgot-password", authHandler.ForgotPassword)
	api.GET("/auth/check-verification", authHandler.CheckVerification)
	api.DELETE("/auth/cancel-registration", authHandler.CancelRegistration)
	api.GET("/user/check", userHandler.Check)
	api.GET("/majors", userHandler.ListMajors)

	// 需要登录才能访问的接口
	protected := api.Group("")
	protected.Use(
		middleware.AuthMiddleware(issuer, users),
		middleware.AuditMiddleware(db),
	)

	protected.GET("/auth/verify-token", authHandler.VerifyToken)
	protected.POST("/auth/send-verification", authHandler.SendVerification)
	protected.POST("/auth/change-password", authHandler.ChangePassword)

	protected.GET("/user/me", userHandler.Me)
	protected.PUT("/user/me", userHandler.UpdateMe)
	protected.PUT("/user/me/profile", userHandler.UpdateProfile)

	protected.GET("/learning/courses", learningHandler.ListCourses)
	protected.POST("/learning/courses", learningHandler.CreateCourse)
	protected.GET("/notes", learningHandler.ListNotes)
	protected.POST("/notes", learningHandler.CreateNote)
	protected.PUT("/notes/:id", learningHandler.UpdateNote)
	protected.DELETE("/notes/:id", learningHandler.DeleteNote)

	protected.GET("/community/posts", communityHandler.ListPosts)
	protected.POST("/community/posts", communityHandler.CreatePost)

	// 管理接口
	admin := protected.Group("/admin")
	admin.Use(middleware.RequireAdmin())
	admin.GET("/users", adminHandler.ListUsers)
	admin.GET("/users/export", adminHandler.ExportUsers)
	admin.DELETE("/users/:id", adminHandler.DeleteUser)

	return r
}
