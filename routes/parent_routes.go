package routes

import (
	"github.com/gin-gonic/gin"

	"studentfiles/controllers"
	"studentfiles/middleware"
)

// RegisterParentRoutes mounts the unauthenticated parent portal behind the
// per-IP rate limiter.
func RegisterParentRoutes(rg *gin.RouterGroup, parentController *controllers.ParentController, limiter *middleware.IPRateLimiter) {
	portal := rg.Group("")
	portal.Use(middleware.RateLimit(limiter))
	{
		portal.GET("/captcha", parentController.Captcha)
		portal.GET("/link/:linkCode", parentController.LinkInfo)
		portal.POST("/verify-student", parentController.VerifyStudent)
	}
}
