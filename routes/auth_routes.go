package routes

import (
	"github.com/gin-gonic/gin"

	"studentfiles/controllers"
)

// RegisterAuthRoutes mounts the public account and Google OAuth endpoints.
func RegisterAuthRoutes(rg *gin.RouterGroup, teacherController *controllers.TeacherController, authController *controllers.AuthController) {
	rg.POST("/teacher/simple-register", teacherController.SimpleRegister)
	rg.POST("/teacher/login", teacherController.Login)

	auth := rg.Group("/auth")
	{
		auth.GET("/google", authController.GoogleAuth)
		auth.POST("/google/register", authController.GoogleRegister)
	}

	// Registered with Google as the OAuth redirect URI.
	rg.GET("/google-callback", authController.GoogleCallback)
}
