package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studentfiles/middleware"
	"studentfiles/services"
	"studentfiles/utils"
)

type AuthController struct {
	authService *services.AuthService
	issuer      *services.TokenIssuer
}

func NewAuthController(authService *services.AuthService, issuer *services.TokenIssuer) *AuthController {
	return &AuthController{
		authService: authService,
		issuer:      issuer,
	}
}

// GoogleAuth sends the browser straight to the Google consent screen.
func (ac *AuthController) GoogleAuth(c *gin.Context) {
	authURL, err := ac.authService.AuthURL(c.Request.Context(), 0)
	if err != nil {
		handleError(c, err, "[AuthController] Failed to build auth URL")
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, authURL)
}

// ConnectGoogle returns a consent URL bound to the teacher in the path.
func (ac *AuthController) ConnectGoogle(c *gin.Context) {
	authURL, err := ac.authService.AuthURL(c.Request.Context(), middleware.TeacherID(c))
	if err != nil {
		handleError(c, err, "[AuthController] Failed to build auth URL")
		return
	}
	c.JSON(http.StatusOK, gin.H{"authUrl": authURL})
}

// GoogleCallback always ends in a redirect to the frontend; failures are
// reported through the query string.
func (ac *AuthController) GoogleCallback(c *gin.Context) {
	if errParam := c.Query("error"); errParam != "" {
		utils.LogWarning("[AuthController] Google returned error: " + errParam)
		c.Redirect(http.StatusTemporaryRedirect, ac.authService.FrontendRedirect(nil, services.ErrInvalidState))
		return
	}

	teacher, err := ac.authService.HandleCallback(c.Request.Context(), c.Query("state"), c.Query("code"))
	if err != nil {
		utils.LogError("[AuthController] Google callback failed", err)
	}
	c.Redirect(http.StatusTemporaryRedirect, ac.authService.FrontendRedirect(teacher, err))
}

func (ac *AuthController) GoogleRegister(c *gin.Context) {
	var req services.GoogleRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "بيانات Google ناقصة", err.Error())
		return
	}

	teacher, err := ac.authService.RegisterGoogle(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err, "[AuthController] Google registration failed")
		return
	}

	token, err := ac.issuer.Issue(teacher)
	if err != nil {
		utils.InternalServerErrorResponse(c, "[AuthController] Failed to issue token", err)
		return
	}
	c.JSON(http.StatusOK, authResponse{Teacher: teacher, Token: token})
}
