package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"studentfiles/middleware"
	"studentfiles/models"
	"studentfiles/services"
	"studentfiles/utils"
)

type TeacherController struct {
	teacherService *services.TeacherService
	issuer         *services.TokenIssuer
}

func NewTeacherController(teacherService *services.TeacherService, issuer *services.TokenIssuer) *TeacherController {
	return &TeacherController{
		teacherService: teacherService,
		issuer:         issuer,
	}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password"`
}

type SetPasswordRequest struct {
	Password string `json:"password" binding:"required"`
}

type DriveFolderRequest struct {
	DriveFolderID   string `json:"driveFolderId"`
	DriveFolderLink string `json:"driveFolderLink"`
}

type authResponse struct {
	Teacher *models.Teacher `json:"teacher"`
	Token   string          `json:"token"`
}

func (tc *TeacherController) respondWithToken(c *gin.Context, status int, teacher *models.Teacher) {
	token, err := tc.issuer.Issue(teacher)
	if err != nil {
		utils.InternalServerErrorResponse(c, "[TeacherController] Failed to issue token", err)
		return
	}
	c.JSON(status, authResponse{Teacher: teacher, Token: token})
}

func (tc *TeacherController) SimpleRegister(c *gin.Context) {
	var req services.SimpleRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "الاسم والبريد الإلكتروني مطلوبان", err.Error())
		return
	}

	teacher, err := tc.teacherService.SimpleRegister(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err, "[TeacherController] Failed to register teacher")
		return
	}
	tc.respondWithToken(c, http.StatusCreated, teacher)
}

func (tc *TeacherController) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "البريد الإلكتروني مطلوب", err.Error())
		return
	}

	teacher, err := tc.teacherService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		handleError(c, err, "[TeacherController] Login failed")
		return
	}
	tc.respondWithToken(c, http.StatusOK, teacher)
}

func (tc *TeacherController) GetTeacher(c *gin.Context) {
	teacher, err := tc.teacherService.GetTeacher(c.Request.Context(), middleware.TeacherID(c))
	if err != nil {
		handleError(c, err, "[TeacherController] Failed to get teacher")
		return
	}
	c.JSON(http.StatusOK, teacher)
}

func (tc *TeacherController) GetStats(c *gin.Context) {
	stats, err := tc.teacherService.Stats(c.Request.Context(), middleware.TeacherID(c))
	if err != nil {
		handleError(c, err, "[TeacherController] Failed to get stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (tc *TeacherController) SetPassword(c *gin.Context) {
	var req SetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "كلمة المرور مطلوبة", err.Error())
		return
	}

	if err := tc.teacherService.SetPassword(c.Request.Context(), middleware.TeacherID(c), req.Password); err != nil {
		handleError(c, err, "[TeacherController] Failed to set password")
		return
	}
	utils.SuccessResponse(c, "تم تعيين كلمة المرور بنجاح", nil)
}

func (tc *TeacherController) SetDriveFolder(c *gin.Context) {
	var req DriveFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request format", err.Error())
		return
	}
	input := strings.TrimSpace(req.DriveFolderLink)
	if input == "" {
		input = strings.TrimSpace(req.DriveFolderID)
	}
	if input == "" {
		utils.BadRequestResponse(c, "رابط مجلد Google Drive مطلوب", nil)
		return
	}

	folderID, err := tc.teacherService.SetDriveFolder(c.Request.Context(), middleware.TeacherID(c), input)
	if err != nil {
		handleError(c, err, "[TeacherController] Failed to set drive folder")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "تم ربط مجلد Google Drive", "driveFolderId": folderID})
}
