package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studentfiles/services"
	"studentfiles/utils"
)

// ParentController serves the unauthenticated parent portal.
type ParentController struct {
	parentService  *services.ParentService
	captchaService *services.CaptchaService
}

func NewParentController(parentService *services.ParentService, captchaService *services.CaptchaService) *ParentController {
	return &ParentController{
		parentService:  parentService,
		captchaService: captchaService,
	}
}

func (pc *ParentController) Captcha(c *gin.Context) {
	q, err := pc.captchaService.Random(c.Request.Context())
	if err != nil {
		handleError(c, err, "[ParentController] Failed to load captcha")
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": q.ID, "question": q.Question})
}

// LinkInfo lets the portal show whose link the parent opened.
func (pc *ParentController) LinkInfo(c *gin.Context) {
	teacher, err := pc.parentService.TeacherByLinkCode(c.Request.Context(), c.Param("linkCode"))
	if err != nil {
		handleError(c, err, "[ParentController] Failed to resolve link")
		return
	}
	c.JSON(http.StatusOK, gin.H{"teacher": teacher.Public()})
}

func (pc *ParentController) VerifyStudent(c *gin.Context) {
	var req services.VerifyStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "بيانات ناقصة", err.Error())
		return
	}

	result, err := pc.parentService.VerifyStudent(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err, "[ParentController] Verification failed")
		return
	}
	c.JSON(http.StatusOK, result)
}
