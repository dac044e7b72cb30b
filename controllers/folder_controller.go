package controllers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"studentfiles/middleware"
	"studentfiles/models"
	"studentfiles/services"
	"studentfiles/utils"
)

type FolderController struct {
	folderService *services.FolderService
}

func NewFolderController(folderService *services.FolderService) *FolderController {
	return &FolderController{folderService: folderService}
}

type CreateFoldersRequest struct {
	WithSubjectFolders  *bool `json:"withSubjectFolders"`
	WithCategoryFolders *bool `json:"withCategoryFolders"`
}

func (r CreateFoldersRequest) options() models.FolderOptions {
	opts := models.FolderOptions{WithSubjectFolders: true}
	if r.WithSubjectFolders != nil {
		opts.WithSubjectFolders = *r.WithSubjectFolders
	}
	if r.WithCategoryFolders != nil {
		opts.WithCategoryFolders = *r.WithCategoryFolders
	}
	return opts
}

// CreateStudentFolders provisions Drive folders for every student still
// missing one and reports once the whole run has finished.
func (fc *FolderController) CreateStudentFolders(c *gin.Context) {
	var req CreateFoldersRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.BadRequestResponse(c, "Invalid request format", err.Error())
		return
	}

	result, err := fc.folderService.CreateStudentFolders(c.Request.Context(), middleware.TeacherID(c), req.options())
	if err != nil {
		handleError(c, err, "[FolderController] Folder provisioning failed")
		return
	}
	c.JSON(http.StatusOK, result)
}
