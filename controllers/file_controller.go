package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"studentfiles/middleware"
	"studentfiles/services"
	"studentfiles/utils"
)

type FileController struct {
	fileService *services.FileService
}

func NewFileController(fileService *services.FileService) *FileController {
	return &FileController{fileService: fileService}
}

// UploadFiles accepts up to the configured number of files in the "files"
// field. Oversized bodies are cut off before anything reaches the disk.
func (fc *FileController) UploadFiles(c *gin.Context) {
	studentID, err := middleware.ParseID(c.Param("studentId"))
	if err != nil {
		utils.BadRequestResponse(c, "معرف الطالب غير صالح", nil)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, fc.fileService.MaxRequestBytes())
	form, err := c.MultipartForm()
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			utils.PayloadTooLargeResponse(c, "حجم الملفات أكبر من المسموح")
			return
		}
		utils.BadRequestResponse(c, "Invalid multipart form", err.Error())
		return
	}

	req := &services.UploadRequest{
		TeacherID:   middleware.TeacherID(c),
		StudentID:   studentID,
		Subject:     c.PostForm("subject"),
		Category:    c.PostForm("category"),
		Description: c.PostForm("description"),
		Files:       form.File["files"],
	}

	result, err := fc.fileService.UploadFiles(c.Request.Context(), req)
	if err != nil {
		handleError(c, err, "[FileController] Upload failed")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (fc *FileController) ListStudentFiles(c *gin.Context) {
	studentID, err := middleware.ParseID(c.Param("studentId"))
	if err != nil {
		utils.BadRequestResponse(c, "معرف الطالب غير صالح", nil)
		return
	}

	student, files, err := fc.fileService.ListStudentFiles(c.Request.Context(), middleware.TeacherID(c), studentID)
	if err != nil {
		handleError(c, err, "[FileController] Failed to list files")
		return
	}
	c.JSON(http.StatusOK, gin.H{"student": student, "files": files})
}

// ListFilesByCivilID serves GET /api/student/:civilId/files?teacherId=N.
func (fc *FileController) ListFilesByCivilID(c *gin.Context) {
	teacherID, err := middleware.ParseID(c.Query("teacherId"))
	if err != nil {
		utils.BadRequestResponse(c, "معرف المعلم مطلوب", nil)
		return
	}
	if authID, ok := middleware.AuthenticatedTeacherID(c); ok && authID != teacherID {
		utils.ForbiddenResponse(c, "Insufficient permissions")
		return
	}

	files, err := fc.fileService.ListFilesByCivilID(c.Request.Context(), teacherID, c.Param("civilId"))
	if err != nil {
		handleError(c, err, "[FileController] Failed to list files by civil ID")
		return
	}
	c.JSON(http.StatusOK, files)
}

func (fc *FileController) DeleteFile(c *gin.Context) {
	fileID, err := middleware.ParseID(c.Param("fileId"))
	if err != nil {
		utils.BadRequestResponse(c, "معرف الملف غير صالح", nil)
		return
	}

	if err := fc.fileService.DeleteFile(c.Request.Context(), middleware.TeacherID(c), fileID); err != nil {
		handleError(c, err, "[FileController] Failed to delete file")
		return
	}
	utils.SuccessResponse(c, "تم حذف الملف", nil)
}

// ServeFile streams a stored file by its path under the upload directory.
func (fc *FileController) ServeFile(c *gin.Context) {
	fullPath, err := fc.fileService.ResolvePath(c.Param("filepath"))
	if err != nil {
		handleError(c, err, "[FileController] Failed to resolve file")
		return
	}
	c.Header("Content-Type", services.ContentType(fullPath))
	c.File(fullPath)
}
