package routes

import (
	"github.com/gin-gonic/gin"

	"studentfiles/controllers"
)

// RegisterFileRoutes mounts uploads and listings under the teacher group and
// the stored-file and civil ID lookups under api.
func RegisterFileRoutes(api, teacher *gin.RouterGroup, fileController *controllers.FileController, auth gin.HandlerFunc) {
	teacher.POST("/students/:studentId/upload", fileController.UploadFiles)
	teacher.GET("/students/:studentId/files", fileController.ListStudentFiles)
	teacher.DELETE("/files/:fileId", fileController.DeleteFile)

	// Links handed to parents point here, so no token is required.
	api.GET("/files/*filepath", fileController.ServeFile)
	api.GET("/student/:civilId/files", auth, fileController.ListFilesByCivilID)
}
