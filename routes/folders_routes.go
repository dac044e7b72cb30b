package routes

import (
	"github.com/gin-gonic/gin"

	"studentfiles/controllers"
)

func RegisterFolderRoutes(teacher *gin.RouterGroup, folderController *controllers.FolderController) {
	teacher.POST("/create-student-folders", folderController.CreateStudentFolders)
}
