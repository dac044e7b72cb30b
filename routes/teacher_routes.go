package routes

import (
	"github.com/gin-gonic/gin"

	"studentfiles/controllers"
)

// RegisterTeacherRoutes expects a group already scoped to /teacher/:id.
func RegisterTeacherRoutes(teacher *gin.RouterGroup, teacherController *controllers.TeacherController, authController *controllers.AuthController) {
	teacher.GET("", teacherController.GetTeacher)
	teacher.GET("/stats", teacherController.GetStats)
	teacher.POST("/set-password", teacherController.SetPassword)
	teacher.PUT("/drive-folder", teacherController.SetDriveFolder)
	teacher.GET("/connect-google", authController.ConnectGoogle)
}

func RegisterStudentRoutes(teacher *gin.RouterGroup, studentController *controllers.StudentController) {
	students := teacher.Group("/students")
	{
		students.GET("", studentController.ListStudents)
		students.POST("", studentController.CreateStudent)
		students.DELETE("/:studentId", studentController.DeleteStudent)
		students.POST("/upload-excel", studentController.UploadExcel)
		students.GET("/excel-template", studentController.ExcelTemplate)
	}
}
