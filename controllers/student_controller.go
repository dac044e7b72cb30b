package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studentfiles/middleware"
	"studentfiles/services"
	"studentfiles/utils"
)

const excelTemplateName = "students_template.xlsx"

type StudentController struct {
	teacherService *services.TeacherService
	excelService   *services.ExcelService
	maxExcelSize   int64
}

func NewStudentController(teacherService *services.TeacherService, excelService *services.ExcelService, maxExcelSize int64) *StudentController {
	return &StudentController{
		teacherService: teacherService,
		excelService:   excelService,
		maxExcelSize:   maxExcelSize,
	}
}

func (sc *StudentController) ListStudents(c *gin.Context) {
	students, err := sc.teacherService.ListStudents(c.Request.Context(), middleware.TeacherID(c))
	if err != nil {
		handleError(c, err, "[StudentController] Failed to list students")
		return
	}
	c.JSON(http.StatusOK, students)
}

func (sc *StudentController) CreateStudent(c *gin.Context) {
	var req services.CreateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "بيانات الطالب غير مكتملة", err.Error())
		return
	}

	student, err := sc.teacherService.CreateStudent(c.Request.Context(), middleware.TeacherID(c), &req)
	if err != nil {
		handleError(c, err, "[StudentController] Failed to create student")
		return
	}
	c.JSON(http.StatusCreated, student)
}

func (sc *StudentController) DeleteStudent(c *gin.Context) {
	studentID, err := middleware.ParseID(c.Param("studentId"))
	if err != nil {
		utils.BadRequestResponse(c, "معرف الطالب غير صالح", nil)
		return
	}

	if err := sc.teacherService.DeleteStudent(c.Request.Context(), middleware.TeacherID(c), studentID); err != nil {
		handleError(c, err, "[StudentController] Failed to delete student")
		return
	}
	utils.SuccessResponse(c, "تم حذف الطالب", nil)
}

func (sc *StudentController) UploadExcel(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, sc.maxExcelSize)
	fileHeader, err := c.FormFile("file")
	if err != nil {
		utils.BadRequestResponse(c, "لم يتم رفع ملف", err.Error())
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		utils.BadRequestResponse(c, "تعذر قراءة الملف", err.Error())
		return
	}
	defer f.Close()

	result, err := sc.excelService.ImportStudents(c.Request.Context(), middleware.TeacherID(c), f)
	if err != nil {
		handleError(c, err, "[StudentController] Excel import failed")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (sc *StudentController) ExcelTemplate(c *gin.Context) {
	c.Header("Content-Disposition", `attachment; filename="`+excelTemplateName+`"`)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := sc.excelService.WriteTemplate(c.Writer); err != nil {
		utils.LogError("[StudentController] Failed to write Excel template", err)
	}
}
