package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"studentfiles/services"
	"studentfiles/utils"
)

type errorMapping struct {
	target  error
	status  int
	message string
}

var errorMappings = []errorMapping{
	{services.ErrTeacherNotFound, http.StatusNotFound, "المعلم غير موجود"},
	{services.ErrStudentNotFound, http.StatusNotFound, "الطالب غير موجود"},
	{services.ErrFileNotFound, http.StatusNotFound, "الملف غير موجود"},
	{services.ErrInvalidLinkCode, http.StatusNotFound, "رابط الوصول غير صالح"},
	{services.ErrNoCaptcha, http.StatusNotFound, "لا توجد أسئلة تحقق متاحة"},
	{services.ErrDriveFolderNotConfigured, http.StatusBadRequest, "لم يتم ربط مجلد Google Drive"},
	{services.ErrMissingFields, http.StatusBadRequest, "بيانات ناقصة"},
	{services.ErrInvalidCaptcha, http.StatusBadRequest, "إجابة التحقق غير صحيحة"},
	{services.ErrInvalidDriveFolder, http.StatusBadRequest, "رابط مجلد Google Drive غير صالح"},
	{services.ErrInvalidStudent, http.StatusBadRequest, "بيانات الطالب غير صالحة"},
	{services.ErrPasswordTooShort, http.StatusBadRequest, "كلمة المرور قصيرة جداً"},
	{services.ErrInvalidWorkbook, http.StatusBadRequest, "ملف Excel غير صالح"},
	{services.ErrMissingColumns, http.StatusBadRequest, "ملف Excel لا يحتوي على الأعمدة المطلوبة"},
	{services.ErrNoFiles, http.StatusBadRequest, "لم يتم اختيار ملفات"},
	{services.ErrTooManyFiles, http.StatusBadRequest, "عدد الملفات أكبر من المسموح"},
	{services.ErrInvalidFile, http.StatusBadRequest, "اسم الملف غير صالح"},
	{services.ErrInvalidCategory, http.StatusBadRequest, "تصنيف الملف غير صالح"},
	{services.ErrInvalidCivilID, http.StatusBadRequest, "رقم الهوية غير صالح"},
	{services.ErrInvalidPath, http.StatusBadRequest, "مسار الملف غير صالح"},
	{services.ErrFileTooLarge, http.StatusRequestEntityTooLarge, "حجم الملف أكبر من المسموح"},
	{services.ErrInvalidCredentials, http.StatusUnauthorized, "البريد الإلكتروني أو كلمة المرور غير صحيحة"},
	{services.ErrGoogleTokenRejected, http.StatusUnauthorized, "تعذر التحقق من حساب Google"},
	{services.ErrGoogleAccountInUse, http.StatusConflict, "حساب Google مرتبط بمعلم آخر"},
	{services.ErrInvalidState, http.StatusBadRequest, "Invalid or expired authentication state"},
	{services.ErrOAuthNotConfigured, http.StatusServiceUnavailable, "Google OAuth غير مفعل"},
	{services.ErrDuplicateStudent, http.StatusConflict, "يوجد طالب بنفس رقم الهوية"},
}

// handleError maps service errors onto HTTP responses. Anything unknown is
// logged and reported as a generic server error.
func handleError(c *gin.Context, err error, logMessage string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			utils.ErrorResponse(c, m.status, m.message, err.Error())
			return
		}
	}
	utils.InternalServerErrorResponse(c, logMessage, err)
}
