package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"studentfiles/utils"
)

const ctxTeacherID = "teacherId"

// TeacherScope resolves the teacher named in the route and, when the request
// is authenticated, requires it to be the token's teacher.
func TeacherScope(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		teacherID, err := ParseID(c.Param(param))
		if err != nil {
			utils.AbortWithError(c, http.StatusBadRequest, "معرف المعلم غير صالح")
			return
		}

		if authID, ok := AuthenticatedTeacherID(c); ok && authID != teacherID {
			utils.AbortWithError(c, http.StatusForbidden, "Insufficient permissions")
			return
		}

		c.Set(ctxTeacherID, teacherID)
		c.Next()
	}
}

// TeacherID is the teacher resolved by TeacherScope.
func TeacherID(c *gin.Context) uint {
	return c.GetUint(ctxTeacherID)
}

func ParseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, strconv.ErrSyntax
	}
	return uint(id), nil
}
