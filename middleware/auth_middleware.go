package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"studentfiles/utils"
)

const (
	ctxAuthTeacherID = "authTeacherId"
	ctxEmail         = "email"
	ctxName          = "name"
)

// AuthMiddleware verifies the bearer token. With required=false requests
// without a token pass through unauthenticated; a token that is present
// must still be valid.
func AuthMiddleware(jwtSecret string, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c)
		if token == "" {
			if !required {
				c.Next()
				return
			}
			utils.AbortWithError(c, http.StatusUnauthorized, "Authorization token required")
			return
		}

		claims, err := utils.VerifyJWTTokenWithSecret(token, jwtSecret)
		if err != nil {
			utils.AbortWithError(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		c.Set(ctxAuthTeacherID, claims.TeacherID)
		c.Set(ctxEmail, claims.Email)
		c.Set(ctxName, claims.Name)

		c.Next()
	}
}

// AuthenticatedTeacherID returns the teacher from the bearer token, if any.
func AuthenticatedTeacherID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ctxAuthTeacherID)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

func extractBearerToken(c *gin.Context) string {
	scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
