package middleware

import (
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"product-user-services/internal/core/auth"
	resp "product-user-services/internal/transport/http/response"
)

const (
	KeyClaims = "claims"
	KeyUserID = "userId"
	KeyRole   = "role"
)

// AuthJWT 校验访问令牌；roles 为空表示只要求登录
func AuthJWT(j *auth.JWTer, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ah := c.GetHeader("Authorization")
		if !strings.HasPrefix(ah, "Bearer ") {
			resp.Abort(c, resp.CodeUnauthorized, "missing token")
			return
		}
		raw := strings.TrimSpace(strings.TrimPrefix(ah, "Bearer "))
		claims, err := j.Parse(raw)
		if err != nil || claims.UID == "" {
			resp.Abort(c, resp.CodeUnauthorized, "invalid token")
			return
		}
		if len(roles) > 0 && !slices.Contains(roles, claims.Role) {
			resp.Abort(c, resp.CodeForbidden, "forbidden")
			return
		}
		c.Set(KeyClaims, claims)
		c.Set(KeyUserID, claims.UID)
		c.Set(KeyRole, claims.Role)

		// service 层只看 context
		ctx := auth.WithActor(c.Request.Context(), auth.Actor{ID: claims.UID, Role: claims.Role})
		c.Request = c.Request.WithContext(auth.WithBearer(ctx, raw))
		c.Next()
	}
}
