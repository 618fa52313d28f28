package middlewares

import (
	"net/http"

	"bitbucket.org/sitefocus/qctrack_backend/config"
	"bitbucket.org/sitefocus/qctrack_backend/models"
	"bitbucket.org/sitefocus/qctrack_backend/utils"
	"github.com/gin-gonic/gin"
)

// SessionMiddleware resolves the session token against redis and loads
// the user's identity and project scope into the request context.
// Requests without a token pass through; the route guard decides
// whether anonymous access is allowed.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			c.Next()
			return
		}
		username, exists, err := config.GetRedisValue("Token:" + token)
		if err != nil || !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		ctx = utils.SetUsernameInContext(ctx, username)

		user, err := models.GetUserByUsername(ctx, username)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		ctx = utils.SetUserIdInContext(ctx, user.ID)
		ctx = utils.SetUserNameInContext(ctx, user.Name)
		ctx = utils.SetProjectIdInContext(ctx, user.ProjectId)
		ctx = utils.SetIsAdminInContext(ctx, user.Role == models.RoleAdmin)

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
