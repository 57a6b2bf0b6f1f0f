package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (m *MiddlewareManager) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.auth.Disabled() {
			c.Next()
			return
		}

		userID, err := m.auth.ValidateTokenJWT(c, c.GetHeader("Authorization"))
		if err != nil {
			m.log.Debug().Err(err).Msg("authentication failed")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"erro": "Token inválido", "detalhe": err.Error()})
			return
		}

		c.Set("user_id", userID)
		c.Next()
	}
}
