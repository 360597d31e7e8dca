package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/davicafu/scoreregistry/pkg/utils"
)

const (
	APIKeyHeader = "X-API-Key"
	accountIDKey = "account_id"
	apiKeyCtxKey = "api_key"
)

// APIKeyAuth resuelve la cuenta a partir de la cabecera X-API-Key.
func APIKeyAuth(keys map[string]int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(APIKeyHeader)
		accountID, ok := keys[key]
		if key == "" || !ok {
			utils.SendUnauthorized(c, "invalid API key")
			c.Abort()
			return
		}
		c.Set(accountIDKey, accountID)
		c.Set(apiKeyCtxKey, key)
		c.Next()
	}
}

// AccountID devuelve la cuenta autenticada (0 si no hay).
func AccountID(c *gin.Context) int64 {
	return c.GetInt64(accountIDKey)
}

// APIKey devuelve la clave autenticada, o la IP si no la hay.
func APIKey(c *gin.Context) string {
	if key := c.GetString(apiKeyCtxKey); key != "" {
		return key
	}
	return c.ClientIP()
}
