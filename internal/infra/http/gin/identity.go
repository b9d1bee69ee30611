package ginserver

import (
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	domainbooking "rentalhub/internal/domain/booking"
)

// HeaderUserID carries the caller identity resolved by the gateway in front
// of this service.
const HeaderUserID = "X-User-ID"

const actorContextKey = "rentalhub.actor"

// Identity copies the caller id from the request headers into the gin
// context. Requests without it continue anonymously; the engine's own id is
// refused.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if domainbooking.IsReservedActor(id) {
			c.AbortWithStatusJSON(http.StatusForbidden, errorBody{Error: "caller identity is reserved", Code: "forbidden"})
			return
		}
		if id != "" {
			c.Set(actorContextKey, id)
		}
		c.Next()
	}
}

func currentActor(c *gin.Context) string {
	return c.GetString(actorContextKey)
}

func requireActor(c *gin.Context) (string, bool) {
	actor := currentActor(c)
	if actor == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "caller identity required"})
		return "", false
	}
	return actor, true
}
