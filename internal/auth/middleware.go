package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const actorKey = "auth.actor"

// Middleware 校验 Bearer 令牌并把 Actor 放入上下文
func Middleware(verifier *TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "missing bearer token", "data": nil})
			return
		}
		actor, err := verifier.Parse(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "invalid token", "data": nil})
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

// ActorFrom 取出中间件写入的 Actor
func ActorFrom(c *gin.Context) (Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return Actor{}, false
	}
	actor, ok := v.(Actor)
	return actor, ok
}
