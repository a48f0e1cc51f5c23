package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/entity"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/interface/http/response"
)

// Context ключи для gin.Context.
const (
	ContextUserIDKey = "user_id"
	ContextRoleKey   = "role"
	ContextEmailKey  = "email"
	ContextActorKey  = "actor"
)

// AccessParser разбирает access токен в участника.
type AccessParser interface {
	ParseAccess(token string) (entity.Actor, error)
}

// AuthMiddleware проверяет JWT access токен и кладёт участника в контекст.
func AuthMiddleware(tokens AccessParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
			response.Unauthorized(c, "требуется авторизация")
			c.Abort()
			return
		}

		actor, err := tokens.ParseAccess(strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			response.Unauthorized(c, "токен невалиден")
			c.Abort()
			return
		}

		c.Set(ContextUserIDKey, actor.UserID)
		c.Set(ContextRoleKey, actor.Role)
		c.Set(ContextEmailKey, actor.Email)
		c.Set(ContextActorKey, actor)
		c.Next()
	}
}

// RequireRole пропускает только участников с указанной ролью.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ContextRoleKey) != role {
			response.Forbidden(c, "недостаточно прав")
			c.Abort()
			return
		}
		c.Next()
	}
}

// ActorFrom достаёт участника, положенного AuthMiddleware.
func ActorFrom(c *gin.Context) (entity.Actor, bool) {
	v, ok := c.Get(ContextActorKey)
	if !ok {
		return entity.Actor{}, false
	}
	actor, ok := v.(entity.Actor)
	return actor, ok
}
