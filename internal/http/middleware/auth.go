// README: Bearer-token auth; resolves the caller into a typed actor stored on the gin context.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"homefix/internal/infra"
	"homefix/internal/types"
)

const actorKey = "homefix.actor"

type errorResponse struct {
	Error string `json:"error"`
}

// Auth rejects requests without a verifiable bearer token. Websocket upgrades may pass
// the token as ?token= since browsers cannot set headers on them.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.Request)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "missing bearer token"})
			return
		}
		actor, err := verifier.VerifyToken(c.Request.Context(), raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "invalid token"})
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		if websocket.IsWebSocketUpgrade(r) {
			if tok := r.URL.Query().Get("token"); tok != "" {
				return tok, true
			}
		}
		return "", false
	}
	tok, found := strings.CutPrefix(header, "Bearer ")
	tok = strings.TrimSpace(tok)
	if !found || tok == "" {
		return "", false
	}
	return tok, true
}

// CallerActor returns the authenticated actor, or the zero Actor outside Auth.
func CallerActor(c *gin.Context) types.Actor {
	v, ok := c.Get(actorKey)
	if !ok {
		return types.Actor{}
	}
	actor, _ := v.(types.Actor)
	return actor
}

func CallerUID(c *gin.Context) string {
	return string(CallerActor(c).ID)
}

func CallerRole(c *gin.Context) string {
	return string(CallerActor(c).Role)
}

// RequireRole aborts with 403 unless the caller holds one of roles.
func RequireRole(roles ...types.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := CallerActor(c)
		for _, r := range roles {
			if actor.Is(r) {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, errorResponse{Error: "forbidden for role " + string(actor.Role)})
	}
}
