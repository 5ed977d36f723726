package server

import (
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/costbook/internal/auth"
	"github.com/smallbiznis/costbook/internal/authcontext"
)

const contextUserIDKey = "user_id"

// AuthRequired verifies the bearer token and binds its principal to the request context.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := auth.BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			AbortWithError(c, err)
			return
		}

		principal, err := s.verifier.Verify(raw)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextUserIDKey, principal.String())
		c.Request = c.Request.WithContext(authcontext.WithUserID(c.Request.Context(), int64(principal)))
		c.Next()
	}
}
