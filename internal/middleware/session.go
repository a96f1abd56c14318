package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docrag/internal/model"
	"github.com/xxxsen/docrag/internal/pkg/errcode"
	"github.com/xxxsen/docrag/internal/pkg/jwt"
	"github.com/xxxsen/docrag/internal/pkg/response"
)

const (
	ContextUserIDKey    = "user_id"
	ContextProjectIDKey = "project_id"

	SessionCookie = "docrag_session"
	SessionHeader = "X-Session-Token"
)

// Session resolves the caller scope from a bearer token or the session
// cookie. Callers without a valid session get a fresh scope and token.
func Session(secret []byte, ttl time.Duration, newScope func() model.Scope) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			token, _ = c.Cookie(SessionCookie)
		}
		if token != "" {
			if claims, err := jwt.ParseToken(token, secret); err == nil {
				setScope(c, claims.Scope())
				c.Next()
				return
			}
			logutil.GetLogger(c.Request.Context()).Debug("drop invalid session token")
		}
		scope := newScope()
		issued, err := jwt.GenerateToken(scope, secret, ttl)
		if err != nil {
			logutil.GetLogger(c.Request.Context()).Error("issue session token failed", zap.Error(err))
			response.Abort(c, errcode.ErrInternal, "failed to create session")
			return
		}
		http.SetCookie(c.Writer, &http.Cookie{
			Name:     SessionCookie,
			Value:    issued,
			Path:     "/",
			MaxAge:   int(ttl / time.Second),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			Secure:   c.Request.TLS != nil,
		})
		c.Header(SessionHeader, issued)
		logutil.GetLogger(c.Request.Context()).Info("session created", zap.String("scope", scope.String()))
		setScope(c, scope)
		c.Next()
	}
}

func ScopeFromContext(c *gin.Context) model.Scope {
	return model.Scope{
		UserID:    c.GetString(ContextUserIDKey),
		ProjectID: c.GetString(ContextProjectIDKey),
	}
}

func setScope(c *gin.Context, scope model.Scope) {
	c.Set(ContextUserIDKey, scope.UserID)
	c.Set(ContextProjectIDKey, scope.ProjectID)
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
