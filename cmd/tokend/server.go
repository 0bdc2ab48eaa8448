package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	goToken "github.com/MrEthical07/goToken"
	"github.com/MrEthical07/goToken/middleware"
)

type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type tokenResponse struct {
	Token string `json:"token"`
	Valid bool   `json:"valid"`
}

type introspectResponse struct {
	Valid     bool       `json:"valid"`
	Subject   string     `json:"sub,omitempty"`
	Scope     []string   `json:"scope,omitempty"`
	TokenID   string     `json:"jti,omitempty"`
	IssuedAt  *time.Time `json:"iat,omitempty"`
	ExpiresAt *time.Time `json:"exp,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// newRouter wires the token endpoints onto a gin engine. metrics may be nil.
func newRouter(engine *goToken.Engine, logger *slog.Logger, metrics http.Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	auth := r.Group("/auth")
	auth.POST("/login", loginHandler(engine))
	auth.POST("/introspect", introspectHandler(engine))
	auth.POST("/refresh", refreshHandler(engine))
	auth.POST("/logout", logoutHandler(engine))

	reject := middleware.WithReject(jsonReject)
	me := middleware.Guard(engine, reject)(http.HandlerFunc(meHandler))
	r.GET("/auth/me", gin.WrapH(me))
	admin := middleware.RequireScope(engine, "ADMIN", reject)(http.HandlerFunc(meHandler))
	r.GET("/admin/me", gin.WrapH(admin))

	return r
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

// requestToken reads the token from the JSON body. An absent or unparseable
// body, or one without a token, falls back to the Authorization header.
func requestToken(c *gin.Context) (string, bool) {
	var req tokenRequest
	if c.Request.ContentLength != 0 && c.ShouldBindJSON(&req) == nil && req.Token != "" {
		return req.Token, true
	}
	return middleware.BearerToken(c.GetHeader("Authorization"))
}

func clientContext(c *gin.Context) *http.Request {
	return c.Request.WithContext(goToken.WithClientIP(c.Request.Context(), c.ClientIP()))
}

func loginHandler(engine *goToken.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req credentialsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "username and password are required"})
			return
		}

		token, err := engine.Login(clientContext(c).Context(), req.Username, req.Password)
		switch {
		case err == nil:
			c.JSON(http.StatusOK, tokenResponse{Token: token, Valid: true})
		case errors.Is(err, goToken.ErrLoginRateLimited):
			if wait, ok := goToken.RetryAfter(err); ok {
				c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			}
			c.JSON(http.StatusTooManyRequests, errorResponse{Error: "too many login attempts"})
		case errors.Is(err, goToken.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, errorResponse{Error: "invalid credentials"})
		default:
			writeBackendError(c, err)
		}
	}
}

func introspectHandler(engine *goToken.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := requestToken(c)
		if !ok {
			c.JSON(http.StatusOK, introspectResponse{Valid: false})
			return
		}

		info, err := engine.IntrospectToken(c.Request.Context(), token)
		if err != nil {
			writeBackendError(c, err)
			return
		}
		if !info.Active {
			c.JSON(http.StatusOK, introspectResponse{Valid: false})
			return
		}
		c.JSON(http.StatusOK, introspectResponse{
			Valid:     true,
			Subject:   info.Subject,
			Scope:     info.Scope,
			TokenID:   info.TokenID,
			IssuedAt:  &info.IssuedAt,
			ExpiresAt: &info.ExpiresAt,
		})
	}
}

func refreshHandler(engine *goToken.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := requestToken(c)
		if !ok {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "token is required"})
			return
		}

		next, err := engine.Refresh(clientContext(c).Context(), token)
		switch {
		case err == nil:
			c.JSON(http.StatusOK, tokenResponse{Token: next, Valid: true})
		case errors.Is(err, goToken.ErrTokenReuse):
			c.JSON(http.StatusUnauthorized, errorResponse{Error: "token already used"})
		case errors.Is(err, goToken.ErrExpiredToken):
			c.JSON(http.StatusUnauthorized, errorResponse{Error: "token expired"})
		case errors.Is(err, goToken.ErrInvalidToken):
			c.JSON(http.StatusUnauthorized, errorResponse{Error: "invalid token"})
		default:
			writeBackendError(c, err)
		}
	}
}

func logoutHandler(engine *goToken.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := requestToken(c)
		if !ok {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "token is required"})
			return
		}

		err := engine.Logout(clientContext(c).Context(), token)
		switch {
		case err == nil:
			c.Status(http.StatusNoContent)
		case errors.Is(err, goToken.ErrInvalidToken):
			c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid token"})
		default:
			writeBackendError(c, err)
		}
	}
}

// jsonReject keeps guard refusals in the same JSON shape as handler errors.
func jsonReject(w http.ResponseWriter, _ *http.Request, status int) {
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	}
	writeJSON(w, status, errorResponse{Error: strings.ToLower(http.StatusText(status))})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func meHandler(w http.ResponseWriter, r *http.Request) {
	info, ok := middleware.IntrospectionFromContext(r.Context())
	if !ok {
		jsonReject(w, r, http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, introspectResponse{
		Valid:     true,
		Subject:   info.Subject,
		Scope:     info.Scope,
		TokenID:   info.TokenID,
		IssuedAt:  &info.IssuedAt,
		ExpiresAt: &info.ExpiresAt,
	})
}

func writeBackendError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, goToken.ErrRevocationUnavailable), errors.Is(err, goToken.ErrUserStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "backend unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
