package handler

import (
	"context"
	"net/http"

	"social-auth/internal/auth"
	"social-auth/internal/auth/orchestrator"
	"social-auth/internal/auth/provider"
	"social-auth/internal/logger"
	"social-auth/internal/middleware"
	"social-auth/internal/user"

	"github.com/gin-gonic/gin"
)

// Authenticator runs a login attempt to completion.
type Authenticator interface {
	Authenticate(ctx context.Context, req orchestrator.Request) orchestrator.AuthResult
	AuthenticateGoogle(ctx context.Context, req orchestrator.GoogleRequest) orchestrator.AuthResult
	AuthenticateApple(ctx context.Context, req orchestrator.AppleRequest) orchestrator.AuthResult
}

// UserLookup loads accounts for authenticated requests.
type UserLookup interface {
	FindByID(ctx context.Context, id string) (*user.User, error)
}

type Handler struct {
	auth      Authenticator
	providers *provider.Registry
	users     UserLookup
}

func NewHandler(
	authenticator Authenticator,
	registry *provider.Registry,
	users UserLookup,
) *Handler {
	return &Handler{
		auth:      authenticator,
		providers: registry,
		users:     users,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/auth/google", h.google)
	r.POST("/auth/apple", h.apple)
	r.GET("/oauth/login/:provider", h.login)
	r.GET("/oauth/callback/:provider", h.callback)

	for _, route := range r.Routes() {
		logger.Debug("route registered", map[string]any{
			"method": route.Method,
			"path":   route.Path,
		})
	}
}

type googleRequest struct {
	Code     string `json:"code"`
	Platform string `json:"platform"`
	AdsID    string `json:"adsId"`
}

func (h *Handler) google(c *gin.Context) {
	var req googleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		rejectBody(c, "google", err)
		return
	}

	res := h.auth.AuthenticateGoogle(c.Request.Context(), orchestrator.GoogleRequest{
		Code:     req.Code,
		Platform: req.Platform,
		AdsID:    req.AdsID,
		Client:   clientContext(c),
	})
	c.JSON(res.StatusCode, res)
}

type appleRequest struct {
	IdentityToken string   `json:"identityToken"`
	FullName      FullName `json:"fullName"`
	AdsID         string   `json:"adsId"`
}

func (h *Handler) apple(c *gin.Context) {
	var req appleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		rejectBody(c, "apple", err)
		return
	}

	res := h.auth.AuthenticateApple(c.Request.Context(), orchestrator.AppleRequest{
		IdentityToken: req.IdentityToken,
		FullName:      string(req.FullName),
		AdsID:         req.AdsID,
		Client:        clientContext(c),
	})
	c.JSON(res.StatusCode, res)
}

func (h *Handler) login(c *gin.Context) {
	providerName := c.Param("provider")

	p, err := h.providers.WebLogin(providerName)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "unknown oauth provider",
		})
		return
	}

	state := generateState(c)
	_, codeChallenge := generatePKCE(c)

	authURL := p.AuthCodeURL(state, codeChallenge)
	c.Redirect(http.StatusFound, authURL)
}

func (h *Handler) callback(c *gin.Context) {
	providerName := c.Param("provider")

	if _, err := h.providers.WebLogin(providerName); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "unknown oauth provider",
		})
		return
	}

	if !validateState(c) {
		logger.Warn("oauth callback state mismatch", map[string]any{
			"provider": providerName,
		})
		res := orchestrator.Failure()
		c.JSON(res.StatusCode, res)
		return
	}
	clearState(c)

	// The user denied consent or the provider failed before issuing a code.
	if errParam := c.Query("error"); errParam != "" {
		logger.Warn("oauth callback returned error", map[string]any{
			"provider": providerName,
			"error":    errParam,
			"desc":     c.Query("error_description"),
		})
		res := orchestrator.Failure()
		c.JSON(res.StatusCode, res)
		return
	}

	// Authorization codes are single use; without the verifier the
	// exchange would fail, so the code is not spent.
	codeVerifier := getPKCEVerifier(c)
	clearPKCE(c)
	if codeVerifier == "" {
		logger.Warn("oauth callback missing pkce verifier", map[string]any{
			"provider": providerName,
		})
		res := orchestrator.Failure()
		c.JSON(res.StatusCode, res)
		return
	}

	res := h.auth.Authenticate(c.Request.Context(), orchestrator.Request{
		Provider: providerName,
		Credentials: provider.Credentials{
			Code:         c.Query("code"),
			CodeVerifier: codeVerifier,
			Platform:     "web",
		},
		Client: clientContext(c),
	})
	c.JSON(res.StatusCode, res)
}

// Me returns the profile of the authenticated user.
func (h *Handler) Me(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)

	u, err := h.users.FindByID(c.Request.Context(), userID)
	if err != nil {
		logger.Error("user lookup failed", map[string]any{
			"user_id": userID,
			"error":   err,
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}
	if u == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": u.FormatResponse()})
}

const unknownCountry = "Unknown"

func clientContext(c *gin.Context) auth.ClientContext {
	country := c.GetHeader("CF-IPCountry")
	if country == "" {
		country = unknownCountry
	}
	return auth.ClientContext{
		SourceIP: c.ClientIP(),
		Country:  country,
	}
}

func rejectBody(c *gin.Context, providerName string, err error) {
	logger.Warn("authentication request body rejected", map[string]any{
		"provider": providerName,
		"kind":     string(auth.KindInvalidRequest),
		"error":    err,
	})
	res := orchestrator.Failure()
	c.JSON(res.StatusCode, res)
}
