package app

import (
	"context"
	"net/http"

	"social-auth/internal/auth/handler"
	"social-auth/internal/auth/keyset"
	"social-auth/internal/auth/orchestrator"
	"social-auth/internal/auth/provider"
	"social-auth/internal/auth/provider/apple"
	"social-auth/internal/auth/provider/google"
	"social-auth/internal/auth/resolver"
	"social-auth/internal/auth/verifier"
	"social-auth/internal/config"
	"social-auth/internal/logger"
	"social-auth/internal/middleware"
	"social-auth/internal/session"
	"social-auth/internal/user"

	"github.com/gin-gonic/gin"
)

func setupHTTP(ctx context.Context, cfg config.Config) (*gin.Engine, func(context.Context) error, error) {
	infra, err := setupInfra(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	router, err := buildRouter(ctx, cfg, infra)
	if err != nil {
		_ = infra.Close(ctx)
		return nil, nil, err
	}

	return router, infra.Close, nil
}

func buildRouter(ctx context.Context, cfg config.Config, infra *Infra) (*gin.Engine, error) {
	providerClient := &http.Client{Timeout: cfg.ProviderHTTPTimeout}

	// ----------------------------
	// Providers
	// ----------------------------

	var googleOpts []google.Option
	if cfg.Google.VerifyIDToken {
		googleOpts = append(googleOpts, google.WithIDTokenChecker(
			google.NewIDTokenChecker(ctx, cfg.Google.CertsURL, cfg.Google.ClientID, providerClient),
		))
	}

	googleProvider, err := google.New(google.Config{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		RedirectURL:  cfg.Google.RedirectURL,
		AuthURL:      cfg.Google.AuthURL,
		TokenURL:     cfg.Google.TokenURL,
		UserInfoURL:  cfg.Google.UserInfoURL,
		HTTPClient:   providerClient,
	}, googleOpts...)
	if err != nil {
		return nil, err
	}

	keysetOpts := []keyset.Option{
		keyset.WithFetchTimeout(cfg.ProviderHTTPTimeout),
		keyset.WithMinRefreshInterval(cfg.KeysetMinRefresh),
	}
	if infra.Redis != nil {
		keysetOpts = append(keysetOpts, keyset.WithSnapshots(
			keyset.NewRedisSnapshotStore(infra.Redis.Client, cfg.KeysetSnapshotTTL),
		))
	}

	appleKeys := keyset.NewResolver(
		"apple",
		keyset.NewHTTPFetcher(cfg.Apple.KeysURL, providerClient),
		keysetOpts...,
	)
	if err := appleKeys.Warm(ctx); err != nil {
		// Not fatal: the first Apple login fetches the key set.
		logger.Warn("apple key set warm-up failed", map[string]any{"error": err.Error()})
	}

	appleProvider := apple.New(
		verifier.New(appleKeys, verifier.WithLeeway(cfg.Apple.ClockSkew)),
		cfg.Apple.ClientID,
		cfg.Apple.Issuer,
	)

	registry := provider.NewRegistry(
		googleProvider,
		appleProvider,
	)

	// ----------------------------
	// Dependencies
	// ----------------------------

	users := user.NewPostgresRepository(infra.DB)

	identityResolver := resolver.NewUserResolver(
		users,
		resolver.WithStartingCoin(cfg.Client.StartingCoin),
		resolver.WithSubjectFallback(appleProvider.Name()),
	)

	issuer, err := session.NewJWTIssuer(
		cfg.Session.Secret,
		cfg.Session.Issuer,
		cfg.Session.AccessTTL,
		cfg.Session.RefreshTTL,
	)
	if err != nil {
		return nil, err
	}

	authenticator := orchestrator.New(
		registry,
		identityResolver,
		issuer,
		orchestrator.WithConfigSource(orchestrator.StaticConfig(cfg.Client.Values())),
	)

	authHandler := handler.NewHandler(authenticator, registry, users)
	authMiddleware := middleware.NewAuthMiddleware(issuer)

	// ----------------------------
	// Router
	// ----------------------------

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/health/ready", func(c *gin.Context) {
		if err := infra.DB.HealthCheck(c.Request.Context()); err != nil {
			logger.Warn("readiness check failed", map[string]any{"error": err.Error()})
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		cached, fetches := appleKeys.Stats()
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"keysets": gin.H{
				"apple": gin.H{"cachedKeys": cached, "fetches": fetches},
			},
		})
	})

	// ----------------------------
	// Public Routes
	// ----------------------------

	authHandler.RegisterRoutes(router)

	// ----------------------------
	// Protected API Routes
	// ----------------------------

	api := router.Group("/api")
	api.Use(middleware.GinRequireAuth(authMiddleware))

	api.GET("/me", authHandler.Me)

	return router, nil
}
