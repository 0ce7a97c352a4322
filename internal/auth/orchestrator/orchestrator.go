// Package orchestrator drives a login from provider credentials to a
// service session and shapes the single response contract.
package orchestrator

import (
	"context"
	"fmt"
	"net/http"

	"social-auth/internal/auth"
	"social-auth/internal/auth/provider"
	"social-auth/internal/auth/resolver"
	"social-auth/internal/logger"
	"social-auth/internal/session"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "social-auth/orchestrator"

// Request is one login attempt.
type Request struct {
	Provider    string
	Credentials provider.Credentials
	Client      auth.ClientContext
	AdsID       string
}

// GoogleRequest is the body of a Google code-flow login.
type GoogleRequest struct {
	Code         string
	Platform     string
	CodeVerifier string
	AdsID        string
	Client       auth.ClientContext
}

// AppleRequest is the body of a Sign in with Apple login.
type AppleRequest struct {
	IdentityToken string
	FullName      string
	AdsID         string
	Client        auth.ClientContext
}

type Orchestrator struct {
	providers *provider.Registry
	resolver  resolver.Resolver
	issuer    TokenIssuer
	formatter ProfileFormatter
	config    ConfigSource
	tracer    trace.Tracer
}

type Option func(*Orchestrator)

func WithFormatter(f ProfileFormatter) Option {
	return func(o *Orchestrator) { o.formatter = f }
}

// WithConfigSource attaches client configuration to successful results.
func WithConfigSource(c ConfigSource) Option {
	return func(o *Orchestrator) { o.config = c }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *Orchestrator) { o.tracer = tp.Tracer(tracerName) }
}

func New(
	providers *provider.Registry,
	res resolver.Resolver,
	issuer TokenIssuer,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		providers: providers,
		resolver:  res,
		issuer:    issuer,
		formatter: DefaultFormatter,
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) AuthenticateGoogle(ctx context.Context, req GoogleRequest) AuthResult {
	return o.Authenticate(ctx, Request{
		Provider: "google",
		Credentials: provider.Credentials{
			Code:         req.Code,
			Platform:     req.Platform,
			CodeVerifier: req.CodeVerifier,
		},
		Client: req.Client,
		AdsID:  req.AdsID,
	})
}

func (o *Orchestrator) AuthenticateApple(ctx context.Context, req AppleRequest) AuthResult {
	return o.Authenticate(ctx, Request{
		Provider: "apple",
		Credentials: provider.Credentials{
			IdentityToken: req.IdentityToken,
			FullName:      req.FullName,
		},
		Client: req.Client,
		AdsID:  req.AdsID,
	})
}

// Authenticate runs identify, resolve and issue in order and stops at the
// first failure. Every failure, panics included, yields the same 400
// result; the error kind is only logged and traced.
func (o *Orchestrator) Authenticate(ctx context.Context, req Request) (result AuthResult) {
	ctx, span := o.tracer.Start(ctx, "auth.authenticate",
		trace.WithAttributes(attribute.String("auth.provider", req.Provider)))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			result = o.fail(span, req.Provider, fmt.Errorf("panic: %v", r))
		}
	}()

	res, err := o.authenticate(ctx, req)
	if err != nil {
		return o.fail(span, req.Provider, err)
	}

	span.SetAttributes(attribute.Bool("auth.new_user", res.IsNewUser))
	span.SetStatus(codes.Ok, "")
	return res
}

func (o *Orchestrator) authenticate(ctx context.Context, req Request) (AuthResult, error) {
	const op = "orchestrator.Authenticate"

	p, err := o.providers.Get(req.Provider)
	if err != nil {
		return AuthResult{}, auth.E(auth.KindInvalidRequest, op, err)
	}

	identity, err := step(ctx, o.tracer, "auth.identify", func(ctx context.Context) (*auth.Identity, error) {
		return p.Identify(ctx, req.Credentials)
	})
	if err != nil {
		return AuthResult{}, err
	}

	resolved, err := step(ctx, o.tracer, "auth.resolve_user", func(ctx context.Context) (*resolver.Resolution, error) {
		return o.resolver.Resolve(ctx, identity, req.Client, req.AdsID)
	})
	if err != nil {
		return AuthResult{}, err
	}

	tokens, err := step(ctx, o.tracer, "auth.issue_session", func(ctx context.Context) (session.Tokens, error) {
		t, err := o.issuer.GenerateAuthTokens(ctx, resolved.User)
		if err != nil {
			return session.Tokens{}, auth.E(auth.KindDependencyFailed, "orchestrator.IssueSession", err)
		}
		return t, nil
	})
	if err != nil {
		return AuthResult{}, err
	}

	result := AuthResult{
		StatusCode: http.StatusOK,
		IsSuccess:  true,
		User:       o.formatter.FormatUser(resolved.User),
		Tokens:     &tokens,
		IsNewUser:  resolved.Created,
		Config:     o.clientConfig(ctx),
	}

	logger.Info("authentication succeeded", map[string]any{
		"provider": req.Provider,
		"user_id":  resolved.User.ID.String(),
		"new_user": resolved.Created,
		"country":  req.Client.Country,
	})

	return result, nil
}

// clientConfig never fails a login; errors drop the config block.
func (o *Orchestrator) clientConfig(ctx context.Context) map[string]any {
	if o.config == nil {
		return nil
	}
	cfg, err := o.config.ClientConfig(ctx)
	if err != nil {
		logger.Warn("client config unavailable", map[string]any{"error": err})
		return nil
	}
	return cfg
}

func (o *Orchestrator) fail(span trace.Span, providerName string, err error) AuthResult {
	kind := auth.KindOf(err)

	span.RecordError(err)
	span.SetAttributes(attribute.String("auth.error_kind", string(kind)))
	span.SetStatus(codes.Error, string(kind))

	fields := map[string]any{
		"provider": providerName,
		"kind":     string(kind),
		"error":    err,
	}
	if kind.CallerError() {
		logger.Warn("authentication rejected", fields)
	} else {
		logger.Error("authentication failed", fields)
	}

	return Failure()
}

// step runs fn inside a child span and records its error kind.
func step[T any](ctx context.Context, tracer trace.Tracer, name string, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := tracer.Start(ctx, name)
	defer span.End()

	out, err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("auth.error_kind", string(auth.KindOf(err))))
		span.SetStatus(codes.Error, string(auth.KindOf(err)))
	}
	return out, err
}
