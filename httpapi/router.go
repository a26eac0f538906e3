package httpapi

import (
	"context"
	"net/http"
	"time"

	goToken "github.com/MrEthical07/goToken"
	"github.com/MrEthical07/goToken/middleware"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Service is the engine surface the handlers call. *goToken.Engine
// implements it.
type Service interface {
	Login(ctx context.Context, req goToken.LoginRequest) (*goToken.AuthResult, error)
	Register(ctx context.Context, req goToken.RegisterRequest) (*goToken.AuthResult, error)
	Refresh(ctx context.Context, req goToken.RefreshRequest) (*goToken.AuthResult, error)
	Logout(ctx context.Context, userID string) error
	Validate(ctx context.Context, accessToken string) (*goToken.Principal, error)
}

// Options configures the router.
type Options struct {
	Logger *zap.Logger
	// Timeout bounds every request; zero disables it.
	Timeout time.Duration
	// BasePath mounts the routes under a prefix such as "/api".
	BasePath string
	// Health backs GET /healthz. Nil always reports healthy.
	Health func(context.Context) error
	// MaxBodyBytes caps request bodies. Defaults to 1 MiB.
	MaxBodyBytes int64
	// AdminRoles may call GET /auth/admin/me. Defaults to "Admin".
	AdminRoles []string
}

// NewRouter builds the chi router for the auth endpoints.
func NewRouter(svc Service, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if len(opts.AdminRoles) == 0 {
		opts.AdminRoles = []string{"Admin"}
	}

	root := chi.NewRouter()
	root.Use(
		middleware.Recover(opts.Logger),
		middleware.RequestID(),
		middleware.Logging(opts.Logger),
	)
	if opts.Timeout > 0 {
		root.Use(middleware.Timeout(opts.Timeout))
	}

	h := &Handlers{
		svc:      svc,
		logger:   opts.Logger.With(zap.String("component", "httpapi")),
		health:   opts.Health,
		maxBytes: opts.MaxBodyBytes,
	}

	if opts.BasePath != "" {
		sub := chi.NewRouter()
		registerRoutes(sub, h, opts.AdminRoles)
		root.Mount(opts.BasePath, sub)
		return root
	}

	registerRoutes(root, h, opts.AdminRoles)
	return root
}

func registerRoutes(r chi.Router, h *Handlers, adminRoles []string) {
	r.Get("/healthz", h.Health)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/register", h.Register)
		r.Post("/refresh", h.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Guard(h.svc))
			r.Post("/logout", h.Logout)
			r.Get("/me", h.Me)
			r.With(middleware.RequireRole(adminRoles...)).Get("/admin/me", h.Me)
		})
	})
}
