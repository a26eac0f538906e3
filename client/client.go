package client

import (
	"context"
	"net/http"
	"time"

	goToken "github.com/MrEthical07/goToken"
	"go.uber.org/zap"
)

// Options configures a [Client].
type Options struct {
	// HTTPClient is shared by the API and the pipeline. When nil a client
	// with Timeout is created.
	HTTPClient *http.Client
	// Timeout applies only when HTTPClient is nil. Defaults to 15s.
	Timeout time.Duration
	Session SessionConfig
	Logger  *zap.Logger
}

// Client is the per-session entry point: sign in through it, then send
// authenticated requests with Do.
type Client struct {
	api      *API
	session  *Session
	pipeline *Pipeline
	logger   *zap.Logger
}

func New(baseURL string, opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.HTTPClient == nil {
		if opts.Timeout <= 0 {
			opts.Timeout = 15 * time.Second
		}
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Session.Logger == nil {
		opts.Session.Logger = opts.Logger
	}

	api := NewAPI(baseURL, opts.HTTPClient)
	session := NewSession(opts.Session)
	return &Client{
		api:      api,
		session:  session,
		pipeline: NewPipeline(opts.HTTPClient, session, api, opts.Logger),
		logger:   opts.Logger.With(zap.String("component", "client"), zap.String("session_id", session.ID())),
	}
}

func (c *Client) API() *API {
	return c.api
}

func (c *Client) Session() *Session {
	return c.session
}

func (c *Client) Pipeline() *Pipeline {
	return c.pipeline
}

// Login signs in and begins the session.
func (c *Client) Login(ctx context.Context, email, password string) (Principal, error) {
	res, err := c.api.Login(ctx, goToken.LoginRequest{Email: email, Password: password})
	if err != nil {
		return Anonymous, err
	}
	return c.begin(ctx, res)
}

// Register creates the account and begins the session.
func (c *Client) Register(ctx context.Context, req goToken.RegisterRequest) (Principal, error) {
	res, err := c.api.Register(ctx, req)
	if err != nil {
		return Anonymous, err
	}
	return c.begin(ctx, res)
}

// Logout revokes the refresh token server-side and ends the local session.
// The revoke call goes through the pipeline, so an expired access token is
// refreshed first. The local session ends even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	refresh, err := c.session.cache.RefreshToken(ctx)
	if err == nil && refresh != "" {
		if err = c.revoke(ctx); err != nil {
			c.logger.Warn("server logout failed", zap.Error(err))
		}
	}
	if endErr := c.session.state.EndSession(context.WithoutCancel(ctx)); endErr != nil {
		return endErr
	}
	return err
}

func (c *Client) revoke(ctx context.Context) error {
	req, err := c.api.request(ctx, "/auth/logout", nil)
	if err != nil {
		return err
	}
	resp, err := c.pipeline.Do(req)
	if err != nil {
		return err
	}
	var out goToken.StatusResponse
	return decodeEnvelope(ctx, resp, "/auth/logout", &out)
}

// Do sends req through the refresh-aware pipeline.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.pipeline.Do(req)
}

func (c *Client) Principal(ctx context.Context) (Principal, error) {
	return c.session.state.CurrentPrincipal(ctx)
}

// Subscribe is called with the new principal after every session change.
func (c *Client) Subscribe(fn func(Principal)) (unsubscribe func()) {
	return c.session.state.Subscribe(fn)
}

func (c *Client) begin(ctx context.Context, res *goToken.AuthResponse) (Principal, error) {
	if err := c.session.state.BeginSession(ctx, res.UserID, res.AccessToken, res.RefreshToken); err != nil {
		return Anonymous, newError(KindProtocol, http.StatusOK, "", err)
	}
	return c.session.state.CurrentPrincipal(ctx)
}
