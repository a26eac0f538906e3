package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	goToken "github.com/MrEthical07/goToken"
	"go.uber.org/zap"
)

// Refresher exchanges a refresh token for a new pair. *API implements it.
type Refresher interface {
	Refresh(ctx context.Context, req goToken.RefreshRequest) (*goToken.AuthResponse, error)
}

// Pipeline sends requests on behalf of a [Session]: it attaches the bearer
// token and, on a 401, refreshes once under the session's lock and retries
// the request once.
type Pipeline struct {
	http      *http.Client
	session   *Session
	refresher Refresher
	logger    *zap.Logger

	refreshes atomic.Uint64
}

func NewPipeline(httpClient *http.Client, session *Session, refresher Refresher, logger *zap.Logger) *Pipeline {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		http:      httpClient,
		session:   session,
		refresher: refresher,
		logger:    logger.With(zap.String("component", "client_pipeline"), zap.String("session_id", session.ID())),
	}
}

// Refreshes reports how many refresh calls this pipeline has made.
func (p *Pipeline) Refreshes() uint64 {
	return p.refreshes.Load()
}

// Do sends req and returns the response the caller should see.
//
// A non-401 response comes back as is with a nil error, except 403 and 5xx:
// those return a nil response and a KindForbidden or KindServer *Error whose
// Body holds the start of the closed response body. A 401 is followed by at
// most one refresh and one retry; a 401 on the retry is KindUnauthorized. A
// failed refresh ends the session and yields ErrSessionExpired.
// Transport failures are KindNetwork, KindTimeout or KindCancelled and
// never refresh.
func (p *Pipeline) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if err := ctx.Err(); err != nil {
		return nil, transportError(ctx, err)
	}
	if err := bufferBody(req); err != nil {
		return nil, err
	}

	sent, err := p.session.cache.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := p.send(req, sent)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return classify(resp)
	}
	drain(resp)

	token, err := p.refresh(ctx, sent)
	if err != nil {
		return nil, err
	}

	retry, err := p.send(req, token)
	if err != nil {
		return nil, err
	}
	if retry.StatusCode == http.StatusUnauthorized {
		return nil, statusFailure(retry, KindUnauthorized, goToken.MessageUnauthorized)
	}
	return classify(retry)
}

// refresh returns the access token to retry with. The first caller holding
// the lock calls the Refresher; callers that waited find a different token
// installed and reuse it.
func (p *Pipeline) refresh(ctx context.Context, sent string) (string, error) {
	if err := p.session.lock(ctx); err != nil {
		return "", transportError(ctx, err)
	}
	defer p.session.unlock()

	if err := ctx.Err(); err != nil {
		return "", transportError(ctx, err)
	}

	current, err := p.session.cache.AccessToken(ctx)
	if err != nil {
		return "", err
	}
	if current != sent {
		if current == "" {
			return "", newError(KindSessionExpired, http.StatusUnauthorized, MessageSessionExpired, nil)
		}
		return current, nil
	}

	userID, err := p.session.cache.UserID(ctx)
	if err != nil {
		return "", err
	}
	refreshToken, err := p.session.cache.RefreshToken(ctx)
	if err != nil {
		return "", err
	}
	if userID == "" || refreshToken == "" {
		return "", p.expire(ctx, errors.New("no refresh token cached"))
	}

	p.refreshes.Add(1)
	res, err := p.refresher.Refresh(ctx, goToken.RefreshRequest{UserID: userID, RefreshToken: refreshToken})
	if err != nil {
		if KindOf(err) == KindCancelled || errors.Is(ctx.Err(), context.Canceled) {
			return "", newError(KindCancelled, 0, "", err)
		}
		return "", p.expire(ctx, err)
	}
	if err := p.session.state.UpdateTokens(ctx, res.AccessToken, res.RefreshToken); err != nil {
		return "", p.expire(ctx, err)
	}
	p.logger.Debug("access token refreshed")
	return res.AccessToken, nil
}

// expire ends the session after a failed refresh.
func (p *Pipeline) expire(ctx context.Context, cause error) error {
	p.logger.Info("refresh failed; ending session", zap.Error(cause))
	if err := p.session.state.EndSession(context.WithoutCancel(ctx)); err != nil {
		p.logger.Warn("clear session failed", zap.Error(err))
	}
	return newError(KindSessionExpired, http.StatusUnauthorized, MessageSessionExpired, cause)
}

func (p *Pipeline) send(orig *http.Request, token string) (*http.Response, error) {
	req := orig.Clone(orig.Context())
	if orig.GetBody != nil {
		body, err := orig.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewind request body: %w", err)
		}
		req.Body = body
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	} else {
		req.Header.Del("Authorization")
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, transportError(orig.Context(), err)
	}
	return resp, nil
}

func classify(resp *http.Response) (*http.Response, error) {
	switch {
	case resp.StatusCode == http.StatusForbidden:
		return nil, statusFailure(resp, KindForbidden, MessageForbidden)
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, statusFailure(resp, KindServer, MessageServer)
	default:
		return resp, nil
	}
}

// statusFailure closes resp and keeps the start of its body on the error.
func statusFailure(resp *http.Response, kind Kind, message string) *Error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	drain(resp)
	e := newError(kind, resp.StatusCode, message, nil)
	e.Body = body
	return e
}

// bufferBody makes the body replayable for the retry.
func bufferBody(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return nil
	}
	raw, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return fmt.Errorf("buffer request body: %w", err)
	}
	req.Body = io.NopCloser(bytes.NewReader(raw))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(raw)), nil
	}
	return nil
}

// maxErrorBodyBytes caps the body kept on a status failure.
const maxErrorBodyBytes = 4 << 10

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
