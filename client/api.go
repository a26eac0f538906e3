package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	goToken "github.com/MrEthical07/goToken"
)

// maxEnvelopeBytes caps how much of a response body is decoded.
const maxEnvelopeBytes = 1 << 20

// API calls the goToken HTTP endpoints. It holds no session state.
type API struct {
	baseURL string
	http    *http.Client
}

// NewAPI targets baseURL (e.g. "https://auth.example.com" or
// "http://localhost:8080/api").
func NewAPI(baseURL string, httpClient *http.Client) *API {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &API{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (a *API) Login(ctx context.Context, req goToken.LoginRequest) (*goToken.AuthResponse, error) {
	var out goToken.AuthResponse
	if err := a.post(ctx, "/auth/login", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) Register(ctx context.Context, req goToken.RegisterRequest) (*goToken.AuthResponse, error) {
	var out goToken.AuthResponse
	if err := a.post(ctx, "/auth/register", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Refresh exchanges the refresh token for a new pair. A rejected refresh
// returns a KindRejected *Error carrying the server's message.
func (a *API) Refresh(ctx context.Context, req goToken.RefreshRequest) (*goToken.AuthResponse, error) {
	var out goToken.AuthResponse
	if err := a.post(ctx, "/auth/refresh", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) Logout(ctx context.Context, accessToken string) (*goToken.StatusResponse, error) {
	var out goToken.StatusResponse
	if err := a.post(ctx, "/auth/logout", accessToken, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// envelope is the part every response shares.
type envelope struct {
	IsSuccess *bool  `json:"isSuccess"`
	Message   string `json:"message"`
}

func (a *API) post(ctx context.Context, path, bearer string, in, out any) error {
	req, err := a.request(ctx, path, in)
	if err != nil {
		return err
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return transportError(ctx, err)
	}
	return decodeEnvelope(ctx, resp, path, out)
}

// request builds a POST to path with in as the JSON body.
func (a *API) request(ctx context.Context, path string, in any) (*http.Request, error) {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", path, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// decodeEnvelope reads and closes resp, filling out on success.
func decodeEnvelope(ctx context.Context, resp *http.Response, path string, out any) error {
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxEnvelopeBytes))
	if err != nil {
		return transportError(ctx, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.IsSuccess == nil {
		return statusError(resp.StatusCode, newError(KindProtocol, resp.StatusCode, "", fmt.Errorf("%s: undecodable response body", path)))
	}
	if !*env.IsSuccess {
		return newError(KindRejected, resp.StatusCode, env.Message, nil)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return newError(KindProtocol, resp.StatusCode, "", err)
	}
	return nil
}

// statusError prefers the HTTP status over a decoding failure for 403 and
// 5xx responses that do not carry an envelope.
func statusError(status int, fallback *Error) *Error {
	switch {
	case status == http.StatusForbidden:
		return newError(KindForbidden, status, MessageForbidden, nil)
	case status >= http.StatusInternalServerError:
		return newError(KindServer, status, MessageServer, nil)
	default:
		return fallback
	}
}
