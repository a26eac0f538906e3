package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	goToken "github.com/MrEthical07/goToken"
)

// Validator verifies an access token. *goToken.Engine implements it.
type Validator interface {
	Validate(ctx context.Context, accessToken string) (*goToken.Principal, error)
}

type principalContextKey struct{}

// PrincipalFromContext returns the principal installed by [Guard].
func PrincipalFromContext(ctx context.Context) (*goToken.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(*goToken.Principal)
	return p, ok && p != nil
}

// WithPrincipal installs p the same way Guard does.
func WithPrincipal(ctx context.Context, p *goToken.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// Guard rejects requests without a valid bearer access token with 401 and
// passes the verified principal to next through the request context.
func Guard(v Validator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				writeFailure(w, http.StatusUnauthorized, goToken.MessageUnauthorized)
				return
			}

			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeFailure(w, http.StatusUnauthorized, goToken.MessageUnauthorized)
				return
			}

			p, err := v.Validate(r.Context(), token)
			if err != nil {
				writeFailure(w, http.StatusUnauthorized, goToken.MessageUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireRole allows the request through only when the principal from
// [Guard] carries one of roles (case-insensitive). It answers 401 when no
// principal is present and 403 when the role does not match.
func RequireRole(roles ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				writeFailure(w, http.StatusUnauthorized, goToken.MessageUnauthorized)
				return
			}
			for _, role := range roles {
				if strings.EqualFold(role, p.Role) {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeFailure(w, http.StatusForbidden, goToken.MessageForbidden)
		})
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

type failureBody struct {
	IsSuccess bool   `json:"isSuccess"`
	Message   string `json:"message"`
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(failureBody{Message: message})
}
