package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod names one of the supported HMAC algorithms.
type SigningMethod string

const (
	// MethodHS256 signs with HMAC-SHA256 (default).
	MethodHS256 SigningMethod = "hs256"
	// MethodHS384 signs with HMAC-SHA384.
	MethodHS384 SigningMethod = "hs384"
	// MethodHS512 signs with HMAC-SHA512.
	MethodHS512 SigningMethod = "hs512"
)

const minKeyBytes = 32

var (
	// ErrInvalidConfig is returned by [NewManager] for unusable settings.
	ErrInvalidConfig = errors.New("invalid jwt configuration")
	// ErrNilSubject is returned when an access token is requested for no user.
	ErrNilSubject = errors.New("nil token subject")
	// ErrMalformedToken is returned when a token cannot be decoded at all.
	ErrMalformedToken = errors.New("malformed access token")
)

// Config holds issuance and verification settings for access tokens.
type Config struct {
	AccessTTL     time.Duration
	SigningMethod SigningMethod
	SigningKey    []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	Now           func() time.Time
}

// Manager signs and verifies access tokens.
//
// Manager is immutable after construction and safe for concurrent use.
type Manager struct {
	config Config
	method jwt.SigningMethod
}

// AccessClaims is the claim set carried by every access token.
//
// Subject (sub) and NameID carry the same user id; both are kept so consumers
// that read either name keep working.
type AccessClaims struct {
	NameID     string `json:"nameid"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	FullName   string `json:"fullName"`
	EmployeeID string `json:"employeeId,omitempty"`
	RoleID     string `json:"roleId"`
	jwt.RegisteredClaims
}

// Subject is the user profile an access token is minted for.
type Subject struct {
	UserID     string
	Username   string
	Email      string
	Role       string
	RoleID     string
	FullName   string
	EmployeeID string
}

// NewManager validates cfg and returns a ready Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 {
		return nil, fmt.Errorf("%w: access ttl must be positive", ErrInvalidConfig)
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, fmt.Errorf("%w: leeway must be within [0, 2m]", ErrInvalidConfig)
	}
	if cfg.SigningMethod == "" {
		cfg.SigningMethod = MethodHS256
	}
	method, err := methodFor(cfg.SigningMethod)
	if err != nil {
		return nil, err
	}
	if len(cfg.SigningKey) < minKeyBytes {
		return nil, fmt.Errorf("%w: signing key must be at least %d bytes", ErrInvalidConfig, minKeyBytes)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	key := make([]byte, len(cfg.SigningKey))
	copy(key, cfg.SigningKey)
	cfg.SigningKey = key

	return &Manager{config: cfg, method: method}, nil
}

// AccessTTL reports the configured access token lifetime.
func (m *Manager) AccessTTL() time.Duration {
	return m.config.AccessTTL
}

// CreateAccess mints a signed access token for s. The returned time is the
// token's exp claim.
func (m *Manager) CreateAccess(s *Subject) (string, time.Time, error) {
	if s == nil {
		return "", time.Time{}, ErrNilSubject
	}

	now := m.config.Now()
	claims := AccessClaims{
		NameID:     s.UserID,
		Username:   s.Username,
		Email:      s.Email,
		Role:       s.Role,
		FullName:   s.FullName,
		EmployeeID: s.EmployeeID,
		RoleID:     s.RoleID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.UserID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.AccessTTL)),
			Issuer:    m.config.Issuer,
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	signed, err := jwt.NewWithClaims(m.method, claims).SignedString(m.config.SigningKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, claims.ExpiresAt.Time, nil
}

// ParseAccess verifies signature, algorithm, expiry, issuer and audience and
// returns the claims of a valid token.
func (m *Manager) ParseAccess(tokenStr string) (*AccessClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.config.Now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &AccessClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != m.method.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.config.SigningKey, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.Subject == "" {
		return nil, jwt.ErrTokenInvalidSubject
	}
	return claims, nil
}

// DecodeUnverified extracts claims without checking the signature or any
// time-based claim. Callers own the trust decision; it exists for clients
// that received the token directly from the issuer over a secured channel.
func DecodeUnverified(tokenStr string) (*AccessClaims, error) {
	if strings.Count(tokenStr, ".") != 2 {
		return nil, ErrMalformedToken
	}
	claims := &AccessClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing exp", ErrMalformedToken)
	}
	return claims, nil
}

// UserID returns the subject, falling back to nameid.
func (c *AccessClaims) UserID() string {
	if c.Subject != "" {
		return c.Subject
	}
	return c.NameID
}

func methodFor(name SigningMethod) (jwt.SigningMethod, error) {
	switch SigningMethod(strings.ToLower(string(name))) {
	case MethodHS256:
		return jwt.SigningMethodHS256, nil
	case MethodHS384:
		return jwt.SigningMethodHS384, nil
	case MethodHS512:
		return jwt.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("%w: unsupported signing method %q", ErrInvalidConfig, name)
	}
}
