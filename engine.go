package goToken

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/MrEthical07/goToken/internal/flows"
	"github.com/MrEthical07/goToken/internal/rate"
	"github.com/MrEthical07/goToken/password"
	"go.uber.org/zap"
)

// Engine runs the login, register, refresh and logout use cases. Each call is
// independent; the only shared state is the per-user refresh record.
//
// Engine is safe for concurrent use.
type Engine struct {
	config    Config
	issuer    *TokenIssuer
	users     UserProvider
	hasher    PasswordHasher
	limiter   *rate.Limiter
	audit     *auditDispatcher
	metrics   *Metrics
	logger    *zap.Logger
	now       func() time.Time
	dummyHash string

	flowDeps flows.Deps
}

// Login authenticates by username or email. Every credential failure is
// reported as ErrInvalidCredentials.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*AuthResult, error) {
	identifier := strings.TrimSpace(req.Email)
	if identifier == "" {
		return nil, invalidField("email", "Email is required")
	}
	if req.Password == "" {
		return nil, invalidField("password", "Password is required")
	}

	res := flows.RunLogin(ctx, identifier, req.Password, e.flowDeps.Login)
	if res.Failure != flows.FailureNone {
		err := e.mapFailure(res)
		switch res.Failure {
		case flows.FailureRateLimited:
			e.metricInc(MetricLoginRateLimited)
			e.emitAudit(ctx, auditEventLoginRateLimited, false, "", err, identifierMeta(identifier))
		default:
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, "", err, identifierMeta(identifier))
		}
		e.logFailure("login failed", res, err)
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, res.User.UserID, nil, nil)
	return e.result(res), nil
}

// Register validates the profile, rejects duplicate emails, creates the user
// and signs them in.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	if !e.config.Account.RegistrationEnabled {
		return nil, fmt.Errorf("%w: registration disabled", ErrForbidden)
	}
	in, err := e.validateRegistration(req)
	if err != nil {
		e.metricInc(MetricRegisterFailure)
		return nil, err
	}

	res := flows.RunRegister(ctx, in, e.flowDeps.Register)
	if res.Failure != flows.FailureNone {
		err := e.mapFailure(res)
		if res.Failure == flows.FailureConflict {
			e.metricInc(MetricRegisterDuplicate)
			e.emitAudit(ctx, auditEventRegisterDuplicate, false, "", err, identifierMeta(in.Email))
		} else {
			e.metricInc(MetricRegisterFailure)
			e.emitAudit(ctx, auditEventRegisterFailure, false, "", err, identifierMeta(in.Email))
		}
		e.logFailure("register failed", res, err)
		return nil, err
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, res.User.UserID, nil, nil)
	return e.result(res), nil
}

// Refresh rotates the refresh token for req.UserID. The four rejection
// reasons map to ErrUserNotFound, ErrRefreshTokenNotFound,
// ErrRefreshTokenMismatch and ErrRefreshTokenExpired. A mismatch leaves the
// stored token untouched.
func (e *Engine) Refresh(ctx context.Context, req RefreshRequest) (*AuthResult, error) {
	start := e.now()
	defer func() { e.metricObserve(MetricRefreshLatency, e.now().Sub(start)) }()

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, invalidField("userId", "User id is required")
	}
	if req.RefreshToken == "" {
		return nil, invalidField("refreshToken", "Refresh token is required")
	}

	res := flows.RunRefresh(ctx, userID, req.RefreshToken, e.flowDeps.Refresh)
	if res.Failure != flows.FailureNone {
		err := e.mapFailure(res)
		e.metricInc(MetricRefreshFailure)
		switch res.Failure {
		case flows.FailureRateLimited:
			e.metricInc(MetricRefreshRateLimited)
			e.emitAudit(ctx, auditEventRefreshRateLimited, false, userID, err, nil)
		case flows.FailureTokenNotFound:
			e.metricInc(MetricRefreshTokenNotFound)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, userID, err, nil)
		case flows.FailureTokenMismatch:
			e.metricInc(MetricRefreshTokenMismatch)
			if res.Err != nil {
				e.metricInc(MetricRefreshRaceLost)
			}
			e.emitAudit(ctx, auditEventRefreshInvalid, false, userID, err, nil)
		case flows.FailureTokenExpired:
			e.metricInc(MetricRefreshTokenExpired)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, userID, err, nil)
		default:
			e.emitAudit(ctx, auditEventRefreshInvalid, false, userID, err, nil)
		}
		e.logFailure("refresh failed", res, err)
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, userID, nil, nil)
	return e.result(res), nil
}

// Logout revokes the refresh token for userID. Logging out twice succeeds.
func (e *Engine) Logout(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return invalidField("userId", "User id is required")
	}
	if err := flows.RunLogout(ctx, userID, e.flowDeps.Logout); err != nil {
		e.logger.Warn("logout failed", zap.String("user_id", userID), zap.Error(err))
		return err
	}
	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, userID, nil, nil)
	return nil
}

// Validate verifies an access token's signature and expiry. Any failure is
// reported as ErrUnauthorized.
func (e *Engine) Validate(ctx context.Context, accessToken string) (*Principal, error) {
	start := e.now()
	defer func() { e.metricObserve(MetricValidateLatency, e.now().Sub(start)) }()

	if accessToken == "" {
		e.metricInc(MetricValidateFailure)
		return nil, ErrUnauthorized
	}
	p, err := e.issuer.ParseAccessToken(accessToken)
	if err != nil {
		e.metricInc(MetricValidateFailure)
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	e.metricInc(MetricValidateSuccess)
	return p, nil
}

// Issuer exposes the token issuer for callers that mint tokens outside the
// login flow.
func (e *Engine) Issuer() *TokenIssuer {
	return e.issuer
}

func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// Metrics returns the engine counters; nil-safe.
func (e *Engine) Metrics() *Metrics {
	if e == nil {
		return nil
	}
	return e.metrics
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	return e.Metrics().Snapshot()
}

// AuditDropped reports events discarded because the audit buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// Close flushes pending audit events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

func (e *Engine) validateRegistration(req RegisterRequest) (flows.NewUser, error) {
	in := flows.NewUser{
		Username:     strings.TrimSpace(req.Username),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		FullName:     strings.TrimSpace(req.FullName),
		EmployeeID:   strings.TrimSpace(req.EmployeeID),
		Role:         e.config.Account.DefaultRole,
		RoleID:       e.config.Account.DefaultRoleID,
		PasswordHash: req.Password,
	}
	switch {
	case in.Username == "":
		return in, invalidField("username", "Username is required")
	case in.Email == "":
		return in, invalidField("email", "Email is required")
	case !validEmail(in.Email):
		return in, invalidField("email", "Email is not valid")
	case in.FullName == "":
		return in, invalidField("fullName", "Full name is required")
	case req.Password == "":
		return in, invalidField("password", "Password is required")
	case len([]rune(req.Password)) < e.config.Password.MinLength:
		return in, invalidField("password", fmt.Sprintf("Password must be at least %d characters", e.config.Password.MinLength))
	case len(req.Password) > e.maxPasswordBytes():
		return in, invalidField("password", fmt.Sprintf("Password must be at most %d bytes", e.maxPasswordBytes()))
	}
	return in, nil
}

// maxPasswordBytes mirrors the cap the hasher applies.
func (e *Engine) maxPasswordBytes() int {
	if n := e.config.Password.MaxPasswordBytes; n > 0 {
		return n
	}
	return password.DefaultMaxPasswordBytes
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	at := strings.LastIndexByte(s, '@')
	return at > 0 && strings.Contains(s[at+1:], ".")
}

func (e *Engine) result(res flows.Result) *AuthResult {
	return newAuthResult(fromFlowUser(res.User), res.Tokens.AccessToken, res.Tokens.RefreshToken, res.Tokens.ExpiresAt)
}

func (e *Engine) mapFailure(res flows.Result) error {
	switch res.Failure {
	case flows.FailureRateLimited:
		return ErrRateLimited
	case flows.FailureInvalidCredentials:
		return ErrInvalidCredentials
	case flows.FailureConflict:
		return ErrConflict
	case flows.FailureUserNotFound:
		return ErrUserNotFound
	case flows.FailureTokenNotFound:
		return ErrRefreshTokenNotFound
	case flows.FailureTokenMismatch:
		return ErrRefreshTokenMismatch
	case flows.FailureTokenExpired:
		return ErrRefreshTokenExpired
	case flows.FailureBackend:
		if errors.Is(res.Err, ErrUnavailable) {
			return res.Err
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, res.Err)
	default:
		return fmt.Errorf("token issuance failed: %w", res.Err)
	}
}

func (e *Engine) logFailure(msg string, res flows.Result, err error) {
	switch res.Failure {
	case flows.FailureBackend, flows.FailureIssue:
		e.logger.Error(msg, zap.String("kind", KindOf(err).String()), zap.Error(err))
	default:
		e.logger.Debug(msg, zap.String("kind", KindOf(err).String()))
	}
}

func (e *Engine) metricInc(id MetricID) {
	if e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricObserve(id MetricID, d time.Duration) {
	if e.metrics == nil {
		return
	}
	e.metrics.Observe(id, d)
}

func (e *Engine) warn(msg string, kv ...any) {
	e.logger.Sugar().Warnw(msg, kv...)
}

func (e *Engine) initFlowDeps() {
	issue := flows.IssueDeps{
		IssueAccess: func(u flows.UserRecord) (string, time.Time, error) {
			rec := fromFlowUser(u)
			return e.issuer.IssueAccessToken(&rec)
		},
		NewRefreshToken: e.issuer.IssueRefreshToken,
		PersistRefresh:  e.issuer.PersistRefreshToken,
	}

	login := flows.LoginDeps{
		ClientIPFromContext: clientIPFromContext,
		GetUserByIdentifier: func(ctx context.Context, id string) (flows.UserRecord, error) {
			u, err := e.users.GetUserByIdentifier(ctx, id)
			return toFlowUser(u), err
		},
		UpdatePasswordHash: e.users.UpdatePasswordHash,
		VerifyPassword:     e.hasher.Verify,
		HashPassword:       e.hasher.Hash,
		OnPasswordUpgraded: func(string) { e.metricInc(MetricPasswordUpgraded) },
		DummyHash:          e.dummyHash,
		Issue:              issue,
		Warn:               e.warn,
		UserNotFound:       ErrUserNotFound,
		RateLimited:        rate.ErrRateLimited,
	}
	if up, ok := e.hasher.(PasswordUpgrader); ok && e.config.Password.UpgradeOnLogin {
		login.PasswordNeedsUpgrade = up.NeedsUpgrade
	}
	if e.limiter != nil && e.config.Security.EnableLoginThrottle {
		login.CheckLoginRate = e.limiter.CheckLogin
		login.IncrementLoginRate = e.limiter.IncrementLogin
		login.ResetLoginRate = e.limiter.ResetLogin
	}

	refresh := flows.RefreshDeps{
		Now: e.now,
		GetUserByID: func(ctx context.Context, id string) (flows.UserRecord, error) {
			u, err := e.users.GetUserByID(ctx, id)
			return toFlowUser(u), err
		},
		GetRecord:       e.issuer.RefreshRecord,
		IssueAccess:     issue.IssueAccess,
		NewRefreshToken: issue.NewRefreshToken,
		Rotate: func(ctx context.Context, userID string, expected [32]byte, next string) error {
			if e.config.Session.CompareAndSwap {
				return e.issuer.RotateRefreshToken(ctx, userID, expected, next)
			}
			return e.issuer.PersistRefreshToken(ctx, userID, next)
		},
		UserNotFound:  ErrUserNotFound,
		RateLimited:   rate.ErrRateLimited,
		TokenNotFound: ErrRefreshTokenNotFound,
		TokenMismatch: ErrRefreshTokenMismatch,
		TokenExpired:  ErrRefreshTokenExpired,
	}
	if e.limiter != nil && e.config.Security.EnableRefreshThrottle {
		refresh.CheckRefreshRate = e.limiter.CheckRefresh
	}

	e.flowDeps = flows.Deps{
		Login: login,
		Register: flows.RegisterDeps{
			EmailExists:  e.users.EmailExists,
			HashPassword: e.hasher.Hash,
			CreateUser: func(ctx context.Context, in flows.NewUser) (flows.UserRecord, error) {
				u, err := e.users.CreateUser(ctx, CreateUserInput(in))
				return toFlowUser(u), err
			},
			Issue:    issue,
			Conflict: ErrConflict,
		},
		Refresh: refresh,
		Logout: flows.LogoutDeps{
			Revoke: e.issuer.RevokeRefreshToken,
		},
	}
}

func toFlowUser(u UserRecord) flows.UserRecord {
	return flows.UserRecord{
		UserID:       u.UserID,
		Username:     u.Username,
		Email:        u.Email,
		FullName:     u.FullName,
		EmployeeID:   u.EmployeeID,
		Role:         u.Role,
		RoleID:       u.RoleID,
		PasswordHash: u.PasswordHash,
		Active:       u.Active,
	}
}

func fromFlowUser(u flows.UserRecord) UserRecord {
	return UserRecord{
		UserID:       u.UserID,
		Username:     u.Username,
		Email:        u.Email,
		FullName:     u.FullName,
		EmployeeID:   u.EmployeeID,
		Role:         u.Role,
		RoleID:       u.RoleID,
		PasswordHash: u.PasswordHash,
		Active:       u.Active,
	}
}

func identifierMeta(identifier string) func() map[string]string {
	return func() map[string]string {
		return map[string]string{"identifier": identifier}
	}
}
