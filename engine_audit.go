package goToken

import (
	"context"
)

const (
	auditEventLoginSuccess       = "login_success"
	auditEventLoginFailure       = "login_failure"
	auditEventLoginRateLimited   = "login_rate_limited"
	auditEventRegisterSuccess    = "register_success"
	auditEventRegisterDuplicate  = "register_duplicate"
	auditEventRegisterFailure    = "register_failure"
	auditEventRefreshSuccess     = "refresh_success"
	auditEventRefreshInvalid     = "refresh_invalid"
	auditEventRefreshRateLimited = "refresh_rate_limited"
	auditEventLogout             = "logout"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		RequestID: requestIDFromContext(ctx),
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if err != nil {
		event.Error = KindOf(err).String()
	}

	e.audit.Emit(ctx, event)
}
