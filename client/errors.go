package client

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies client failures. Only KindUnauthorized on the first
// attempt leads the pipeline into a refresh.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnauthorized
	KindForbidden
	KindServer
	KindNetwork
	KindTimeout
	KindCancelled
	KindProtocol
	KindRejected
	KindSessionExpired
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindServer:
		return "server"
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindCancelled:
		return "cancelled"
	case KindProtocol:
		return "protocol"
	case KindRejected:
		return "rejected"
	case KindSessionExpired:
		return "session_expired"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is; every *Error matches the sentinel of its Kind.
var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrServer         = errors.New("server error")
	ErrNetwork        = errors.New("network error")
	ErrTimeout        = errors.New("request timed out")
	ErrCancelled      = errors.New("request cancelled")
	ErrProtocol       = errors.New("unexpected response")
	ErrRejected       = errors.New("request rejected")
	ErrSessionExpired = errors.New("session expired")
)

var kindSentinels = map[Kind]error{
	KindUnauthorized:   ErrUnauthorized,
	KindForbidden:      ErrForbidden,
	KindServer:         ErrServer,
	KindNetwork:        ErrNetwork,
	KindTimeout:        ErrTimeout,
	KindCancelled:      ErrCancelled,
	KindProtocol:       ErrProtocol,
	KindRejected:       ErrRejected,
	KindSessionExpired: ErrSessionExpired,
}

// User-facing messages for failures that do not come with a server message.
const (
	MessageSessionExpired = "Your session has expired. Please log in again."
	MessageForbidden      = "You don't have permission to perform this action."
	MessageServer         = "Something went wrong on our side. Please try again."
	MessageNetwork        = "Unable to reach the server. Check your connection."
	MessageTimeout        = "The request timed out. Please try again."
)

// Error is the typed failure returned by the API and the pipeline.
type Error struct {
	Kind       Kind
	StatusCode int
	// Message is safe to show to end users.
	Message string
	// Body holds the start of the response body for status failures. The
	// response itself is already closed.
	Body []byte
	Err  error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	s, ok := kindSentinels[e.Kind]
	return ok && s == target
}

// KindOf reports the Kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func newError(kind Kind, status int, message string, err error) *Error {
	return &Error{Kind: kind, StatusCode: status, Message: message, Err: err}
}

// transportError classifies a failed http.Client.Do.
func transportError(ctx context.Context, err error) *Error {
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return newError(KindCancelled, 0, "", err)
	case errors.Is(err, context.DeadlineExceeded):
		return newError(KindTimeout, 0, MessageTimeout, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return newError(KindTimeout, 0, MessageTimeout, err)
	}
	return newError(KindNetwork, 0, MessageNetwork, err)
}
