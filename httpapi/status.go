package httpapi

import (
	"net/http"

	goToken "github.com/MrEthical07/goToken"
)

// StatusOf maps an engine error to its HTTP status.
//
// Every refresh rejection and bad credential is a 401 so clients treat them
// alike: discard the session and sign in again.
func StatusOf(err error) int {
	switch goToken.KindOf(err) {
	case goToken.KindNone:
		return http.StatusOK
	case goToken.KindValidation:
		return http.StatusBadRequest
	case goToken.KindInvalidCredentials,
		goToken.KindUserNotFound,
		goToken.KindTokenNotFound,
		goToken.KindTokenMismatch,
		goToken.KindTokenExpired,
		goToken.KindUnauthorized:
		return http.StatusUnauthorized
	case goToken.KindForbidden:
		return http.StatusForbidden
	case goToken.KindConflict:
		return http.StatusConflict
	case goToken.KindRateLimited:
		return http.StatusTooManyRequests
	case goToken.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
