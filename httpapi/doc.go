// Package httpapi exposes a goToken engine over HTTP.
//
//	POST /auth/login     {email,password}
//	POST /auth/register  {username,email,password,fullName,employeeId}
//	POST /auth/refresh   {userId,refreshToken}
//	POST /auth/logout    bearer required
//	GET  /auth/me        bearer required
//	GET  /healthz
//
// Login, register and refresh answer with [goToken.AuthResponse]; logout
// with [goToken.StatusResponse]. Failures use the same envelopes with
// isSuccess=false and the status from [StatusOf].
package httpapi
