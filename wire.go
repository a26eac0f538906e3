package goToken

import "time"

// AuthResponse is the JSON envelope returned by the login, register and
// refresh endpoints. Failures keep the shape with IsSuccess false and only
// Message set.
type AuthResponse struct {
	IsSuccess    bool       `json:"isSuccess"`
	Message      string     `json:"message"`
	AccessToken  string     `json:"accessToken,omitempty"`
	RefreshToken string     `json:"refreshToken,omitempty"`
	Expiration   *time.Time `json:"expiration,omitempty"`
	UserID       string     `json:"userId,omitempty"`
	Username     string     `json:"username,omitempty"`
	FullName     string     `json:"fullName,omitempty"`
	Email        string     `json:"email,omitempty"`
	EmployeeID   string     `json:"employeeId,omitempty"`
	Role         string     `json:"role,omitempty"`
}

// StatusResponse is the envelope for logout and for failures that carry no
// auth payload.
type StatusResponse struct {
	IsSuccess bool   `json:"isSuccess"`
	Message   string `json:"message"`
}

// PrincipalResponse is returned by GET /auth/me.
type PrincipalResponse struct {
	IsSuccess  bool      `json:"isSuccess"`
	Message    string    `json:"message"`
	UserID     string    `json:"userId"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	FullName   string    `json:"fullName"`
	EmployeeID string    `json:"employeeId,omitempty"`
	Role       string    `json:"role"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Envelope renders r as a successful AuthResponse.
func (r *AuthResult) Envelope(message string) AuthResponse {
	exp := r.Expiration.UTC()
	return AuthResponse{
		IsSuccess:    true,
		Message:      message,
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		Expiration:   &exp,
		UserID:       r.UserID,
		Username:     r.Username,
		FullName:     r.FullName,
		Email:        r.Email,
		EmployeeID:   r.EmployeeID,
		Role:         r.Role,
	}
}
