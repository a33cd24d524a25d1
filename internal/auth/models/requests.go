package models

import (
	"strings"

	"github.com/asaskevich/govalidator"

	dErrors "kycgate/pkg/domain-errors"
)

// bcrypt ignores input past 72 bytes, so longer passwords are refused
// instead of silently truncated.
const maxPasswordBytes = 72

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

func (r *RegisterRequest) Normalize() {
	r.Email = NormalizeEmail(r.Email)
	r.FullName = strings.TrimSpace(r.FullName)
}

// Validate normalizes the request and reports every problem at once.
func (r *RegisterRequest) Validate() error {
	r.Normalize()
	var problems []string
	switch {
	case r.Email == "":
		problems = append(problems, "Email is required")
	case !govalidator.IsEmail(r.Email):
		problems = append(problems, "Invalid email format")
	}
	switch {
	case r.Password == "":
		problems = append(problems, "Password is required")
	case len(r.Password) > maxPasswordBytes:
		problems = append(problems, "Password must be at most 72 bytes")
	}
	if len(problems) > 0 {
		return dErrors.Validation("invalid registration request", problems...)
	}
	return nil
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Validate() error {
	r.Email = NormalizeEmail(r.Email)
	if r.Email == "" || r.Password == "" {
		return dErrors.New(dErrors.CodeBadRequest, "email and password are required")
	}
	return nil
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	User        *User  `json:"user"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}
