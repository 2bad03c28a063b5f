package model

import (
	"time"

	"github.com/google/uuid"
)

// Role is the closed set of identity roles. Role-specific data lives in the
// profile tables, keyed by user id.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDoctor, RolePatient:
		return true
	}
	return false
}

// User represents a system identity. The wallet address is assigned at
// creation and never changes; users are deactivated, never deleted.
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	FullName     string    `json:"full_name" db:"full_name"`
	Role         Role      `json:"role" db:"role"`
	Wallet       string    `json:"wallet" db:"wallet"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// RequestMeta carries the client attributes recorded with every
// authentication attempt.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// LoginRequest represents login parameters
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Token   string      `json:"token"`
	User    *User       `json:"user"`
	Profile interface{} `json:"profile,omitempty"`
}
