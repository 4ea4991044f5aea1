package domain

import (
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is the kind of account a user holds.
type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleTeacher Role = "TEACHER"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleTeacher
}

// Password length bounds. bcrypt ignores bytes past 72.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
)

// User represents an account. Every user has exactly one profile, a
// student or a teacher, whose ID is the user's ProfileID.
type User struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Role           Role      `json:"role"`
	ProfileID      uuid.UUID `json:"profile_id"`
	Password       string    `json:"-"` // plaintext, only set while creating or updating
	HashedPassword string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewUser creates a user with a fresh ID and a fresh profile ID. The caller
// hashes Password before storing it.
func NewUser(email, password, firstName, lastName string, role Role) (*User, error) {
	now := time.Now().UTC()
	u := &User{
		ID:        uuid.New(),
		Email:     NormalizeEmail(email),
		FirstName: strings.TrimSpace(firstName),
		LastName:  strings.TrimSpace(lastName),
		Role:      role,
		ProfileID: uuid.New(),
		Password:  password,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

// Validate checks if the User has valid data.
func (u *User) Validate() error {
	if u.ID == uuid.Nil {
		return NewValidationError("id", "cannot be empty", ErrInvalidID)
	}
	if u.Email == "" {
		return NewValidationError("email", "cannot be empty", nil)
	}
	if !ValidEmail(u.Email) {
		return NewValidationError("email", "must be a valid email address", nil)
	}
	if u.FirstName == "" {
		return NewValidationError("first_name", "cannot be empty", nil)
	}
	if u.LastName == "" {
		return NewValidationError("last_name", "cannot be empty", nil)
	}
	if !u.Role.Valid() {
		return NewValidationError("role", "must be STUDENT or TEACHER", nil)
	}
	if u.Password != "" {
		if len(u.Password) < MinPasswordLength {
			return NewValidationError("password", "must be at least 8 characters long", nil)
		}
		if len(u.Password) > MaxPasswordLength {
			return NewValidationError("password", "must be at most 72 characters long", nil)
		}
	} else if u.HashedPassword == "" {
		return NewValidationError("password", "cannot be empty", nil)
	}
	return nil
}

// FullName joins first and last names.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// IsTeacher reports whether the user has a teacher profile.
func (u *User) IsTeacher() bool { return u.Role == RoleTeacher }

// NormalizeEmail lowercases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether email is a bare RFC 5322 address.
func ValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndexByte(email, '@')
	return at > 0 && strings.Contains(email[at+1:], ".")
}
