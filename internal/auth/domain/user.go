package domain

import "time"

// User is the credential-store record. Role flags are explicit booleans;
// there is no role hierarchy beyond them.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	IsActive     bool
	IsSuperuser  bool
	IsVerified   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserPatch carries the mutable fields of a user. Nil pointers mean
// "leave unchanged". ID and CreatedAt are never patchable.
type UserPatch struct {
	Email        *string
	PasswordHash *string
	FirstName    *string
	LastName     *string
	IsActive     *bool
	IsSuperuser  *bool
	IsVerified   *bool
}

// RefreshToken is the stored half of a refresh credential. Only the SHA-256
// hash of the raw token is persisted.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	Revoked   bool
}
