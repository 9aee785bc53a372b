package models

import (
	"fmt"
	"strings"
)

// User is an account that can follow event playlists or take over as host.
type User struct {
	base
	email string
	name  string
}

// NewUser creates a new [User].
func NewUser(sequence int, email, name string) *User {
	return &User{base: newBase(sequence), email: strings.ToLower(strings.TrimSpace(email)), name: name}
}

func (u *User) Email() string { return u.email }
func (u *User) Name() string { return u.name }

func (u *User) SetName(name string) { u.name = name }

// Principal returns the credential ref for this user.
func (u *User) Principal() PrincipalRef {
	return UserPrincipal(u.email)
}

// Validate checks required fields.
func (u *User) Validate() error {
	if u.email == "" {
		return fmt.Errorf("email is required")
	}
	if !strings.Contains(u.email, "@") {
		return fmt.Errorf("invalid email %q", u.email)
	}
	return nil
}
