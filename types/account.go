package types

import "time"

// Account represents a user account in the system.
// The email address is the login identifier.
type Account struct {
	// ID is the unique identifier of the account.
	ID int `json:"id" db:"id"`

	// Email is the normalized, unique email address used to log in.
	Email string `json:"email" db:"email"`

	// Name is the user's display or full name.
	Name string `json:"name" db:"name"`

	// Credential stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	Credential Credential `json:"-" db:"password_hash"`

	// IsActive marks whether the account may authenticate.
	IsActive bool `json:"is_active" db:"is_active"`

	// IsSuperuser grants every permission without assigning them explicitly.
	IsSuperuser bool `json:"is_superuser" db:"is_superuser"`

	// IsStaff allows access to the account administration routes.
	IsStaff bool `json:"is_staff" db:"is_staff"`

	// Permissions holds the permission codenames granted to the account.
	Permissions Permissions `json:"permissions" db:"-"`

	// LastLogin is the time of the most recent successful authentication.
	LastLogin *time.Time `json:"last_login,omitempty" db:"last_login"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// FullName returns the name used in full listings.
func (a Account) FullName() string {
	return a.Name
}

// ShortName returns the name used in compact displays.
func (a Account) ShortName() string {
	return a.Name
}

func (a Account) String() string {
	return a.Email
}

// HasPerm reports whether the account holds the permission codename.
// Inactive accounts hold no permissions; active superusers hold all of them.
func (a Account) HasPerm(codename string) bool {
	if !a.IsActive {
		return false
	}
	if a.IsSuperuser {
		return true
	}
	return a.Permissions.Has(codename)
}
