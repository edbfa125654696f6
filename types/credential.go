package types

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// unusablePrefix marks a credential that can never verify a password.
const unusablePrefix = "!"

// Credential is the one-way hashed form of an account password.
// The zero value is unusable.
type Credential struct {
	hash string
}

// NewCredential hashes password with bcrypt at the given cost. An empty
// password produces an unusable credential.
func NewCredential(password string, cost int) (Credential, error) {
	if password == "" {
		return UnusableCredential(), nil
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return Credential{}, fmt.Errorf("hash password: %w", err)
	}
	return Credential{hash: string(hashed)}, nil
}

// UnusableCredential returns a credential that rejects every password.
func UnusableCredential() Credential {
	return Credential{hash: unusablePrefix + strings.ReplaceAll(uuid.NewString(), "-", "")}
}

// ParseCredential wraps an already-encoded hash, e.g. one read from storage.
func ParseCredential(encoded string) Credential {
	return Credential{hash: encoded}
}

// Usable reports whether the credential can ever verify a password.
func (c Credential) Usable() bool {
	return c.hash != "" && !strings.HasPrefix(c.hash, unusablePrefix)
}

// Verify reports whether password matches the credential.
func (c Credential) Verify(password string) bool {
	if !c.Usable() {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(c.hash), []byte(password)) == nil
}

// String returns the encoded hash.
func (c Credential) String() string {
	return c.hash
}

func (c Credential) Value() (driver.Value, error) {
	return c.hash, nil
}

func (c *Credential) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		c.hash = ""
	case string:
		c.hash = v
	case []byte:
		c.hash = string(v)
	default:
		return errors.New("credential: unsupported scan type")
	}
	return nil
}
