package types

import (
	"encoding/json"
	"sort"
	"strings"
)

// Permissions is a set of permission codenames such as "accounts.view_account".
type Permissions map[string]struct{}

// NewPermissions builds a set from the given codenames, skipping blanks.
func NewPermissions(codenames ...string) Permissions {
	p := make(Permissions, len(codenames))
	for _, c := range codenames {
		p.Grant(c)
	}
	return p
}

// Grant adds the codename to the set. It reports whether the set changed.
func (p Permissions) Grant(codename string) bool {
	codename = strings.TrimSpace(codename)
	if codename == "" || p == nil {
		return false
	}
	if _, ok := p[codename]; ok {
		return false
	}
	p[codename] = struct{}{}
	return true
}

// Revoke removes the codename from the set. It reports whether the set changed.
func (p Permissions) Revoke(codename string) bool {
	if _, ok := p[codename]; !ok {
		return false
	}
	delete(p, codename)
	return true
}

func (p Permissions) Has(codename string) bool {
	_, ok := p[codename]
	return ok
}

// List returns the codenames in sorted order.
func (p Permissions) List() []string {
	out := make([]string, 0, len(p))
	for c := range p {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func (p Permissions) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.List())
}

func (p *Permissions) UnmarshalJSON(data []byte) error {
	var codenames []string
	if err := json.Unmarshal(data, &codenames); err != nil {
		return err
	}
	*p = NewPermissions(codenames...)
	return nil
}
