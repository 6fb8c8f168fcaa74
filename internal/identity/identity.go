// Package identity defines the contract with the external identity provider.
// The task core never authenticates; it only consults the technician
// capability when validating assignees and team members.
package identity

import "github.com/fieldpilot/fieldpilot/internal/taskerr"

// Identity is an opaque staff identity as supplied by the provider.
type Identity struct {
	ID         string
	Name       string
	Technician bool
}

// DisplayName returns the human-readable name, falling back to the ID.
func (i Identity) DisplayName() string {
	if i.Name != "" {
		return i.Name
	}
	return i.ID
}

// Directory resolves identities. Implementations are supplied by the caller;
// the core ships only a static map for configuration and tests.
type Directory interface {
	Lookup(id string) (Identity, error)
}

// StaticDirectory is a fixed in-memory Directory.
type StaticDirectory map[string]Identity

// NewStaticDirectory builds a StaticDirectory from a list of identities.
func NewStaticDirectory(ids []Identity) StaticDirectory {
	d := make(StaticDirectory, len(ids))
	for _, id := range ids {
		d[id.ID] = id
	}
	return d
}

// Lookup returns the identity for id, or a NotFound error.
func (d StaticDirectory) Lookup(id string) (Identity, error) {
	ident, ok := d[id]
	if !ok {
		return Identity{}, taskerr.NotFound("identity %s not found", id)
	}
	return ident, nil
}

// Name is a convenience lookup that never fails: unknown or unresolvable
// identities render as their raw ID.
func Name(dir Directory, id string) string {
	if dir == nil || id == "" {
		return id
	}
	ident, err := dir.Lookup(id)
	if err != nil {
		return id
	}
	return ident.DisplayName()
}
