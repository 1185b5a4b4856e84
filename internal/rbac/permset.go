package rbac

import "math/bits"

// PermissionSet is a bit-set over the permission catalog.
type PermissionSet uint64

// NewPermissionSet builds a set from tokens. Tokens outside the catalog are dropped.
func NewPermissionSet(perms ...Permission) PermissionSet {
	var s PermissionSet
	for _, p := range perms {
		if i, ok := catalogIndex[p]; ok {
			s |= 1 << i
		}
	}
	return s
}

// requirementMask returns the mask of known tokens and whether every token was known.
func requirementMask(perms []Permission) (PermissionSet, bool) {
	var s PermissionSet
	allKnown := true
	for _, p := range perms {
		i, ok := catalogIndex[p]
		if !ok {
			allKnown = false
			continue
		}
		s |= 1 << i
	}
	return s, allKnown
}

// Has reports whether p is in the set.
func (s PermissionSet) Has(p Permission) bool {
	i, ok := catalogIndex[p]
	return ok && s&(1<<i) != 0
}

// Union returns s ∪ o.
func (s PermissionSet) Union(o PermissionSet) PermissionSet {
	return s | o
}

// Contains reports whether o ⊆ s.
func (s PermissionSet) Contains(o PermissionSet) bool {
	return s&o == o
}

// Len returns the number of permissions in the set.
func (s PermissionSet) Len() int {
	return bits.OnesCount64(uint64(s))
}

// Permissions lists the members in catalog order.
func (s PermissionSet) Permissions() []Permission {
	out := make([]Permission, 0, s.Len())
	for i, p := range catalog {
		if s&(1<<uint(i)) != 0 {
			out = append(out, p)
		}
	}
	return out
}
