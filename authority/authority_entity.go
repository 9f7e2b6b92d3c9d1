package authority

import (
	"sort"
	"strings"
)

// Wildcard is reported instead of a codename list for principals holding every permission.
const Wildcard = "*"

// Permissions is a set of permission codenames.
type Permissions []string

func (c Permissions) Has(codename string) bool {
	for _, v := range c {
		if v == Wildcard || strings.EqualFold(v, codename) {
			return true
		}
	}
	return false
}

func (c Permissions) HasPrefix(prefix string) bool {
	for _, v := range c {
		if v == Wildcard || strings.HasPrefix(strings.ToLower(v), strings.ToLower(prefix)) {
			return true
		}
	}
	return false
}

// Normalize returns the distinct codenames in ascending order, never nil.
func (c Permissions) Normalize() Permissions {
	seen := map[string]bool{}
	result := Permissions{}
	for _, v := range c {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		result = append(result, v)
	}
	sort.Strings(result)
	return result
}
