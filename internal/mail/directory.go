package mail

import "strings"

// Directory resolves identity references to email addresses.
type Directory interface {
	Lookup(identity string) (string, bool)
}

// StaticDirectory treats identities containing "@" as addresses and
// expands bare user names with Domain when set.
type StaticDirectory struct {
	Domain    string
	Overrides map[string]string
}

// Lookup implements Directory.
func (d StaticDirectory) Lookup(identity string) (string, bool) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return "", false
	}
	if addr, ok := d.Overrides[identity]; ok {
		return addr, true
	}
	if strings.Contains(identity, "@") {
		return strings.ToLower(identity), true
	}
	if d.Domain == "" {
		return "", false
	}
	return strings.ToLower(identity) + "@" + strings.TrimPrefix(d.Domain, "@"), true
}
