package model

import "strings"

// RoleLocalParts is the lexicon of generic mailbox names. An address whose
// local part is in this set reaches a function, not a person.
var RoleLocalParts = map[string]bool{
	"info":      true,
	"sales":     true,
	"office":    true,
	"contact":   true,
	"admin":     true,
	"support":   true,
	"hello":     true,
	"enquiries": true,
	"service":   true,
	"orders":    true,
	"jobs":      true,
	"hr":        true,
	"careers":   true,
	"noreply":   true,
}

// IsRoleLocalPart reports whether a local part names a role mailbox.
// Besides exact lexicon hits, "info*", "sales*" and "*support" count.
func IsRoleLocalPart(local string) bool {
	local = strings.ToLower(strings.TrimSpace(local))
	if local == "" {
		return false
	}
	if RoleLocalParts[local] {
		return true
	}
	return strings.HasPrefix(local, "info") ||
		strings.HasPrefix(local, "sales") ||
		strings.HasSuffix(local, "support")
}

// IsRoleEmail reports whether email is a role address.
func IsRoleEmail(email string) bool {
	if !strings.Contains(email, "@") {
		return false
	}
	return IsRoleLocalPart(LocalPart(email))
}
