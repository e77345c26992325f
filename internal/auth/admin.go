package auth

// Allowlist is the set of pseudonymous botUserIds permitted to call admin
// endpoints. Membership is static for the life of the process.
type Allowlist map[string]struct{}

// NewAllowlist builds an Allowlist from configured ids.
func NewAllowlist(ids []string) Allowlist {
	al := make(Allowlist, len(ids))
	for _, id := range ids {
		if id != "" {
			al[id] = struct{}{}
		}
	}
	return al
}

// IsAdminAuthorized reports whether the botUserId may perform admin
// operations. Unknown and empty ids are never authorized.
func (al Allowlist) IsAdminAuthorized(botUserID string) bool {
	if botUserID == "" {
		return false
	}
	_, ok := al[botUserID]
	return ok
}
