package authz

// Pseudo-principal subjects per RFC 3744 §5.5.1.
const (
	PseudoAuthenticated   = "authenticated"
	PseudoUnauthenticated = "unauthenticated"
	PseudoAll             = "all"
)

// ExpandSubjects builds the expanded subject set for a request: the
// principal plus its flat group memberships plus the authenticated/all
// pseudo-principals, or {unauthenticated, all} when principalID is empty
//.
func ExpandSubjects(principalID string, groupIDs []string) []string {
	if principalID == "" {
		return []string{PseudoUnauthenticated, PseudoAll}
	}
	subjects := make([]string, 0, len(groupIDs)+3)
	subjects = append(subjects, "principal:"+principalID)
	for _, g := range groupIDs {
		subjects = append(subjects, "group:"+g)
	}
	subjects = append(subjects, PseudoAuthenticated, PseudoAll)
	return subjects
}
