package channels

// AccessSnapshot captures everything about a user that the access
// decision depends on. Loading it is the caller's job, keeping the
// evaluation itself pure.
type AccessSnapshot struct {
	IsMember      bool
	ActiveRoleIDs map[int64]struct{}
}

// Evaluate decides whether a user with the given snapshot may view or
// post in a channel. Public channels admit everyone, private channels
// admit members, restricted channels admit holders of at least one
// permitted role. Unknown kinds fail closed.
func Evaluate(kind Kind, permittedRoleIDs []int64, snap AccessSnapshot) bool {
	switch kind {
	case KindPublic:
		return true
	case KindPrivate:
		return snap.IsMember
	case KindRestricted:
		for _, id := range permittedRoleIDs {
			if _, ok := snap.ActiveRoleIDs[id]; ok {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// SnapshotRoles builds the active-role lookup set for a snapshot.
func SnapshotRoles(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
