package types

// ownerKind distinguishes the three observable ownership states of a lock key.
type ownerKind uint8

const (
	ownerUnknown ownerKind = iota
	ownerNone
	ownerSession
)

// Owner is the observed owner of a lock key.
//
// The zero value means "not yet observed", which is distinct from Unowned().
// Owner is comparable: two owners are equal iff they denote the same state and session.
type Owner struct {
	kind      ownerKind
	sessionID string
}

// Unowned returns the explicit "nobody holds the lock" owner.
func Unowned() Owner {
	return Owner{kind: ownerNone}
}

// OwnedBy returns the owner for the given session ID.
//
// An empty ID is normalized to Unowned().
func OwnedBy(sessionID string) Owner {
	if sessionID == "" {
		return Unowned()
	}

	return Owner{kind: ownerSession, sessionID: sessionID}
}

// Known reports whether the owner has been observed at least once.
func (o Owner) Known() bool {
	return o.kind != ownerUnknown
}

// Held reports whether some session holds the lock.
func (o Owner) Held() bool {
	return o.kind == ownerSession
}

// SessionID returns the holding session ID, or "" when the lock is not held.
func (o Owner) SessionID() string {
	return o.sessionID
}

// Is reports whether the lock is held by the given session ID.
func (o Owner) Is(sessionID string) bool {
	return o.kind == ownerSession && sessionID != "" && o.sessionID == sessionID
}

// String returns a human readable representation of the owner.
func (o Owner) String() string {
	switch o.kind {
	case ownerNone:
		return "<unowned>"
	case ownerSession:
		return o.sessionID
	default:
		return "<unknown>"
	}
}
