package lockkey

import "github.com/arloliu/elector/types"

// tracker holds the observed ownership of a key and derives events from new observations.
type tracker struct {
	last   types.Owner
	locked bool
}

// observe folds one notification's owner into the tracker.
//
// Returns the events to emit in order, and false when the notification repeated the
// last observed owner and must be ignored.
func (t *tracker) observe(owner types.Owner, localID string) ([]types.LockEventType, bool) {
	if owner == t.last {
		return nil, false
	}
	t.last = owner

	events := make([]types.LockEventType, 0, 2)
	if owner.Held() {
		events = append(events, types.LockTaken)
	} else {
		events = append(events, types.LockReleased)
	}

	isLocal := owner.Is(localID)
	switch {
	case t.locked && !isLocal:
		t.locked = false
		events = append(events, types.LockLost)
	case !t.locked && isLocal:
		t.locked = true
		events = append(events, types.LockAcquired)
	}

	return events, true
}
