package types

// ElectionState is the observational election label of a candidate.
//
// The true authority is the coordination service; this label is derived purely
// from lock events and is not enforced locally.
//
//	StateCandidate → StateElected → StateCandidate (lost) ...
//	any → StateRetiring → StateResigned
type ElectionState int

const (
	// StateCandidate indicates the process is running for office.
	StateCandidate ElectionState = iota

	// StateElected indicates the process believes it holds the lock.
	StateElected

	// StateRetiring indicates resignation is in progress.
	StateRetiring

	// StateResigned indicates resignation completed. Terminal.
	StateResigned
)

// String returns the string representation of the state.
func (s ElectionState) String() string {
	switch s {
	case StateCandidate:
		return "Candidate"
	case StateElected:
		return "Elected"
	case StateRetiring:
		return "Retiring"
	case StateResigned:
		return "Resigned"
	default:
		return "Unknown"
	}
}
