package tether

// State represents the persistence state of a Document.
type State int32

const (
	// StateClean indicates the bound file reflects the last observed
	// in-memory tree. This is the initial state after Load and Adopt.
	StateClean State = iota

	// StateDirty indicates mutations have been observed that are not yet
	// durable on disk.
	StateDirty

	// StateDegraded indicates the last save attempt failed. The in-memory
	// tree remains authoritative and further saves are still attempted.
	StateDegraded
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClean:
		return "clean"
	case StateDirty:
		return "dirty"
	case StateDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}
