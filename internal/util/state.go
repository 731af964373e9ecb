package util

// Transitions maps states to their set of valid next states
//
// Generic transition tables are used to validate task status and workflow
// run state changes
type Transitions[T comparable] map[T]Set[T]

// CanTransition returns whether transition from one state to another is valid
func (t Transitions[T]) CanTransition(from, to T) bool {
	allowed, ok := t[from]
	if !ok {
		return false
	}
	return allowed.Contains(to)
}

// IsTerminal returns true if the state has no valid transitions
func (t Transitions[T]) IsTerminal(state T) bool {
	allowed, ok := t[state]
	return ok && allowed.IsEmpty()
}
