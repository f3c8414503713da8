package app

// State is the lifecycle of one run.
type State int

const (
	Unauthenticated State = iota
	Authenticated
	Resolved
	Uploading
	Done
	Aborted
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticated:
		return "authenticated"
	case Resolved:
		return "resolved"
	case Uploading:
		return "uploading"
	case Done:
		return "done"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return s == Done || s == Aborted }

// next reports whether s may move to to. Every non-terminal state may abort;
// otherwise states advance one step at a time.
func (s State) next(to State) bool {
	if s.Terminal() {
		return false
	}
	if to == Aborted {
		return true
	}
	return to == s+1
}
