package pipeline

import "fmt"

// State is a step of a pipeline run.
type State int

const (
	Idle State = iota
	Fetching
	Transforming
	Publishing
	CleaningUp
	Done
	Failed
)

var stateNames = [...]string{
	Idle:         "idle",
	Fetching:     "fetching",
	Transforming: "transforming",
	Publishing:   "publishing",
	CleaningUp:   "cleaning_up",
	Done:         "done",
	Failed:       "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether no further transition is possible from s.
func (s State) Terminal() bool { return s == Done || s == Failed }

// next is the happy-path successor of each working state.
var next = map[State]State{
	Idle:         Fetching,
	Fetching:     Transforming,
	Transforming: Publishing,
	Publishing:   CleaningUp,
	CleaningUp:   Done,
}

// canTransition reports whether from -> to is a legal move. Failed is
// reachable from every non-Idle, non-terminal state.
func canTransition(from, to State) bool {
	if to == Failed {
		return from != Idle && !from.Terminal()
	}
	n, ok := next[from]
	return ok && n == to
}

// StageError reports the stage a run failed in and why.
type StageError struct {
	Stage State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline failed while %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
