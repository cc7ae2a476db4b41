package intervalcache

import "fmt"

// State is the lifecycle position of the current query.
type State int

// Query states.
const (
	// Idle means no query was ever issued.
	Idle State = iota
	// Probing means the cardinality probe is running.
	Probing
	// Streaming means records are arriving into the in-flight snapshot.
	Streaming
	// Ready means the last stream completed and was committed.
	Ready
	// Empty means the probe found no intervals in scope.
	Empty
	// OverCutoff means the probe found more intervals than can be drawn.
	OverCutoff
	// Loading means the service is still building its index.
	Loading
	// Failed means the query failed; the committed snapshot is stale.
	Failed
)

var stateNames = [...]string{
	Idle:       "idle",
	Probing:    "probing",
	Streaming:  "streaming",
	Ready:      "ready",
	Empty:      "empty",
	OverCutoff: "over_cutoff",
	Loading:    "loading",
	Failed:     "failed",
}

// String returns the state name.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}

	return stateNames[s]
}

// Terminal reports whether the state ends a query.
func (s State) Terminal() bool {
	switch s {
	case Ready, Empty, OverCutoff, Loading, Failed:
		return true
	case Idle, Probing, Streaming:
		return false
	}

	return false
}

// Phase is the coarse status consumers act on.
type Phase int

// Phases.
const (
	PhaseLoading Phase = iota
	PhaseReady
	PhaseError
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseError:
		return "error"
	}

	return fmt.Sprintf("phase(%d)", int(p))
}

// Status is what the cache reports to the layers above it.
type Status struct {
	Phase   Phase
	Message string
	// NarrowWindow is set when the window holds too many intervals to draw.
	NarrowWindow bool
}

func statusFor(state State, probeCount, cutoff int64, err error) Status {
	switch state {
	case Idle, Ready:
		return Status{Phase: PhaseReady}
	case Empty:
		return Status{Phase: PhaseReady, Message: "no intervals in window"}
	case OverCutoff:
		return Status{
			Phase:        PhaseReady,
			Message:      fmt.Sprintf("%d intervals in window exceed the render cutoff of %d; narrow the window", probeCount, cutoff),
			NarrowWindow: true,
		}
	case Probing, Streaming:
		return Status{Phase: PhaseLoading}
	case Loading:
		return Status{Phase: PhaseLoading, Message: "dataset index is still building"}
	case Failed:
		msg := "query failed"
		if err != nil {
			msg = err.Error()
		}

		return Status{Phase: PhaseError, Message: msg}
	}

	return Status{Phase: PhaseError, Message: state.String()}
}
