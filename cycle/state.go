package cycle

import "fmt"

// State is a stage of a wake cycle.
type State int

const (
	Boot State = iota
	Connecting
	Locating
	Fetching
	Comparing
	Rendering
	PersistingMarker
	// Sleeping is the only terminal state; every path ends here.
	Sleeping
)

var stateNames = [...]string{
	Boot:             "boot",
	Connecting:       "connecting",
	Locating:         "locating",
	Fetching:         "fetching",
	Comparing:        "comparing",
	Rendering:        "rendering",
	PersistingMarker: "persisting-marker",
	Sleeping:         "sleeping",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Outcome summarises how a cycle ended.
type Outcome string

const (
	// Unchanged: the panel already shows the artifact, nothing was drawn.
	Unchanged Outcome = "unchanged"
	// Rendered: a new artifact was drawn.
	Rendered Outcome = "rendered"
	// Failed: the cycle hit an error and the marker was left alone.
	Failed Outcome = "failed"
)
