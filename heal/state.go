package heal

import (
	"encoding/json"
	"fmt"
)

// State is a step of the heal state machine.
type State int

const (
	Detected State = iota
	Diagnosing
	ProposalPending
	Validating
	Healed
	Exhausted
)

var stateNames = [...]string{
	Detected:        "detected",
	Diagnosing:      "diagnosing",
	ProposalPending: "proposal_pending",
	Validating:      "validating",
	Healed:          "healed",
	Exhausted:       "exhausted",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool { return s == Healed || s == Exhausted }

// MarshalJSON encodes the state by name.
func (s State) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

// allowed lists the legal transitions. Validating loops back to
// ProposalPending while retries remain.
var allowed = map[State][]State{
	Detected:        {Diagnosing, Exhausted},
	Diagnosing:      {ProposalPending, Exhausted},
	ProposalPending: {Validating, ProposalPending, Exhausted},
	Validating:      {Healed, ProposalPending, Exhausted},
}

func canTransition(from, to State) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition is one recorded state change.
type Transition struct {
	From    State  `json:"from"`
	To      State  `json:"to"`
	Attempt int    `json:"attempt,omitempty"`
	Reason  string `json:"reason,omitempty"`
}
