package chat

// State is a step of the per-turn response state machine.
type State int

const (
	Idle State = iota
	HistorySelected
	RetrievalDone
	PromptComposed
	GeneratorInvoked
	Completed
	Degraded
)

var stateNames = [...]string{
	Idle:             "idle",
	HistorySelected:  "history_selected",
	RetrievalDone:    "retrieval_done",
	PromptComposed:   "prompt_composed",
	GeneratorInvoked: "generator_invoked",
	Completed:        "completed",
	Degraded:         "degraded",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether s ends a turn.
func (s State) Terminal() bool {
	return s == Completed || s == Degraded
}
