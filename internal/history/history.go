package history

import "github.com/felixgeelhaar/persona/internal/tokens"

// DefaultBudget is the token budget for past turns included in a prompt.
const DefaultBudget = 1500

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry of the conversation log.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Selector picks the most recent turns that fit in a token budget.
type Selector struct {
	counter tokens.Counter
	budget  int
}

// NewSelector returns a Selector. A nil counter uses tokens.Estimator and a
// non-positive budget uses DefaultBudget.
func NewSelector(counter tokens.Counter, budget int) *Selector {
	if counter == nil {
		counter = tokens.Estimator{}
	}
	if budget <= 0 {
		budget = DefaultBudget
	}
	return &Selector{counter: counter, budget: budget}
}

func (s *Selector) Budget() int { return s.budget }

// Select walks log from newest to oldest and keeps turns until the next one
// would push the running total over the budget. When excludeLast is set the
// final (in-flight) turn is skipped. The result is in chronological order and
// never aliases log.
func (s *Selector) Select(log []Turn, excludeLast bool) []Turn {
	if excludeLast && len(log) > 0 {
		log = log[:len(log)-1]
	}

	used := 0
	start := len(log)
	for i := len(log) - 1; i >= 0; i-- {
		n := s.counter.Count(log[i].Content)
		if used+n > s.budget {
			break
		}
		used += n
		start = i
	}

	out := make([]Turn, len(log)-start)
	copy(out, log[start:])
	return out
}

// Tokens returns the estimated token total of turns.
func (s *Selector) Tokens(turns []Turn) int {
	total := 0
	for _, t := range turns {
		total += s.counter.Count(t.Content)
	}
	return total
}
