package history

import (
	"strings"
	"testing"

	"github.com/felixgeelhaar/persona/internal/tokens"
)

// wordCounter counts one token per word so boundaries are easy to read.
var wordCounter = tokens.CounterFunc(func(s string) int { return len(strings.Fields(s)) })

func turns(contents ...string) []Turn {
	out := make([]Turn, len(contents))
	for i, c := range contents {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		out[i] = Turn{Role: role, Content: c}
	}
	return out
}

func TestSelect_AllFit(t *testing.T) {
	s := NewSelector(wordCounter, 100)
	log := turns("one", "two words", "three more words", "in flight")

	got := s.Select(log, true)
	if len(got) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(got))
	}
	if got[0].Content != "one" || got[2].Content != "three more words" {
		t.Errorf("unexpected order: %+v", got)
	}
}

func TestSelect_StopsAtFirstOverflow(t *testing.T) {
	// Newest first: 3 (fits, 3), 2 (fits, 5), 4 (would be 9 > 6, stop).
	// The oldest turn of 1 token is discarded even though it would fit.
	s := NewSelector(wordCounter, 6)
	log := turns("a", "b c d e", "f g", "h i j", "current")

	got := s.Select(log, true)
	if len(got) != 2 {
		t.Fatalf("expected 2 turns, got %d: %+v", len(got), got)
	}
	if got[0].Content != "f g" || got[1].Content != "h i j" {
		t.Errorf("unexpected selection: %+v", got)
	}
}

func TestSelect_ExactBudget(t *testing.T) {
	s := NewSelector(wordCounter, 5)
	log := turns("a b", "c d e")

	got := s.Select(log, false)
	if len(got) != 2 {
		t.Errorf("expected both turns at exact budget, got %d", len(got))
	}
}

func TestSelect_NewestTooLarge(t *testing.T) {
	s := NewSelector(wordCounter, 2)
	log := turns("a", "b c d", "current")

	if got := s.Select(log, true); len(got) != 0 {
		t.Errorf("expected empty selection, got %+v", got)
	}
}

func TestSelect_Empty(t *testing.T) {
	s := NewSelector(nil, 0)
	if got := s.Select(nil, true); len(got) != 0 {
		t.Errorf("expected empty selection, got %d", len(got))
	}
	if got := s.Select(turns("only"), true); len(got) != 0 {
		t.Errorf("expected in-flight turn to be excluded, got %d", len(got))
	}
	if s.Budget() != DefaultBudget {
		t.Errorf("expected default budget %d, got %d", DefaultBudget, s.Budget())
	}
}

func TestSelect_MaximalSuffixProperty(t *testing.T) {
	log := turns("a b c", "d", "e f", "g h i j", "k", "l m", "n o p", "q")
	for budget := 1; budget <= 20; budget++ {
		s := NewSelector(wordCounter, budget)
		got := s.Select(log, false)

		if total := s.Tokens(got); total > budget {
			t.Errorf("budget=%d: selection uses %d tokens", budget, total)
		}
		// Selection is a suffix of the log.
		offset := len(log) - len(got)
		for i := range got {
			if got[i] != log[offset+i] {
				t.Fatalf("budget=%d: selection is not a suffix", budget)
			}
		}
		// Extending by one older turn would exceed the budget.
		if offset > 0 {
			if s.Tokens(log[offset-1:]) <= budget {
				t.Errorf("budget=%d: selection is not maximal", budget)
			}
		}
	}
}

func TestSelect_DoesNotAlias(t *testing.T) {
	s := NewSelector(wordCounter, 100)
	log := turns("a", "b")
	got := s.Select(log, false)
	got[0].Content = "changed"
	if log[0].Content != "a" {
		t.Error("selection must not alias the log")
	}
}
