// Package prompt renders the persona instructions, bounded chat history and
// retrieved evidence into the single text sent to the generator.
package prompt

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/felixgeelhaar/persona/internal/history"
	"github.com/felixgeelhaar/persona/internal/knowledge"
	"github.com/felixgeelhaar/persona/internal/persona"
)

const characterTemplate = `You are %s, a %s.

CHARACTER DETAILS:
- %s
- Appearance: %s
- Interests: %s
- Abilities: %s
%s
GUIDELINES:
- Stay in character and use first-person perspective.
- Use *italics* for actions (e.g., *smiles*).
- Answer concisely but in character.
- Adapt tone to match user context.
- Reference retrieved knowledge when available, but do not make up facts.
- Do not cut off your sentences abruptly due to output token limits.`

// ContextHeader delimits the retrieved evidence section.
const ContextHeader = "Retrieved Context:"

// Prompt is a composed prompt. Body holds the instructions, history and user
// query; Context holds the formatted evidence. They are counted separately
// for usage accounting.
type Prompt struct {
	Body    string
	Context string
}

// String renders the full prompt. The context section is always present,
// even when empty.
func (p Prompt) String() string {
	return p.Body + "\n\n" + ContextHeader + "\n" + p.Context
}

// Compose builds the prompt for one user turn.
func Compose(cfg persona.Config, turns []history.Turn, input string, retrieved []knowledge.Result) Prompt {
	return Prompt{
		Body:    Body(cfg, turns, input),
		Context: FormatContext(retrieved),
	}
}

// Body renders the character instructions followed by the optional history
// block and the user query.
func Body(cfg persona.Config, turns []history.Turn, input string) string {
	additional := ""
	if strings.TrimSpace(cfg.AdditionalInfo) != "" {
		additional = "- Additional info: " + cfg.AdditionalInfo + "\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(characterTemplate,
		cfg.Name, cfg.Role, cfg.Personality, cfg.Appearance, cfg.Interests, cfg.Abilities, additional))

	if h := FormatHistory(turns); h != "" {
		sb.WriteString("\n\nCHAT HISTORY:\n")
		sb.WriteString(h)
	}

	sb.WriteString("\n\nUSER QUERY: ")
	sb.WriteString(input)
	return sb.String()
}

// FormatHistory renders turns as "User: ..." / "<Role>: ..." paragraphs.
func FormatHistory(turns []history.Turn) string {
	parts := make([]string, 0, len(turns))
	for _, t := range turns {
		parts = append(parts, roleLabel(t.Role)+": "+t.Content)
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n"))
}

// FormatContext lists passages best-first, each prefixed by its score.
func FormatContext(results []knowledge.Result) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, fmt.Sprintf("[Score: %.2f] %s", r.Score, r.Text))
	}
	return strings.Join(parts, "\n\n")
}

func roleLabel(r history.Role) string {
	if r == history.RoleUser {
		return "User"
	}
	s := string(r)
	if s == "" {
		return s
	}
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
