package planner

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/yaya56vv/cortex/internal/catalog"
	"github.com/yaya56vv/cortex/pkg/models"
)

const systemPrompt = `You are the planning component of a local assistant.
Given the user request and the available context, produce a JSON object:

{"steps": [{"tool": "...", "action": "...", "args": {...}, "preferred_llm": "reasoning|coding|vision"}], "reasoning": "..."}

Rules:
- Only use tools and actions from the catalog below. Argument names must
  match the catalog exactly.
- A step may pass "$previous" as an argument value to reference the previous
  step's result.
- An empty steps list means the request can be answered directly.
- Answer with the JSON object only, no prose around it.`

// roleDescriptions is the closed role set shown to the model.
const roleDescriptions = `reasoning: general analysis, writing, and everyday answers
coding: source code reading, writing, and shell work
vision: image and screen understanding`

// buildPrompt assembles the planning prompt: user message, a summary view of
// the SuperContext, the verbatim catalog, and the role tags. When the result
// exceeds the token budget, context sections are dropped largest-first until
// it fits; the user message and catalog are never dropped.
func (p *Planner) buildPrompt(userMessage string, sc *models.SuperContext) string {
	sections := contextLines(sc)

	for {
		prompt := renderPrompt(userMessage, sc, sections)
		if CountTokens(prompt) <= p.budget || len(sections) == 0 {
			if len(sections) < len(contextLines(sc)) {
				p.logger.Debug("context trimmed to fit token budget",
					"kept", len(sections), "budget", p.budget)
			}
			return prompt
		}
		// Drop the largest remaining section.
		largest := 0
		for i, s := range sections {
			if len(s.body) > len(sections[largest].body) {
				largest = i
			}
		}
		sections = append(sections[:largest], sections[largest+1:]...)
	}
}

type promptSection struct {
	name string
	body string
}

// contextLines renders each populated SuperContext section as a named block,
// plus the one-line summary the prompt always keeps.
func contextLines(sc *models.SuperContext) []promptSection {
	if sc == nil {
		return nil
	}
	all := sc.Sections()
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]promptSection, 0, len(names))
	for _, name := range names {
		s := all[name]
		if s.Status != models.SectionOK || strings.TrimSpace(s.Content) == "" {
			continue
		}
		out = append(out, promptSection{name: name, body: strings.TrimSpace(s.Content)})
	}
	return out
}

// Summary is the per-section one-line view of a SuperContext ("memory: 120
// bytes; rag:projects: 2 chunks; vision: error").
func Summary(sc *models.SuperContext) string {
	if sc == nil {
		return "no context"
	}
	all := sc.Sections()
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		s := all[name]
		switch s.Status {
		case models.SectionOK:
			parts = append(parts, fmt.Sprintf("%s: %d bytes", name, len(s.Content)))
		case models.SectionError:
			parts = append(parts, name+": error")
		}
	}
	if len(parts) == 0 {
		return "no context"
	}
	return strings.Join(parts, "; ")
}

func renderPrompt(userMessage string, sc *models.SuperContext, sections []promptSection) string {
	var b strings.Builder

	b.WriteString("# User request\n")
	b.WriteString(userMessage)
	b.WriteString("\n\n# Context summary\n")
	b.WriteString(Summary(sc))
	b.WriteString("\n")

	for _, s := range sections {
		fmt.Fprintf(&b, "\n## %s\n%s\n", s.name, s.body)
	}

	b.WriteString("\n# Tool catalog\n")
	b.WriteString(catalog.Render())
	b.WriteString("\n# Model roles\n")
	b.WriteString(roleDescriptions)
	b.WriteString("\n")
	return b.String()
}

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// CountTokens counts prompt tokens with the cl100k_base encoding, falling
// back to a rune heuristic when the encoding cannot be loaded (tiktoken
// fetches its vocabulary on first use).
func CountTokens(text string) int {
	encodingOnce.Do(func() {
		if enc, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
			encoding = enc
		}
	})
	if encoding != nil {
		return len(encoding.Encode(text, nil, nil))
	}
	runes := len([]rune(text))
	words := len(strings.Fields(text))
	if est := runes / 4; est > words {
		return est
	}
	return words
}
