// Package intent classifies user messages into the coarse intents that steer
// context assembly. Classification is keyword and pattern based over the
// accent-folded message; there is no model call on this path.
package intent

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/yaya56vv/cortex/pkg/models"
)

// Intent is a routed request category.
type Intent string

const (
	// RulesQuery asks about standing rules, conventions or policies.
	RulesQuery Intent = "rules_query"

	// ProjectQuery asks about project state, deliverables or deadlines.
	ProjectQuery Intent = "project_query"

	// MemoryQuery asks about past conversation or stored knowledge.
	MemoryQuery Intent = "memory_query"

	// VisionAnalysis asks to look at the screen, an image or a photo.
	VisionAnalysis Intent = "vision_analysis"

	// AudioProcessing asks to transcribe, listen or speak.
	AudioProcessing Intent = "audio_processing"

	// General is everything else.
	General Intent = "general"
)

const (
	generalConfidence = 0.3
	baseConfidence    = 0.6
	perMatchBonus     = 0.15
	maxConfidence     = 0.95
)

// Result is one classification outcome.
type Result struct {
	// Intent is the routed category.
	Intent Intent `json:"intent"`

	// Confidence is in (0, 1]; keyword hits raise it.
	Confidence float64 `json:"confidence"`

	// Keywords lists the matched terms, for logs and timeline metadata.
	Keywords []string `json:"keywords,omitempty"`
}

// rules pair each intent with one combined keyword pattern. Order matters:
// on a tie the earlier intent wins.
var rules = []struct {
	intent  Intent
	pattern *regexp.Regexp
}{
	{RulesQuery, regexp.MustCompile(`\b(?:regles?|consignes?|directives?|politiques?|rules?|polic(?:y|ies)|guidelines?|conventions?)\b`)},
	{ProjectQuery, regexp.MustCompile(`\b(?:projets?|projects?|chantiers?|roadmaps?|jalons?|livrables?|milestones?|deadlines?|echeances?)\b`)},
	{MemoryQuery, regexp.MustCompile(`\b(?:souviens|rappelle[sr]?|rappeler|memoires?|historique|precedemment|remember|recall|memory|previously|earlier)\b`)},
	{VisionAnalysis, regexp.MustCompile(`\b(?:ecrans?|captures?|screenshots?|images?|photos?|regarde[sz]?|visuels?|visuelles?|vision|cameras?|webcams?|screen)\b`)},
	{AudioProcessing, regexp.MustCompile(`\b(?:audio|micros?|microphones?|ecoute[rsz]?|transcri\w*|transcribe|voix|voice|speech|dicte[es]?|enregistrements?|recordings?|vocale?s?|tts|wav|mp3)\b`)},
}

// foldTransformer strips combining marks after NFD decomposition, so accented
// text compares like its ASCII skeleton.
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func fold(s string) string {
	out, _, err := transform.String(foldTransformer, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return strings.ToLower(out)
}

// Router classifies user messages. It is stateless and safe for concurrent
// use.
type Router struct {
	logger *slog.Logger
}

// NewRouter builds a Router.
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{logger: logger.With("component", "intent")}
}

// Classify routes one message. Unmatched messages are general with a low
// fixed confidence; keyword hits pick the densest intent and raise the
// confidence with each extra hit.
func (r *Router) Classify(message string) Result {
	folded := fold(message)

	best := Result{Intent: General, Confidence: generalConfidence}
	bestCount := 0
	for _, rule := range rules {
		matches := rule.pattern.FindAllString(folded, -1)
		if len(matches) == 0 || len(matches) <= bestCount {
			continue
		}
		bestCount = len(matches)
		confidence := baseConfidence + perMatchBonus*float64(len(matches)-1)
		if confidence > maxConfidence {
			confidence = maxConfidence
		}
		best = Result{Intent: rule.intent, Confidence: confidence, Keywords: dedupe(matches)}
	}

	r.logger.Debug("intent classified",
		"intent", best.Intent,
		"confidence", best.Confidence,
		"keywords", strings.Join(best.Keywords, ","),
	)
	return best
}

func dedupe(words []string) []string {
	seen := make(map[string]bool, len(words))
	out := words[:0]
	for _, w := range words {
		if seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// Profile steers the context builder's fan-out for one intent.
type Profile struct {
	// RAGTopK is the per-dataset retrieval depth; datasets absent from the
	// map are not queried.
	RAGTopK map[models.Dataset]int

	// MemoryMessages is the conversation tail length to include.
	MemoryMessages int

	// SearchTopK is the session-memory similarity search depth; zero skips
	// the search.
	SearchTopK int

	// Vision includes the latest visual context.
	Vision bool

	// Audio includes the latest audio transcription context.
	Audio bool

	// System includes an OS state snapshot.
	System bool
}

// Profile returns the context-assembly profile for the intent. Unknown
// intents get the general profile.
func (i Intent) Profile() Profile {
	switch i {
	case RulesQuery:
		return Profile{
			RAGTopK: map[models.Dataset]int{
				models.DatasetAgentCore:   4,
				models.DatasetProjects:    1,
				models.DatasetAgentMemory: 1,
			},
			MemoryMessages: 5,
			SearchTopK:     3,
		}
	case ProjectQuery:
		return Profile{
			RAGTopK: map[models.Dataset]int{
				models.DatasetProjects:    4,
				models.DatasetAgentCore:   2,
				models.DatasetScratchpad:  1,
				models.DatasetAgentMemory: 1,
			},
			MemoryMessages: 5,
			SearchTopK:     3,
		}
	case MemoryQuery:
		return Profile{
			RAGTopK: map[models.Dataset]int{
				models.DatasetAgentMemory: 3,
				models.DatasetAgentCore:   1,
				models.DatasetProjects:    1,
			},
			MemoryMessages: 10,
			SearchTopK:     5,
		}
	case VisionAnalysis:
		p := General.Profile()
		p.Vision = true
		return p
	case AudioProcessing:
		p := General.Profile()
		p.Audio = true
		return p
	default:
		return Profile{
			RAGTopK: map[models.Dataset]int{
				models.DatasetAgentCore:   2,
				models.DatasetProjects:    2,
				models.DatasetScratchpad:  1,
				models.DatasetAgentMemory: 1,
			},
			MemoryMessages: 5,
			SearchTopK:     3,
		}
	}
}
