package planner

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/kaptinlin/jsonrepair"
	"github.com/santhosh-tekuri/jsonschema/v5"
	json5 "github.com/yosuke-furukawa/json5/encoding/json5"

	"github.com/yaya56vv/cortex/internal/catalog"
	"github.com/yaya56vv/cortex/pkg/models"
)

// ErrNoJSON means no JSON object could be located in the model output.
var ErrNoJSON = errors.New("planner: no JSON object in model output")

// planWire is the JSON shape the model is asked for.
type planWire struct {
	Steps []struct {
		Tool         string         `json:"tool"`
		Action       string         `json:"action"`
		Args         map[string]any `json:"args"`
		PreferredLLM string         `json:"preferred_llm"`
	} `json:"steps"`
	Reasoning string `json:"reasoning"`
}

// ParsePlan extracts a plan from raw model output. Three decoding stages run
// in order — strict JSON, JSON5, then a repair pass — over the outermost
// JSON object found in the text, so fenced code blocks and prose around the
// object do not break parsing.
func ParsePlan(raw string) (*models.Plan, error) {
	payload, ok := extractObject(raw)
	if !ok {
		return nil, ErrNoJSON
	}

	var wire planWire
	var firstErr error
	if err := json.Unmarshal([]byte(payload), &wire); err == nil {
		return wireToPlan(wire), nil
	} else {
		firstErr = err
	}
	if err := json5.Unmarshal([]byte(payload), &wire); err == nil {
		return wireToPlan(wire), nil
	}
	repaired, err := jsonrepair.JSONRepair(payload)
	if err != nil {
		return nil, fmt.Errorf("planner: parse failed (%v) and repair failed: %w", firstErr, err)
	}
	if err := json.Unmarshal([]byte(repaired), &wire); err != nil {
		return nil, fmt.Errorf("planner: parse failed after repair: %w", err)
	}
	return wireToPlan(wire), nil
}

func wireToPlan(wire planWire) *models.Plan {
	plan := &models.Plan{Reasoning: strings.TrimSpace(wire.Reasoning)}
	for _, s := range wire.Steps {
		args := s.Args
		if args == nil {
			args = map[string]any{}
		}
		plan.Steps = append(plan.Steps, models.PlanStep{
			Tool:         strings.TrimSpace(s.Tool),
			Action:       strings.TrimSpace(s.Action),
			Args:         args,
			PreferredLLM: models.LLMRole(strings.TrimSpace(s.PreferredLLM)),
		})
	}
	return plan
}

// extractObject returns the outermost {...} of the text, honoring strings
// and escapes so braces inside argument values do not end the scan early.
func extractObject(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}
	// Unbalanced object: hand the tail to the repair stage.
	return raw[start:], true
}

// argSchemas caches the compiled argument schema per (tool, action).
var argSchemas sync.Map

// validateArgs checks a step's arguments against the action's generated JSON
// schema. The schema enforces the same required/declared constraints as
// catalog.ValidateStep, plus whatever argument typing the catalog grows.
func validateArgs(step models.PlanStep) error {
	spec, ok := catalog.Lookup(step.Tool, step.Action)
	if !ok {
		return fmt.Errorf("%w: %s.%s", catalog.ErrUnknownAction, step.Tool, step.Action)
	}

	key := step.Tool + "." + step.Action
	cached, ok := argSchemas.Load(key)
	if !ok {
		raw, err := json.Marshal(spec.ArgsSchema())
		if err != nil {
			return fmt.Errorf("encode schema for %s: %w", key, err)
		}
		compiled, err := jsonschema.CompileString(key+".schema.json", string(raw))
		if err != nil {
			return fmt.Errorf("compile schema for %s: %w", key, err)
		}
		argSchemas.Store(key, compiled)
		cached = compiled
	}
	schema := cached.(*jsonschema.Schema)

	// Round-trip to plain JSON values so the validator sees what the wire
	// would carry.
	payload, err := json.Marshal(step.Args)
	if err != nil {
		return fmt.Errorf("encode args for %s: %w", key, err)
	}
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return fmt.Errorf("decode args for %s: %w", key, err)
	}
	if err := schema.Validate(decoded); err != nil {
		return fmt.Errorf("args for %s: %w", key, err)
	}
	return nil
}
