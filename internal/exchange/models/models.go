package models

import (
	"maps"
	"slices"
	"time"

	"verigate/internal/relyingparty"
)

// State is the lifecycle position of an exchange.
type State string

const (
	StatePending  State = "pending"
	StateWaiting  State = "waiting"
	StateComplete State = "complete"
	StateInvalid  State = "invalid"
	StateExpired  State = "expired"
)

// PreTerminal lists the states from which a response may still complete an exchange.
var PreTerminal = []State{StatePending, StateWaiting}

// IsTerminal reports whether no further transitions are possible.
func (s State) IsTerminal() bool {
	return s == StateComplete || s == StateInvalid || s == StateExpired
}

// CanTransitionTo enforces the forward-only state machine:
// pending -> waiting -> {complete, invalid}, pending -> {complete, invalid},
// and any non-terminal state -> expired.
func (s State) CanTransitionTo(next State) bool {
	switch s {
	case StatePending:
		return next == StateWaiting || next == StateComplete || next == StateInvalid || next == StateExpired
	case StateWaiting:
		return next == StateComplete || next == StateInvalid || next == StateExpired
	default:
		return false
	}
}

// Exchange is one presentation request tracked through the state machine.
type Exchange struct {
	ID              string
	WorkflowID      string
	WorkflowType    relyingparty.WorkflowType
	State           State
	Step            string
	Challenge       string
	AccessToken     string
	OID4VP          string
	VCAPI           string
	Variables       map[string]any
	CreatedAt       time.Time
	UpdatedAt       time.Time
	RecordExpiresAt time.Time
}

// IsExpired evaluates both expiry horizons at now: the absolute record horizon
// and the age-based TTL measured from CreatedAt.
func (e *Exchange) IsExpired(now time.Time, ttl time.Duration) bool {
	if !e.RecordExpiresAt.IsZero() && now.After(e.RecordExpiresAt) {
		return true
	}
	return ttl > 0 && now.Sub(e.CreatedAt) > ttl
}

// FinalPresentation returns variables.results.final.verifiablePresentation if set.
func (e *Exchange) FinalPresentation() (any, bool) {
	results, ok := e.Variables["results"].(map[string]any)
	if !ok {
		return nil, false
	}
	final, ok := results["final"].(map[string]any)
	if !ok {
		return nil, false
	}
	vp, ok := final["verifiablePresentation"]
	return vp, ok
}

// Clone returns a deep-enough copy for store isolation: variables maps are
// copied recursively so callers cannot mutate stored state.
func (e *Exchange) Clone() *Exchange {
	if e == nil {
		return nil
	}
	c := *e
	c.Variables = cloneMap(e.Variables)
	return &c
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		s := slices.Clone(t)
		for i := range s {
			s[i] = cloneValue(s[i])
		}
		return s
	default:
		return v
	}
}

// Patch describes the fields written together with a state transition.
// Final, when non-nil, becomes variables.results.final; Variables entries are
// merged into the top level of variables.
type Patch struct {
	State     State
	Step      string
	Final     map[string]any
	Variables map[string]any
	UpdatedAt time.Time
}

// Apply writes the patch onto e and reports whether it did. A patch whose state
// is not reachable from e's current state is refused and leaves e unchanged.
func (p Patch) Apply(e *Exchange) bool {
	if !e.State.CanTransitionTo(p.State) {
		return false
	}
	if e.Variables == nil {
		e.Variables = map[string]any{}
	}
	maps.Copy(e.Variables, cloneMap(p.Variables))
	if p.Final != nil {
		results, _ := e.Variables["results"].(map[string]any)
		if results == nil {
			results = map[string]any{}
		}
		results["final"] = cloneMap(p.Final)
		e.Variables["results"] = results
	}
	if p.Step != "" {
		e.Step = p.Step
	}
	e.State = p.State
	e.UpdatedAt = p.UpdatedAt
	return true
}

// Sources narrows expected to the states from which next is reachable.
func Sources(expected []State, next State) []State {
	out := make([]State, 0, len(expected))
	for _, s := range expected {
		if s.CanTransitionTo(next) {
			out = append(out, s)
		}
	}
	return out
}

// FinalResult builds the variables.results.final payload for a verified presentation.
func FinalResult(presentation any) map[string]any {
	return map[string]any{"verifiablePresentation": presentation}
}
