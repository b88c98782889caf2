package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateMachine(t *testing.T) {
	tests := []struct {
		from, to State
		allowed  bool
	}{
		{StatePending, StateWaiting, true},
		{StatePending, StateComplete, true},
		{StatePending, StateExpired, true},
		{StateWaiting, StateComplete, true},
		{StateWaiting, StateInvalid, true},
		{StateWaiting, StateExpired, true},
		{StateWaiting, StatePending, false},
		{StateComplete, StateInvalid, false},
		{StateComplete, StateExpired, false},
		{StateInvalid, StateComplete, false},
		{StateExpired, StateWaiting, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}

	assert.False(t, StatePending.IsTerminal())
	assert.False(t, StateWaiting.IsTerminal())
	assert.True(t, StateComplete.IsTerminal())
	assert.True(t, StateInvalid.IsTerminal())
	assert.True(t, StateExpired.IsTerminal())
}

func TestIsExpired(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ttl := 15 * time.Minute

	t.Run("fresh", func(t *testing.T) {
		e := &Exchange{CreatedAt: now.Add(-time.Minute), RecordExpiresAt: now.Add(time.Hour)}
		assert.False(t, e.IsExpired(now, ttl))
	})

	t.Run("age exceeds ttl before record horizon", func(t *testing.T) {
		e := &Exchange{CreatedAt: now.Add(-1000 * time.Second), RecordExpiresAt: now.Add(time.Hour)}
		assert.True(t, e.IsExpired(now, ttl))
	})

	t.Run("record horizon passed", func(t *testing.T) {
		e := &Exchange{CreatedAt: now.Add(-time.Minute), RecordExpiresAt: now.Add(-time.Second)}
		assert.True(t, e.IsExpired(now, ttl))
	})

	t.Run("zero ttl uses record horizon only", func(t *testing.T) {
		e := &Exchange{CreatedAt: now.Add(-48 * time.Hour), RecordExpiresAt: now.Add(time.Hour)}
		assert.False(t, e.IsExpired(now, 0))
	})
}

func TestPatchApply(t *testing.T) {
	now := time.Date(2023, 11, 10, 16, 54, 6, 762000000, time.UTC)
	vp := map[string]any{"type": []any{"VerifiablePresentation"}}
	e := &Exchange{State: StateWaiting, Variables: map[string]any{"kept": true}}

	require.True(t, Patch{State: StateComplete, Final: FinalResult(vp), UpdatedAt: now}.Apply(e))

	assert.Equal(t, StateComplete, e.State)
	assert.Equal(t, now, e.UpdatedAt)
	assert.Equal(t, true, e.Variables["kept"])
	got, ok := e.FinalPresentation()
	require.True(t, ok)
	assert.Equal(t, vp, got)
}

func TestPatchApplyRefusesUnreachableState(t *testing.T) {
	tests := []struct {
		name string
		from State
		to   State
	}{
		{"complete cannot reopen", StateComplete, StateWaiting},
		{"invalid cannot complete", StateInvalid, StateComplete},
		{"waiting cannot go back to pending", StateWaiting, StatePending},
		{"expired cannot expire again", StateExpired, StateExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Exchange{State: tt.from, Variables: map[string]any{"kept": true}}

			assert.False(t, Patch{State: tt.to, Variables: map[string]any{"added": true}}.Apply(e))
			assert.Equal(t, tt.from, e.State)
			assert.NotContains(t, e.Variables, "added")
		})
	}
}

func TestSources(t *testing.T) {
	assert.Equal(t, []State{StatePending}, Sources(PreTerminal, StateWaiting))
	assert.Equal(t, PreTerminal, Sources(PreTerminal, StateComplete))
	assert.Empty(t, Sources([]State{StateComplete}, StateInvalid))
}

func TestCloneIsolatesVariables(t *testing.T) {
	e := &Exchange{Variables: map[string]any{"results": map[string]any{"final": map[string]any{"x": 1}}}}
	c := e.Clone()
	c.Variables["results"].(map[string]any)["final"] = "mutated"

	_, ok := e.Variables["results"].(map[string]any)["final"].(map[string]any)
	assert.True(t, ok)
}

func TestNewSubmission(t *testing.T) {
	t.Run("object vp_token is kept as JSON", func(t *testing.T) {
		s, err := NewSubmission(`{"proof":{}}`, `{"id":"s","definition_id":"d","descriptor_map":[]}`)
		require.NoError(t, err)
		assert.JSONEq(t, `{"proof":{}}`, string(s.VPToken))
	})

	t.Run("compact vp_token becomes a JSON string", func(t *testing.T) {
		s, err := NewSubmission(" eyJh.eyJi.c2ln ", `{}`)
		require.NoError(t, err)
		var token string
		require.NoError(t, json.Unmarshal(s.VPToken, &token))
		assert.Equal(t, "eyJh.eyJi.c2ln", token)
	})

	t.Run("errors", func(t *testing.T) {
		_, err := NewSubmission("", `{}`)
		assert.Error(t, err)
		_, err = NewSubmission("abc", "")
		assert.Error(t, err)
		_, err = NewSubmission(`{"proof":`, `{}`)
		assert.Error(t, err)
		_, err = NewSubmission("abc", `{nope`)
		assert.Error(t, err)
	})
}

func TestCallbackRequestValidate(t *testing.T) {
	valid := &CallbackRequest{
		RequestID:     " c656dad8-a8fa-4361-baef-51af0c2e428e ",
		RequestStatus: CallbackPresentationVerified,
		Receipt:       &CallbackReceipt{VPToken: json.RawMessage(`{"type":"VerifiablePresentation"}`)},
	}
	valid.Normalize()
	assert.Equal(t, "c656dad8-a8fa-4361-baef-51af0c2e428e", valid.RequestID)
	assert.NoError(t, valid.Validate())

	assert.Error(t, (&CallbackRequest{RequestStatus: CallbackRequestRetrieved}).Validate())
	assert.Error(t, (&CallbackRequest{RequestID: "x", RequestStatus: CallbackPresentationVerified}).Validate())
	assert.Error(t, (&CallbackRequest{RequestID: "x", RequestStatus: "issuance_successful"}).Validate())
	assert.NoError(t, (&CallbackRequest{RequestID: "x", RequestStatus: CallbackPresentationError}).Validate())
}
