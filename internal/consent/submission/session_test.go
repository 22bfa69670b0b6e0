package submission

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"privacy-consent/internal/models"
)

func TestSession_Transitions(t *testing.T) {
	s := NewSession()
	var seen []Transition
	s.Subscribe(func(tr Transition) { seen = append(seen, tr) })

	require.NoError(t, s.transition(StateValidating, 0, ""))
	require.NoError(t, s.transition(StateResolvingIP, 0, ""))
	require.NoError(t, s.transition(StateRendering, 0, ""))
	require.NoError(t, s.transition(StateEncoding, 0, ""))
	require.NoError(t, s.transition(StateSending, 1, ""))
	require.NoError(t, s.transition(StateSending, 2, ""))
	require.NoError(t, s.transition(StateSuccess, 2, ""))

	require.Len(t, seen, 7)
	assert.Equal(t, StateIdle, seen[0].From)
	assert.Equal(t, 2, seen[5].Attempt)
	assert.Equal(t, 2, s.Attempt())
	assert.True(t, s.State().Terminal())
}

func TestSession_IllegalTransition(t *testing.T) {
	s := NewSession()

	err := s.transition(StateSending, 1, "")
	require.Error(t, err)
	assert.Equal(t, StateIdle, s.State())

	require.NoError(t, s.transition(StateValidating, 0, ""))
	assert.Error(t, s.transition(StateSuccess, 0, ""))
}

func TestSession_ExitGuard(t *testing.T) {
	s := NewSession()
	assert.False(t, s.ExitNeedsConfirmation())

	form := models.NewFormRecord()
	s.Edit(form)
	assert.False(t, s.ExitNeedsConfirmation())

	form.Set("nome", "Mario")
	assert.True(t, s.ExitNeedsConfirmation())

	require.NoError(t, s.begin(form))
	assert.True(t, s.Busy())
	for _, st := range []State{StateValidating, StateResolvingIP, StateRendering, StateEncoding, StateSending, StateSuccess} {
		require.NoError(t, s.transition(st, 1, ""))
	}
	s.end()

	assert.False(t, s.Busy())
	assert.True(t, s.Completed())
	assert.False(t, s.ExitNeedsConfirmation())

	s.Edit(models.NewFormRecord())
	assert.False(t, s.Completed())
}

func TestSession_FailureKeepsGuardArmed(t *testing.T) {
	s := NewSession()
	form := models.NewFormRecord()
	form.Set("nome", "Mario")

	require.NoError(t, s.begin(form))
	require.NoError(t, s.transition(StateValidating, 0, ""))
	require.NoError(t, s.transition(StateFailed, 0, ""))
	s.end()

	assert.False(t, s.Completed())
	assert.True(t, s.ExitNeedsConfirmation())

	require.NoError(t, s.begin(form))
	assert.Equal(t, StateIdle, s.State())
}

func TestSession_Busy(t *testing.T) {
	s := NewSession()
	require.NoError(t, s.begin(nil))
	assert.ErrorIs(t, s.begin(nil), ErrBusy)
	s.end()
	assert.NoError(t, s.begin(nil))
}

// ==========================
// Diagnostics Tests
// ==========================

func TestDiagnosticLog_Ring(t *testing.T) {
	d := NewDiagnosticLog(3)
	assert.Equal(t, 0, d.Len())

	for i := 1; i <= 5; i++ {
		d.Record("info", fmt.Sprintf("event-%d", i), nil)
	}

	assert.Equal(t, 3, d.Len())
	entries := d.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "event-3", entries[0].Event)
	assert.Equal(t, "event-5", entries[2].Event)
}

func TestDiagnosticLog_WriteTo(t *testing.T) {
	d := NewDiagnosticLog(10)
	d.Record("error", "submission_failed", map[string]interface{}{"code": "DELIVERY_TIMEOUT"})
	d.Record("info", "ip_resolved", nil)

	var buf bytes.Buffer
	n, err := d.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first DiagnosticEntry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "submission_failed", first.Event)
	assert.Equal(t, "DELIVERY_TIMEOUT", first.Fields["code"])
}

func TestDiagnosticLog_NilSafe(t *testing.T) {
	var d *DiagnosticLog
	assert.NotPanics(t, func() { d.Record("info", "x", nil) })
}
