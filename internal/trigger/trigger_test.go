package trigger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flowsync/internal/testutil"
	"github.com/roach88/flowsync/internal/workflow"
)

func withTrigger(id string, disabled bool) workflow.Record {
	return workflow.Record{
		ID:         id,
		IsDisabled: disabled,
		Graph: workflow.Graph{Nodes: []workflow.Node{
			{ID: "n0", Label: "new-tab"},
			{ID: "t1", Label: workflow.TriggerLabel, Data: map[string]any{"type": "interval"}},
		}},
	}
}

func TestDiff(t *testing.T) {
	tests := []struct {
		name   string
		prev   workflow.Record
		next   workflow.Record
		ok     bool
		kind   Kind
		nodeID string
	}{
		{name: "enabled stays enabled", prev: withTrigger("A", false), next: withTrigger("A", false)},
		{name: "disabled stays disabled", prev: withTrigger("A", true), next: withTrigger("A", true)},
		{name: "disabling", prev: withTrigger("A", false), next: withTrigger("A", true), ok: true, kind: Cleanup},
		{name: "enabling", prev: withTrigger("A", true), next: withTrigger("A", false), ok: true, kind: Register, nodeID: "t1"},
		{
			name: "enabling without trigger node",
			prev: workflow.Record{ID: "A", IsDisabled: true},
			next: workflow.Record{ID: "A"},
			ok:   true,
			kind: Register,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, ok := Diff(tt.prev, tt.next)
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, "A", tr.WorkflowID)
			assert.Equal(t, tt.kind, tr.Kind)
			if tt.nodeID == "" {
				assert.Nil(t, tr.Node)
				return
			}
			require.NotNil(t, tr.Node)
			assert.Equal(t, tt.nodeID, tr.Node.ID)
		})
	}
}

func TestDispatch_EnableRegistersOnce(t *testing.T) {
	hook := testutil.NewRecordingHook()
	d := NewDispatcher(hook)

	tr, ok := Diff(withTrigger("A", true), withTrigger("A", false))
	require.True(t, ok)

	errs := d.Dispatch(context.Background(), []Transition{tr})
	assert.Empty(t, errs)

	regs := hook.Registered()
	require.Len(t, regs, 1)
	assert.Equal(t, "A", regs[0].WorkflowID)
	assert.Equal(t, "t1", regs[0].Node.ID)
	assert.Empty(t, hook.Cleaned())
}

func TestDispatch_DisableCleansUpOnce(t *testing.T) {
	hook := testutil.NewRecordingHook()
	d := NewDispatcher(hook)

	tr, ok := Diff(withTrigger("A", false), withTrigger("A", true))
	require.True(t, ok)

	assert.Empty(t, d.Dispatch(context.Background(), []Transition{tr}))
	assert.Equal(t, []string{"A"}, hook.Cleaned())
	assert.Empty(t, hook.Registered())
}

func TestDispatch_EnableWithoutTriggerNodeIsNoop(t *testing.T) {
	hook := testutil.NewRecordingHook()
	d := NewDispatcher(hook)

	errs := d.Dispatch(context.Background(), []Transition{{WorkflowID: "A", Kind: Register}})
	assert.Empty(t, errs)
	assert.Empty(t, hook.Registered())
	assert.Empty(t, hook.Cleaned())
}

func TestDispatch_FailuresAreCollectedAndLogged(t *testing.T) {
	hook := testutil.NewRecordingHook()
	boom := errors.New("boom")
	hook.Fail["A"] = boom

	var buf bytes.Buffer
	d := NewDispatcher(hook, WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	errs := d.Dispatch(context.Background(), []Transition{Teardown("A"), Teardown("B")})

	require.Len(t, errs, 1)
	assert.True(t, IsHookError(errs[0]))
	assert.ErrorIs(t, errs[0], boom)
	var he *HookError
	require.ErrorAs(t, errs[0], &he)
	assert.Equal(t, "A", he.WorkflowID)
	assert.Equal(t, Cleanup, he.Kind)

	assert.Equal(t, []string{"A", "B"}, hook.Cleaned(), "a failure does not stop later transitions")
	assert.Contains(t, buf.String(), "trigger hook failed")
}

func TestDispatch_NilHook(t *testing.T) {
	d := NewDispatcher(nil)
	assert.Empty(t, d.Dispatch(context.Background(), []Transition{Teardown("A")}))
}

func TestLogHook(t *testing.T) {
	var buf bytes.Buffer
	h := LogHook{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	require.NoError(t, h.RegisterTrigger(context.Background(), "A", workflow.Node{ID: "t1", Data: map[string]any{"type": "manual"}}))
	require.NoError(t, h.CleanupTriggers(context.Background(), "A"))

	out := buf.String()
	assert.Contains(t, out, "register trigger")
	assert.Contains(t, out, "workflow_id=A")
	assert.Contains(t, out, "cleanup triggers")
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "register", Register.String())
	assert.Equal(t, "cleanup", Cleanup.String())
}
