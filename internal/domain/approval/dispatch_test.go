package approval

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEffects struct {
	mu       sync.Mutex
	calls    []string
	comments []string
	err      error
	block    chan struct{}
	entered  chan struct{}
}

func (r *recordingEffects) record(name, comments string) error {
	if r.entered != nil {
		r.entered <- struct{}{}
	}
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
	r.comments = append(r.comments, comments)
	return r.err
}

func (r *recordingEffects) Approve(ctx context.Context, stepID, comments string) error {
	return r.record("approve:"+stepID, comments)
}

func (r *recordingEffects) Reject(ctx context.Context, stepID, comments string) error {
	return r.record("reject:"+stepID, comments)
}

func (r *recordingEffects) SendBack(ctx context.Context, stepID, comments string) error {
	return r.record("sendback:"+stepID, comments)
}

type stubCompletion struct {
	done bool
	err  error
}

func (s stubCompletion) IsComplete(ctx context.Context, requisitionID string) (bool, error) {
	return s.done, s.err
}

func TestActionDispatcher_RoutesByType(t *testing.T) {
	tests := []struct {
		action   ApprovalAction
		comments string
		want     string
	}{
		{newAction(ActionApprove, "Approve", ""), "", "approve:step-1"},
		{newAction(ActionReject, "Reject", ""), "damaged stock", "reject:step-1"},
		{newAction(ActionSendBack, "Return", ""), "fix quantities", "sendback:step-1"},
	}

	for _, tt := range tests {
		t.Run(string(tt.action.Type), func(t *testing.T) {
			effects := &recordingEffects{}
			d := NewActionDispatcher(effects, nil)

			outcome, err := d.Dispatch(context.Background(), "req-1", "step-1", tt.action, tt.comments)
			require.NoError(t, err)
			assert.Equal(t, []string{tt.want}, effects.calls)
			assert.Equal(t, tt.action.Type, outcome.Action)
			assert.NotEmpty(t, outcome.Message())
		})
	}
}

func TestActionDispatcher_CommentsRequired(t *testing.T) {
	for _, typ := range []ActionType{ActionReject, ActionSendBack} {
		for _, comments := range []string{"", "   ", "\n\t"} {
			effects := &recordingEffects{}
			d := NewActionDispatcher(effects, nil)

			_, err := d.Dispatch(context.Background(), "req-1", "step-1", newAction(typ, "x", ""), comments)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.ErrorIs(t, err, ErrCommentsRequired)
			assert.Equal(t, "comments", verr.Field)
			assert.Empty(t, effects.calls, "no effect may run without comments")
		}
	}
}

func TestActionDispatcher_DisabledIsNoop(t *testing.T) {
	effects := &recordingEffects{}
	d := NewActionDispatcher(effects, nil)

	waiting := Decide(ItemStatusSummary{Total: 2, Pending: 2}, true, StageApproval, nil).Actions[0]
	_, err := d.Dispatch(context.Background(), "req-1", "step-1", waiting, "anything")

	assert.ErrorIs(t, err, ErrActionDisabled)
	assert.Empty(t, effects.calls)
}

func TestActionDispatcher_EffectFailure(t *testing.T) {
	boom := errors.New("service unavailable")
	effects := &recordingEffects{err: boom}
	d := NewActionDispatcher(effects, nil)

	_, err := d.Dispatch(context.Background(), "req-1", "step-9", newAction(ActionReject, "Reject", ""), "no budget")

	var failure *ActionFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, ActionReject, failure.Action)
	assert.Equal(t, "step-9", failure.StepID)
	assert.ErrorIs(t, err, boom)
	assert.False(t, d.Submitting("req-1"), "guard must be released after failure")
}

func TestActionDispatcher_CompletionOnlyForApprove(t *testing.T) {
	effects := &recordingEffects{}
	d := NewActionDispatcher(effects, stubCompletion{done: true})

	out, err := d.Dispatch(context.Background(), "req-1", "s", newAction(ActionApprove, "Approve", ""), "")
	require.NoError(t, err)
	assert.True(t, out.Completed)
	assert.Equal(t, "Requisition fully approved", out.Message())

	out, err = d.Dispatch(context.Background(), "req-1", "s", newAction(ActionReject, "Reject", ""), "x")
	require.NoError(t, err)
	assert.False(t, out.Completed)

	d = NewActionDispatcher(effects, stubCompletion{err: errors.New("lookup failed")})
	out, err = d.Dispatch(context.Background(), "req-1", "s", newAction(ActionApprove, "Approve", ""), "")
	require.NoError(t, err, "completion lookup only affects the message")
	assert.False(t, out.Completed)
}

func TestActionDispatcher_TrimsComments(t *testing.T) {
	effects := &recordingEffects{}
	d := NewActionDispatcher(effects, nil)

	_, err := d.Dispatch(context.Background(), "req-1", "s", newAction(ActionSendBack, "Return", ""), "  recount  ")
	require.NoError(t, err)
	assert.Equal(t, []string{"recount"}, effects.comments)
}

func TestActionDispatcher_OneInFlightPerRequisition(t *testing.T) {
	effects := &recordingEffects{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	d := NewActionDispatcher(effects, nil)
	approve := newAction(ActionApprove, "Approve", "")

	done := make(chan error, 1)
	go func() {
		_, err := d.Dispatch(context.Background(), "req-1", "s", approve, "")
		done <- err
	}()
	<-effects.entered

	assert.True(t, d.Submitting("req-1"))
	_, err := d.Dispatch(context.Background(), "req-1", "s", approve, "")
	assert.ErrorIs(t, err, ErrSubmissionInProgress)

	close(effects.block)
	require.NoError(t, <-done)
	assert.False(t, d.Submitting("req-1"))

	// other requisitions are unaffected
	effects.entered = nil
	_, err = d.Dispatch(context.Background(), "req-2", "s", approve, "")
	assert.NoError(t, err)
}

func TestActionDispatcher_UnknownType(t *testing.T) {
	d := NewActionDispatcher(&recordingEffects{}, nil)
	_, err := d.Dispatch(context.Background(), "req-1", "s", ApprovalAction{Type: "escalate"}, "")
	assert.ErrorIs(t, err, ErrUnknownAction)
}
