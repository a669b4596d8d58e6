package dispatch

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseflow/internal/types"
)

// recordingHandler is a configurable Handler that appends its name to a shared
// log when it runs.
type recordingHandler struct {
	name     string
	priority Priority
	phase    types.Phase
	events   []types.EventType // empty means any event

	run      *[]string
	mutate   func(types.CaseData)
	errMsg   string
	warnMsg  string
	fatalErr error

	canHandleCalls int
}

func (h *recordingHandler) Name() string       { return h.name }
func (h *recordingHandler) Priority() Priority { return h.priority }

func (h *recordingHandler) CanHandle(phase types.Phase, cb *types.Callback) bool {
	h.canHandleCalls++
	if phase != h.phase {
		return false
	}
	if len(h.events) == 0 {
		return true
	}
	for _, e := range h.events {
		if e == cb.EventType {
			return true
		}
	}
	return false
}

func (h *recordingHandler) Handle(_ context.Context, phase types.Phase, cb *types.Callback) (*Result, error) {
	if err := RequireCanHandle(h, phase, cb); err != nil {
		return nil, err
	}
	if h.run != nil {
		*h.run = append(*h.run, h.name)
	}
	if h.fatalErr != nil {
		return nil, h.fatalErr
	}
	data := cb.Data()
	if h.mutate != nil {
		h.mutate(data)
	}
	res := NewResult(data)
	if h.errMsg != "" {
		res.AddError(h.errMsg)
	}
	if h.warnMsg != "" {
		res.AddWarning(h.warnMsg)
	}
	return res, nil
}

func newCallback(event types.EventType, data types.CaseData) *types.Callback {
	return &types.Callback{
		EventType:   event,
		CaseDetails: types.CaseDetails{ID: 1001, Data: data},
	}
}

func TestDispatch_OrdersByPriority(t *testing.T) {
	var run []string
	handlers := []Handler{
		&recordingHandler{name: "latest", priority: PriorityLatest, phase: types.PhaseAboutToSubmit, run: &run},
		&recordingHandler{name: "earliest", priority: PriorityEarliest, phase: types.PhaseAboutToSubmit, run: &run},
		&recordingHandler{name: "late", priority: PriorityLate, phase: types.PhaseAboutToSubmit, run: &run},
	}

	d, err := New(handlers)
	require.NoError(t, err)

	_, err = d.Dispatch(context.Background(), types.PhaseAboutToSubmit, newCallback(types.EventCaseUpdated, types.CaseData{}))
	require.NoError(t, err)

	assert.Equal(t, []string{"earliest", "late", "latest"}, run)
}

func TestDispatch_SamePriorityKeepsRegistrationOrder(t *testing.T) {
	var run []string
	var handlers []Handler
	for i := 0; i < 5; i++ {
		handlers = append(handlers, &recordingHandler{
			name:     fmt.Sprintf("h%d", i),
			priority: PriorityLate,
			phase:    types.PhaseAboutToSubmit,
			run:      &run,
		})
	}
	handlers = append(handlers, &recordingHandler{name: "first", priority: PriorityEarly, phase: types.PhaseAboutToSubmit, run: &run})

	d, err := New(handlers)
	require.NoError(t, err)

	_, err = d.Dispatch(context.Background(), types.PhaseAboutToSubmit, newCallback(types.EventCaseUpdated, types.CaseData{}))
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "h0", "h1", "h2", "h3", "h4"}, run)
}

func TestDispatch_SkipsHandlersForOtherPhasesAndEvents(t *testing.T) {
	var run []string
	d, err := New([]Handler{
		&recordingHandler{name: "mid", priority: PriorityEarly, phase: types.PhaseMidEvent, run: &run},
		&recordingHandler{name: "withdrawn", priority: PriorityEarly, phase: types.PhaseAboutToSubmit,
			events: []types.EventType{types.EventAppealWithdrawn}, run: &run},
		&recordingHandler{name: "updated", priority: PriorityEarly, phase: types.PhaseAboutToSubmit,
			events: []types.EventType{types.EventCaseUpdated}, run: &run},
	})
	require.NoError(t, err)

	_, err = d.Dispatch(context.Background(), types.PhaseAboutToSubmit, newCallback(types.EventCaseUpdated, types.CaseData{}))
	require.NoError(t, err)

	assert.Equal(t, []string{"updated"}, run)
}

func TestDispatch_NoApplicableHandlersIsNoOp(t *testing.T) {
	d, err := New([]Handler{
		&recordingHandler{name: "mid", priority: PriorityEarly, phase: types.PhaseMidEvent},
	})
	require.NoError(t, err)

	data := types.CaseData{"caseReference": "SC001/26/00001", "nested": map[string]any{"k": "v"}}
	res, err := d.Dispatch(context.Background(), types.PhaseAboutToSubmit, newCallback(types.EventCaseUpdated, data))
	require.NoError(t, err)

	assert.Equal(t, types.CaseData{"caseReference": "SC001/26/00001", "nested": map[string]any{"k": "v"}}, res.Data)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Warnings)
	assert.NotNil(t, res.Errors, "errors should serialise as an empty list")
}

func TestDispatch_EmptyRegistry(t *testing.T) {
	d, err := New(nil)
	require.NoError(t, err)

	res, err := d.Dispatch(context.Background(), types.PhaseSubmitted, newCallback(types.EventCaseUpdated, types.CaseData{"a": "b"}))
	require.NoError(t, err)
	assert.Equal(t, "b", res.Data.String("a"))
	assert.Empty(t, res.Errors)
}

func TestDispatch_AccumulatesErrorsInOrder(t *testing.T) {
	const n = 4
	var handlers []Handler
	for i := 0; i < n; i++ {
		handlers = append(handlers, &recordingHandler{
			name:     fmt.Sprintf("h%d", i),
			priority: PriorityLate,
			phase:    types.PhaseAboutToSubmit,
			errMsg:   fmt.Sprintf("error from h%d", i),
		})
	}
	d, err := New(handlers)
	require.NoError(t, err)

	res, err := d.Dispatch(context.Background(), types.PhaseAboutToSubmit, newCallback(types.EventCaseUpdated, types.CaseData{}))
	require.NoError(t, err)

	require.Len(t, res.Errors, n)
	for i := 0; i < n; i++ {
		assert.Equal(t, fmt.Sprintf("error from h%d", i), res.Errors[i])
	}
}

func TestDispatch_DuplicateMessagesAcrossHandlersCollapse(t *testing.T) {
	d, err := New([]Handler{
		&recordingHandler{name: "a", priority: PriorityEarly, phase: types.PhaseAboutToSubmit,
			errMsg: "MRN date is required", warnMsg: "hearing not listed"},
		&recordingHandler{name: "b", priority: PriorityLate, phase: types.PhaseAboutToSubmit,
			errMsg: "appellant name is required", warnMsg: "hearing not listed"},
		&recordingHandler{name: "c", priority: PriorityLatest, phase: types.PhaseAboutToSubmit,
			errMsg: "MRN date is required"},
	})
	require.NoError(t, err)

	res, err := d.Dispatch(context.Background(), types.PhaseAboutToSubmit, newCallback(types.EventCaseUpdated, types.CaseData{}))
	require.NoError(t, err)

	assert.Equal(t, []string{"MRN date is required", "appellant name is required"}, res.Errors)
	assert.Equal(t, []string{"hearing not listed"}, res.Warnings)
}

func TestDispatch_ErrorsDoNotStopChain(t *testing.T) {
	var run []string
	d, err := New([]Handler{
		&recordingHandler{name: "fails", priority: PriorityEarliest, phase: types.PhaseAboutToSubmit, run: &run,
			errMsg: "appellant name is required",
			mutate: func(d types.CaseData) { d["checked"] = "yes" }},
		&recordingHandler{name: "later", priority: PriorityLatest, phase: types.PhaseAboutToSubmit, run: &run,
			warnMsg: "no MRN date"},
	})
	require.NoError(t, err)

	res, err := d.Dispatch(context.Background(), types.PhaseAboutToSubmit, newCallback(types.EventCaseUpdated, types.CaseData{}))
	require.NoError(t, err)

	assert.Equal(t, []string{"fails", "later"}, run)
	assert.Equal(t, []string{"appellant name is required"}, res.Errors)
	assert.Equal(t, []string{"no MRN date"}, res.Warnings)
	assert.Equal(t, "yes", res.Data.String("checked"))
}

func TestDispatch_HandlersObservePreviousMutations(t *testing.T) {
	var seen string
	first := &recordingHandler{name: "first", priority: PriorityEarly, phase: types.PhaseAboutToSubmit,
		mutate: func(d types.CaseData) { d["dwpState"] = "withdrawn" }}
	second := &recordingHandler{name: "second", priority: PriorityLate, phase: types.PhaseAboutToSubmit,
		mutate: func(d types.CaseData) { seen = d.String("dwpState") }}

	// Registered in reverse to prove order comes from priority, not the slice.
	d, err := New([]Handler{second, first})
	require.NoError(t, err)

	_, err = d.Dispatch(context.Background(), types.PhaseAboutToSubmit, newCallback(types.EventAppealWithdrawn, types.CaseData{}))
	require.NoError(t, err)
	assert.Equal(t, "withdrawn", seen)
}

func TestDispatch_FatalErrorAbortsChain(t *testing.T) {
	var run []string
	boom := errors.New("provider exploded")
	d, err := New([]Handler{
		&recordingHandler{name: "a", priority: PriorityEarliest, phase: types.PhaseNotification, run: &run, fatalErr: boom},
		&recordingHandler{name: "b", priority: PriorityLatest, phase: types.PhaseNotification, run: &run},
	})
	require.NoError(t, err)

	res, err := d.Dispatch(context.Background(), types.PhaseNotification, newCallback(types.EventHearingBooked, types.CaseData{}))
	assert.Nil(t, res)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a"}, run)
}

func TestDispatch_RejectsNilCallbackAndUnknownPhase(t *testing.T) {
	d, err := New(nil)
	require.NoError(t, err)

	_, err = d.Dispatch(context.Background(), types.PhaseMidEvent, nil)
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeNullRequiredField, appErr.Code)

	_, err = d.Dispatch(context.Background(), types.Phase("LUNCH"), newCallback(types.EventCaseUpdated, nil))
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationInvalidPhase, appErr.Code)
}

type nilResultHandler struct{}

func (nilResultHandler) Priority() Priority                          { return PriorityEarly }
func (nilResultHandler) CanHandle(types.Phase, *types.Callback) bool { return true }
func (nilResultHandler) Handle(context.Context, types.Phase, *types.Callback) (*Result, error) {
	return nil, nil
}

func TestDispatch_NilResultIsContractViolation(t *testing.T) {
	d, err := New([]Handler{nilResultHandler{}})
	require.NoError(t, err)

	_, err = d.Dispatch(context.Background(), types.PhaseMidEvent, newCallback(types.EventCaseUpdated, nil))
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeNullRequiredField, appErr.Code)
	assert.Contains(t, appErr.Message, "dispatch.nilResultHandler")
}

func TestNew_RejectsInvalidHandlers(t *testing.T) {
	_, err := New([]Handler{nil})
	assert.Error(t, err)

	_, err = New([]Handler{&recordingHandler{name: "bad", priority: Priority(42)}})
	assert.ErrorContains(t, err, "undeclared priority")
}

func TestCanHandle_IsIdempotent(t *testing.T) {
	h := &recordingHandler{name: "x", priority: PriorityEarly, phase: types.PhaseAboutToSubmit,
		events: []types.EventType{types.EventCaseUpdated}}
	cb := newCallback(types.EventCaseUpdated, types.CaseData{"a": "b"})
	before := cb.Data().Clone()

	first := h.CanHandle(types.PhaseAboutToSubmit, cb)
	second := h.CanHandle(types.PhaseAboutToSubmit, cb)

	assert.Equal(t, first, second)
	assert.Equal(t, before, cb.Data())
}

func TestHandle_BypassingSelectionFailsFast(t *testing.T) {
	h := &recordingHandler{name: "withdrawal", priority: PriorityEarly, phase: types.PhaseAboutToSubmit,
		events: []types.EventType{types.EventAppealWithdrawn}}
	cb := newCallback(types.EventCaseUpdated, types.CaseData{})

	res, err := h.Handle(context.Background(), types.PhaseAboutToSubmit, cb)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, types.ErrInvalidInvocation)
}

func TestDispatcher_Len(t *testing.T) {
	d, err := New([]Handler{
		&recordingHandler{name: "a", priority: PriorityEarly},
		&recordingHandler{name: "b", priority: PriorityLate},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, d.Len())
}
