package callbacks

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseflow/internal/dispatch"
	"caseflow/internal/external"
	"caseflow/internal/types"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type nopLogger struct{}

func (nopLogger) Info(string, ...any)        {}
func (nopLogger) Warn(string, ...any)        {}
func (nopLogger) Error(string, ...any)       {}
func (l nopLogger) With(...any) types.Logger { return l }

func cb(event types.EventType, data types.CaseData) *types.Callback {
	return &types.Callback{EventType: event, CaseDetails: types.CaseDetails{ID: 77, Data: data}}
}

func appellant(first, last, mrn string) types.CaseData {
	appeal := map[string]any{
		"appellant": map[string]any{"name": map[string]any{"firstName": first, "lastName": last}},
	}
	if mrn != "" {
		appeal["mrnDetails"] = map[string]any{"mrnDate": mrn}
	}
	return types.CaseData{"appeal": appeal}
}

func TestHearingRouteHandler(t *testing.T) {
	h := HearingRouteHandler{}
	c := cb(types.EventValidAppealCreated, types.CaseData{})

	require.True(t, h.CanHandle(types.PhaseAboutToSubmit, c))
	assert.False(t, h.CanHandle(types.PhaseSubmitted, c))
	assert.False(t, h.CanHandle(types.PhaseAboutToSubmit, cb(types.EventAppealWithdrawn, nil)))

	res, err := h.Handle(context.Background(), types.PhaseAboutToSubmit, c)
	require.NoError(t, err)
	assert.Equal(t, "listAssist", field(res.Data, types.FieldHearingRoute).String())

	// Once set, the handler no longer applies.
	assert.False(t, h.CanHandle(types.PhaseAboutToSubmit, cb(types.EventCaseUpdated, res.Data)))
}

func TestHearingRouteHandler_KeepsSiblingFields(t *testing.T) {
	data := types.CaseData{"schedulingAndListingFields": map[string]any{"hearingWindow": "2026-06"}}
	res, err := HearingRouteHandler{Default: types.HearingRouteGAPS}.
		Handle(context.Background(), types.PhaseAboutToSubmit, cb(types.EventCaseUpdated, data))
	require.NoError(t, err)
	assert.Equal(t, "gaps", field(res.Data, types.FieldHearingRoute).String())
	assert.Equal(t, "2026-06", field(res.Data, "schedulingAndListingFields.hearingWindow").String())
}

func TestCaseUpdatedValidator(t *testing.T) {
	v := CaseUpdatedValidator{Clock: fixedClock{time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)}}

	tests := []struct {
		name         string
		data         types.CaseData
		wantErrors   []string
		wantWarnings []string
	}{
		{"valid", appellant("Ada", "Lovelace", "2026-01-10"), nil, nil},
		{"missing name", appellant("Ada", "", "2026-01-10"), []string{"Appellant first and last name are required"}, nil},
		{"missing mrn", appellant("Ada", "Lovelace", ""), nil, []string{"MRN date is missing"}},
		{"future mrn", appellant("Ada", "Lovelace", "2026-05-01"), []string{"MRN date cannot be in the future"}, nil},
		{"bad mrn", appellant("Ada", "Lovelace", "01/01/2026"), []string{"MRN date must be a valid date"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := v.Handle(context.Background(), types.PhaseAboutToSubmit, cb(types.EventCaseUpdated, tt.data))
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.wantErrors, res.Errors)
			assert.ElementsMatch(t, tt.wantWarnings, res.Warnings)
		})
	}
}

func TestWithdrawalHandler(t *testing.T) {
	h := WithdrawalHandler{}
	data := types.CaseData{"hearings": []any{map[string]any{"id": "h1"}}}

	res, err := h.Handle(context.Background(), types.PhaseAboutToSubmit, cb(types.EventAppealWithdrawn, data))
	require.NoError(t, err)
	assert.Equal(t, "withdrawn", res.Data.String(types.FieldDWPState))
	assert.Len(t, res.Warnings, 1)

	_, err = h.Handle(context.Background(), types.PhaseMidEvent, cb(types.EventAppealWithdrawn, data))
	assert.ErrorIs(t, err, types.ErrInvalidInvocation)
}

// rejectingHandler reports a validation error for every about-to-submit
// callback.
type rejectingHandler struct{ msg string }

func (rejectingHandler) Priority() dispatch.Priority { return dispatch.PriorityEarliest }
func (rejectingHandler) CanHandle(phase types.Phase, _ *types.Callback) bool {
	return phase == types.PhaseAboutToSubmit
}
func (h rejectingHandler) Handle(_ context.Context, _ types.Phase, cb *types.Callback) (*dispatch.Result, error) {
	res := dispatch.NewResult(cb.Data())
	res.AddError(h.msg)
	return res, nil
}

func TestWithdrawalHandler_RunsAfterValidationErrors(t *testing.T) {
	d, err := dispatch.New([]dispatch.Handler{WithdrawalHandler{}, rejectingHandler{msg: "Reason for withdrawal is required"}})
	require.NoError(t, err)

	res, err := d.Dispatch(context.Background(), types.PhaseAboutToSubmit, cb(types.EventAppealWithdrawn, types.CaseData{}))
	require.NoError(t, err)
	assert.Equal(t, []string{"Reason for withdrawal is required"}, res.Errors)
	assert.Equal(t, "withdrawn", res.Data.String(types.FieldDWPState))
	assert.True(t, res.Blocking(true))
}

func TestSendToDWPHandler(t *testing.T) {
	store := external.NewMemoryCaseStore(testSlog())
	store.Put(77, types.CaseData{"caseReference": "SC77"})
	h := &SendToDWPHandler{Store: store, Logger: nopLogger{}}

	res, err := h.Handle(context.Background(), types.PhaseSubmitted, cb(types.EventValidAppealCreated, nil))
	require.NoError(t, err)
	assert.Equal(t, "unregistered", res.Data.String(types.FieldDWPState))
	assert.Equal(t, "SC77", res.Data.String(types.FieldCaseReference))
}

func TestSendToDWPHandler_StoreFailureIsFatal(t *testing.T) {
	h := &SendToDWPHandler{Store: failingStore{}, Logger: nopLogger{}}

	_, err := h.Handle(context.Background(), types.PhaseSubmitted, cb(types.EventValidAppealCreated, nil))
	assert.ErrorIs(t, err, errStoreDown)
}

var errStoreDown = errors.New("store down")

type failingStore struct{}

func (failingStore) ReadCase(context.Context, int64) (types.CaseData, error) {
	return nil, errStoreDown
}
func (failingStore) UpdateCase(context.Context, int64, types.EventType, func(types.CaseData)) (types.CaseData, error) {
	return nil, errStoreDown
}

// The registered handlers run in priority order regardless of slice order.
func TestAboutToSubmitChain(t *testing.T) {
	d, err := dispatch.New([]dispatch.Handler{
		CaseUpdatedValidator{Clock: fixedClock{time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)}},
		WithdrawalHandler{},
		HearingRouteHandler{},
	})
	require.NoError(t, err)

	res, err := d.Dispatch(context.Background(), types.PhaseAboutToSubmit,
		cb(types.EventCaseUpdated, appellant("Ada", "Lovelace", "")))
	require.NoError(t, err)
	assert.Equal(t, "listAssist", field(res.Data, types.FieldHearingRoute).String())
	assert.Equal(t, []string{"MRN date is missing"}, res.Warnings)
	assert.True(t, res.Blocking(false))
	assert.False(t, res.Blocking(true))
}

func testSlog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
