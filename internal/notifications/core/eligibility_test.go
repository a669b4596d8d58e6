package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseflow/internal/types"
)

func newTestFilter(features Features, proc Processor, retry RetryHandler) *EligibilityFilter {
	return NewEligibilityFilter(features, proc, retry, &mockLogger{})
}

func hearingData(route types.HearingRoute) types.CaseData {
	return types.CaseData{
		"schedulingAndListingFields": map[string]any{"hearingRoute": string(route)},
	}
}

func postponementData(action types.PostponementAction) types.CaseData {
	return types.CaseData{
		"postponementRequest": map[string]any{"actionPostponementRequestSelected": string(action)},
	}
}

func appointeeData(name string) types.CaseData {
	return types.CaseData{
		"appeal": map[string]any{
			"appellant": map[string]any{
				"appointee": map[string]any{"name": map[string]any{"firstName": name}},
			},
		},
	}
}

func TestIsEligible_LiteralScenarios(t *testing.T) {
	f := newTestFilter(Features{}, &mockProcessor{}, &mockRetryHandler{})

	tests := []struct {
		name  string
		event types.EventType
		data  types.CaseData
		want  bool
	}{
		{"hearing booked on legacy route", types.EventHearingBooked, hearingData(types.HearingRouteGAPS), false},
		{"hearing booked on list assist", types.EventHearingBooked, hearingData(types.HearingRouteListAssist), true},
		{"postponement sent to judge", types.EventActionPostponementRequest, postponementData(types.PostponementSendToJudge), false},
		{"postponement any other action", types.EventActionPostponementRequest, postponementData("anyOtherAction"), true},
		{"postponement granted", types.EventActionPostponementRequest, postponementData(types.PostponementGrant), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := notificationMessage(tt.event, tt.data)
			assert.Equal(t, tt.want, f.IsEligible(&msg.Callback))
		})
	}
}

func TestIsEligible_HearingBookedWithoutRoute(t *testing.T) {
	f := newTestFilter(Features{}, &mockProcessor{}, &mockRetryHandler{})
	msg := notificationMessage(types.EventHearingBooked, types.CaseData{})
	assert.True(t, f.IsEligible(&msg.Callback), "only the legacy route is excluded")
}

func TestIsEligible_AlwaysNotifySet(t *testing.T) {
	f := newTestFilter(Features{}, &mockProcessor{}, &mockRetryHandler{})
	for _, e := range alwaysNotifyEvents {
		msg := notificationMessage(e, types.CaseData{})
		assert.True(t, f.IsEligible(&msg.Callback), "event %s", e)
	}

	msg := notificationMessage(types.EventCaseUpdated, types.CaseData{})
	assert.False(t, f.IsEligible(&msg.Callback))
	assert.False(t, f.IsEligible(nil))
}

func TestIsEligible_FeatureSets(t *testing.T) {
	off := newTestFilter(Features{}, &mockProcessor{}, &mockRetryHandler{})
	onA := newTestFilter(Features{PostHearingsEnabled: true}, &mockProcessor{}, &mockRetryHandler{})
	onB := newTestFilter(Features{PostHearingsBEnabled: true}, &mockProcessor{}, &mockRetryHandler{})

	setAside := notificationMessage(types.EventSetAsideRequest, nil)
	liberty := notificationMessage(types.EventLibertyToApplyRequest, nil)

	assert.False(t, off.IsEligible(&setAside.Callback))
	assert.False(t, off.IsEligible(&liberty.Callback))

	assert.True(t, onA.IsEligible(&setAside.Callback))
	assert.False(t, onA.IsEligible(&liberty.Callback))

	assert.False(t, onB.IsEligible(&setAside.Callback))
	assert.True(t, onB.IsEligible(&liberty.Callback))
}

func TestIsEligible_AppointeeDiff(t *testing.T) {
	f := newTestFilter(Features{}, &mockProcessor{}, &mockRetryHandler{})

	tests := []struct {
		name   string
		event  types.EventType
		before types.CaseData
		after  types.CaseData
		want   bool
	}{
		{"added", types.EventProvideAppointeeDetails, types.CaseData{}, appointeeData("Ann"), true},
		{"no before snapshot", types.EventDeathOfAppellant, nil, appointeeData("Ann"), true},
		{"changed", types.EventProvideAppointeeDetails, appointeeData("Ann"), appointeeData("Bob"), true},
		{"unchanged", types.EventProvideAppointeeDetails, appointeeData("Ann"), appointeeData("Ann"), false},
		{"absent after", types.EventDeathOfAppellant, appointeeData("Ann"), types.CaseData{}, false},
		{"other event", types.EventCaseUpdated, types.CaseData{}, appointeeData("Ann"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := notificationMessage(tt.event, tt.after)
			if tt.before != nil {
				msg.Callback.CaseDetailsBefore = &types.CaseDetails{ID: msg.Callback.CaseID(), Data: tt.before}
			}
			assert.Equal(t, tt.want, f.IsEligible(&msg.Callback))
		})
	}
}

func TestHandle_IneligibleFailsFast(t *testing.T) {
	proc := &mockProcessor{}
	f := newTestFilter(Features{}, proc, &mockRetryHandler{})

	err := f.Handle(context.Background(), notificationMessage(types.EventHearingBooked, hearingData(types.HearingRouteGAPS)))
	assert.ErrorIs(t, err, types.ErrInvalidState)
	assert.Empty(t, proc.calls, "processor must not run for ineligible messages")
}

func TestHandle_InvokesProcessorOnce(t *testing.T) {
	proc := &mockProcessor{}
	retry := &mockRetryHandler{}
	f := newTestFilter(Features{}, proc, retry)

	err := f.Handle(context.Background(), notificationMessage(types.EventAppealReceived, types.CaseData{}))
	require.NoError(t, err)
	assert.Len(t, proc.calls, 1)
	assert.Zero(t, retry.calls)
}

func TestHandle_ForwardsDeliveryErrorsAndReturnsThem(t *testing.T) {
	deliveryErr := &statusError{status: 429}
	proc := &mockProcessor{errs: []error{deliveryErr}}
	retry := &mockRetryHandler{state: StateRescheduled}
	f := newTestFilter(Features{}, proc, retry)

	err := f.Handle(context.Background(), notificationMessage(types.EventAppealReceived, types.CaseData{}))
	require.Error(t, err)
	assert.Equal(t, 1, retry.calls)
	assert.ErrorIs(t, err, deliveryErr, "the delivery error must be re-returned")

	var df *DeliveryFailure
	require.ErrorAs(t, err, &df)
	assert.Equal(t, StateRescheduled, df.State)
	assert.True(t, df.Handled())
}

func TestHandle_RetryHandlingFailureIsNotHandled(t *testing.T) {
	proc := &mockProcessor{errs: []error{&statusError{status: 503}}}
	retry := &mockRetryHandler{state: StateFailedTransient, err: errors.New("sqs down")}
	f := newTestFilter(Features{}, proc, retry)

	err := f.Handle(context.Background(), notificationMessage(types.EventAppealReceived, types.CaseData{}))
	var df *DeliveryFailure
	require.ErrorAs(t, err, &df)
	assert.False(t, df.Handled())
}

func TestHandle_NonDeliveryErrorsBypassRetry(t *testing.T) {
	dbErr := types.NewAppError(types.ErrCodeInternalDB, "ledger unavailable", nil)
	proc := &mockProcessor{errs: []error{dbErr}}
	retry := &mockRetryHandler{}
	f := newTestFilter(Features{}, proc, retry)

	err := f.Handle(context.Background(), notificationMessage(types.EventAppealReceived, types.CaseData{}))
	assert.Equal(t, dbErr, err)
	assert.Zero(t, retry.calls)
}

func TestFilter_SkipsIneligible(t *testing.T) {
	proc := &mockProcessor{}
	f := newTestFilter(Features{}, proc, &mockRetryHandler{})

	handled, err := f.Filter(context.Background(), notificationMessage(types.EventCaseUpdated, types.CaseData{}))
	require.NoError(t, err)
	assert.False(t, handled)
	assert.Empty(t, proc.calls)

	handled, err = f.Filter(context.Background(), notificationMessage(types.EventHearingBooked, hearingData(types.HearingRouteListAssist)))
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Len(t, proc.calls, 1)
}
