package core

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"caseflow/internal/types"
)

// Features is the snapshot of feature flags the filter was built with. It is
// copied at construction and never re-read.
type Features struct {
	PostHearingsEnabled  bool
	PostHearingsBEnabled bool
}

var alwaysNotifyEvents = []types.EventType{
	types.EventValidAppealCreated,
	types.EventAppealReceived,
	types.EventAppealWithdrawn,
	types.EventAppealLapsed,
	types.EventAppealDormant,
	types.EventAdjourned,
	types.EventDWPResponseReceived,
	types.EventEvidenceReceived,
	types.EventEvidenceReminder,
	types.EventPostponement,
	types.EventDecisionIssued,
	types.EventDirectionIssued,
	types.EventStruckOut,
	types.EventSubscriptionUpdated,
	types.EventUpdateOtherPartyData,
}

var postHearingsEvents = []types.EventType{
	types.EventActionPostHearingApplication,
	types.EventPostHearingRequest,
	types.EventSORWritten,
	types.EventSetAsideRequest,
	types.EventCorrectionRequest,
}

var postHearingsBEvents = []types.EventType{
	types.EventPermissionToAppealRequest,
	types.EventLibertyToApplyRequest,
	types.EventUpperTribunalDecision,
}

// Postponement actions that are notified through a different path.
var excludedPostponementActions = map[types.PostponementAction]struct{}{
	types.PostponementSendToJudge: {},
}

// Events whose notification depends on an appointee being newly added.
var appointeeEvents = map[types.EventType]struct{}{
	types.EventProvideAppointeeDetails: {},
	types.EventDeathOfAppellant:        {},
}

// EligibilityFilter is the coarse gate in front of the notification
// handlers. It decides from cross-cutting case state whether a transition
// produces any notification at all.
type EligibilityFilter struct {
	notify    map[types.EventType]struct{}
	processor Processor
	retry     RetryHandler
	logger    types.Logger
}

// NewEligibilityFilter builds a filter for the given feature snapshot.
func NewEligibilityFilter(features Features, processor Processor, retry RetryHandler, logger types.Logger) *EligibilityFilter {
	notify := make(map[types.EventType]struct{})
	add := func(events []types.EventType) {
		for _, e := range events {
			notify[e] = struct{}{}
		}
	}
	add(alwaysNotifyEvents)
	if features.PostHearingsEnabled {
		add(postHearingsEvents)
	}
	if features.PostHearingsBEnabled {
		add(postHearingsBEvents)
	}

	return &EligibilityFilter{
		notify:    notify,
		processor: processor,
		retry:     retry,
		logger:    logger,
	}
}

// IsEligible reports whether cb should produce outbound notifications.
func (f *EligibilityFilter) IsEligible(cb *types.Callback) bool {
	if cb == nil {
		return false
	}
	if _, ok := f.notify[cb.EventType]; ok {
		return true
	}

	switch cb.EventType {
	case types.EventActionPostponementRequest:
		action := types.PostponementAction(lookup(cb.Data(), types.FieldPostponementAction).String())
		_, excluded := excludedPostponementActions[action]
		return !excluded

	case types.EventHearingBooked:
		route := types.HearingRoute(lookup(cb.Data(), types.FieldHearingRoute).String())
		return route != types.HearingRouteGAPS
	}

	if _, ok := appointeeEvents[cb.EventType]; ok {
		return appointeeAdded(cb)
	}
	return false
}

// Handle runs the processor for an eligible message. Calling it for an
// ineligible message is a contract violation and fails with
// ErrCodeInvalidState.
//
// Delivery errors go to the retry handler and come back wrapped in a
// *DeliveryFailure. Any other processor error is returned unchanged.
func (f *EligibilityFilter) Handle(ctx context.Context, msg types.NotificationMessage) error {
	if !f.IsEligible(&msg.Callback) {
		return types.NewAppErrorWithDetails(
			types.ErrCodeInvalidState,
			fmt.Sprintf("event %s is not eligible for notification", msg.Callback.EventType),
			nil,
			map[string]any{
				"message_id": msg.MessageID,
				"case_id":    msg.Callback.CaseID(),
				"event_type": string(msg.Callback.EventType),
			},
		)
	}

	err := f.processor.Process(ctx, msg)
	if err == nil {
		return nil
	}
	if _, ok := DeliveryStatusOf(err); !ok {
		return err
	}

	state, attempt, retryErr := f.retry.HandleFailure(ctx, msg, err)
	if retryErr != nil {
		// Neither rescheduled nor reported; the transport must redeliver.
		return &DeliveryFailure{State: StateFailedTransient, Attempt: attempt, Err: fmt.Errorf("%w (retry handling failed: %v)", err, retryErr)}
	}
	return &DeliveryFailure{State: state, Attempt: attempt, Err: err}
}

// Filter is the check-then-handle entry used by the transport. It reports
// whether the message was handed to the processor.
func (f *EligibilityFilter) Filter(ctx context.Context, msg types.NotificationMessage) (bool, error) {
	if !f.IsEligible(&msg.Callback) {
		f.logger.Info("notification not eligible, skipping",
			"message_id", msg.MessageID,
			"case_id", msg.Callback.CaseID(),
			"event_type", string(msg.Callback.EventType),
		)
		return false, nil
	}
	return true, f.Handle(ctx, msg)
}

// appointeeAdded reports whether an appointee is present after the event and
// was absent or different before it.
func appointeeAdded(cb *types.Callback) bool {
	after := lookup(cb.Data(), types.FieldAppointee)
	if !present(after) {
		return false
	}
	before := lookup(cb.DataBefore(), types.FieldAppointee)
	if !present(before) {
		return true
	}
	return before.Raw != after.Raw
}

func present(r gjson.Result) bool {
	if !r.Exists() || r.Type == gjson.Null {
		return false
	}
	if r.IsObject() {
		return len(r.Map()) > 0
	}
	return r.String() != ""
}

// lookup reads a dotted path from case data. Maps marshal with sorted keys so
// Raw values of equal objects compare equal.
func lookup(data types.CaseData, path string) gjson.Result {
	if data == nil {
		return gjson.Result{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return gjson.Result{}
	}
	return gjson.GetBytes(raw, path)
}
