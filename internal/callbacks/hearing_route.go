package callbacks

import (
	"context"

	"caseflow/internal/dispatch"
	"caseflow/internal/types"
)

// HearingRouteHandler defaults the hearing route on new and updated appeals
// so that later rules and the notification filter can rely on it.
type HearingRouteHandler struct {
	Default types.HearingRoute
}

func (h HearingRouteHandler) Name() string                { return "hearing-route-default" }
func (h HearingRouteHandler) Priority() dispatch.Priority { return dispatch.PriorityEarliest }

func (h HearingRouteHandler) CanHandle(phase types.Phase, cb *types.Callback) bool {
	if phase != types.PhaseAboutToSubmit {
		return false
	}
	if cb.EventType != types.EventValidAppealCreated && cb.EventType != types.EventCaseUpdated {
		return false
	}
	return field(cb.Data(), types.FieldHearingRoute).String() == ""
}

func (h HearingRouteHandler) Handle(_ context.Context, phase types.Phase, cb *types.Callback) (*dispatch.Result, error) {
	if err := dispatch.RequireCanHandle(h, phase, cb); err != nil {
		return nil, err
	}
	route := h.Default
	if route == "" {
		route = types.HearingRouteListAssist
	}
	data := cb.Data()
	if data == nil {
		data = types.CaseData{}
	}
	setField(data, types.FieldHearingRoute, string(route))
	return dispatch.NewResult(data), nil
}
