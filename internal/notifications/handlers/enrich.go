package handlers

import (
	"context"
	"strconv"

	"caseflow/internal/dispatch"
	"caseflow/internal/types"
)

// ReferenceHandler makes sure the case reference used in provider
// references and personalisation is present, falling back to the case ID.
// It runs first so later handlers see the filled-in data.
type ReferenceHandler struct{}

func (ReferenceHandler) Name() string                { return "notification-reference" }
func (ReferenceHandler) Priority() dispatch.Priority { return dispatch.PriorityEarliest }

func (ReferenceHandler) CanHandle(phase types.Phase, cb *types.Callback) bool {
	return phase == types.PhaseNotification && cb.Data().String(types.FieldCaseReference) == ""
}

func (h ReferenceHandler) Handle(_ context.Context, phase types.Phase, cb *types.Callback) (*dispatch.Result, error) {
	if err := dispatch.RequireCanHandle(h, phase, cb); err != nil {
		return nil, err
	}
	data := cb.Data()
	if data == nil {
		data = types.CaseData{}
	}
	data[types.FieldCaseReference] = strconv.FormatInt(cb.CaseID(), 10)
	return dispatch.NewResult(data), nil
}
