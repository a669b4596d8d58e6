package callbacks

import (
	"context"

	"caseflow/internal/dispatch"
	"caseflow/internal/types"
)

const dwpStateWithdrawn = "withdrawn"

// WithdrawalHandler moves a withdrawn appeal's DWP state. It runs late in
// the chain and still runs when earlier handlers reported errors; the
// platform discards the data of a rejected submission. A booked hearing is
// flagged so the clerk can cancel it.
type WithdrawalHandler struct{}

func (WithdrawalHandler) Name() string                { return "appeal-withdrawal" }
func (WithdrawalHandler) Priority() dispatch.Priority { return dispatch.PriorityLate }

func (WithdrawalHandler) CanHandle(phase types.Phase, cb *types.Callback) bool {
	return phase == types.PhaseAboutToSubmit && cb.EventType == types.EventAppealWithdrawn
}

func (h WithdrawalHandler) Handle(_ context.Context, phase types.Phase, cb *types.Callback) (*dispatch.Result, error) {
	if err := dispatch.RequireCanHandle(h, phase, cb); err != nil {
		return nil, err
	}
	data := cb.Data()
	if data == nil {
		data = types.CaseData{}
	}
	result := dispatch.NewResult(data)

	if field(data, "hearings.#").Int() > 0 {
		result.AddWarning("The appeal has a listed hearing that must be cancelled")
	}
	data[types.FieldDWPState] = dwpStateWithdrawn
	return result, nil
}
