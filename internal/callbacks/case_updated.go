package callbacks

import (
	"context"
	"time"

	"caseflow/internal/dispatch"
	"caseflow/internal/types"
)

// CaseUpdatedValidator checks the appeal details entered on a case update.
// Missing mandatory details are errors; a missing MRN date is a warning the
// caseworker may confirm.
type CaseUpdatedValidator struct {
	Clock types.Clock
}

func (v CaseUpdatedValidator) Name() string                { return "case-updated-validation" }
func (v CaseUpdatedValidator) Priority() dispatch.Priority { return dispatch.PriorityEarly }

func (v CaseUpdatedValidator) CanHandle(phase types.Phase, cb *types.Callback) bool {
	return cb.EventType == types.EventCaseUpdated &&
		(phase == types.PhaseMidEvent || phase == types.PhaseAboutToSubmit)
}

func (v CaseUpdatedValidator) Handle(_ context.Context, phase types.Phase, cb *types.Callback) (*dispatch.Result, error) {
	if err := dispatch.RequireCanHandle(v, phase, cb); err != nil {
		return nil, err
	}
	data := cb.Data()
	result := dispatch.NewResult(data)

	name := field(data, types.FieldAppellantName)
	if name.Get("firstName").String() == "" || name.Get("lastName").String() == "" {
		result.AddError("Appellant first and last name are required")
	}

	mrn := field(data, types.FieldMRNDate).String()
	switch {
	case mrn == "":
		result.AddWarning("MRN date is missing")
	default:
		date, err := time.Parse(time.DateOnly, mrn)
		if err != nil {
			result.AddError("MRN date must be a valid date")
		} else if date.After(v.now()) {
			result.AddError("MRN date cannot be in the future")
		}
	}
	return result, nil
}

func (v CaseUpdatedValidator) now() time.Time {
	if v.Clock == nil {
		return time.Now().UTC()
	}
	return v.Clock.Now()
}
