package dispatch

import "caseflow/internal/types"

// Result is the outcome of one handler, and of a whole dispatch once folded.
// Errors and Warnings are ordered sets: insertion order is kept and an
// identical message is recorded once.
type Result struct {
	Data     types.CaseData `json:"data"`
	Errors   []string       `json:"errors"`
	Warnings []string       `json:"warnings"`
}

// NewResult returns a Result carrying data with empty error and warning sets.
func NewResult(data types.CaseData) *Result {
	return &Result{
		Data:     data,
		Errors:   []string{},
		Warnings: []string{},
	}
}

// AddError appends a user-facing validation error.
func (r *Result) AddError(msg string) {
	r.Errors = appendUnique(r.Errors, msg)
}

// AddWarning appends a user-facing warning.
func (r *Result) AddWarning(msg string) {
	r.Warnings = appendUnique(r.Warnings, msg)
}

// HasErrors reports whether the platform must reject the transition.
func (r *Result) HasErrors() bool {
	return len(r.Errors) > 0
}

// Blocking reports whether the transition cannot proceed: any error blocks,
// and warnings block unless the user confirmed them.
func (r *Result) Blocking(ignoreWarnings bool) bool {
	if r.HasErrors() {
		return true
	}
	return len(r.Warnings) > 0 && !ignoreWarnings
}

// absorb folds a handler's result into r. Data is replaced by the handler's
// output; messages accumulate.
func (r *Result) absorb(other *Result) {
	r.Data = other.Data
	for _, e := range other.Errors {
		r.AddError(e)
	}
	for _, w := range other.Warnings {
		r.AddWarning(w)
	}
}

func appendUnique(list []string, msg string) []string {
	for _, existing := range list {
		if existing == msg {
			return list
		}
	}
	return append(list, msg)
}
