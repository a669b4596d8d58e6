package types

import (
	"encoding/json"
	"fmt"
)

// Phase identifies the stage of the case-event lifecycle a Callback represents.
type Phase string

const (
	PhaseAboutToStart  Phase = "ABOUT_TO_START"
	PhaseMidEvent      Phase = "MID_EVENT"
	PhaseAboutToSubmit Phase = "ABOUT_TO_SUBMIT"
	PhaseSubmitted     Phase = "SUBMITTED"

	// PhaseNotification is the single implicit phase of the notification
	// pipeline.
	PhaseNotification Phase = "NOTIFICATION"
)

// Valid reports whether p is one of the known phases.
func (p Phase) Valid() bool {
	switch p {
	case PhaseAboutToStart, PhaseMidEvent, PhaseAboutToSubmit, PhaseSubmitted, PhaseNotification:
		return true
	}
	return false
}

// CaseData is the opaque case payload keyed by field name. Values are whatever
// the case platform sent: strings, numbers, bools, nested maps and slices.
type CaseData map[string]any

// Clone returns a deep copy of the data by round-tripping through JSON. The
// payload originates as JSON so no information is lost.
func (d CaseData) Clone() CaseData {
	if d == nil {
		return nil
	}
	raw, err := json.Marshal(d)
	if err != nil {
		// Only reachable when a handler stored a non-JSON value.
		panic(fmt.Sprintf("case data is not JSON serialisable: %v", err))
	}
	var out CaseData
	_ = json.Unmarshal(raw, &out)
	return out
}

// String returns the string value stored at key, or "" if absent or not a string.
func (d CaseData) String(key string) string {
	s, _ := d[key].(string)
	return s
}

// Map returns the nested object stored at key, or nil.
func (d CaseData) Map(key string) CaseData {
	switch v := d[key].(type) {
	case map[string]any:
		return CaseData(v)
	case CaseData:
		return v
	}
	return nil
}

// CaseDetails is the case envelope delivered by the case platform.
type CaseDetails struct {
	ID           int64    `json:"id"`
	Jurisdiction string   `json:"jurisdiction,omitempty"`
	State        string   `json:"state,omitempty"`
	CaseTypeID   string   `json:"case_type_id,omitempty"`
	Data         CaseData `json:"case_data"`
}

// Callback is one case-event invocation. It is built once per inbound request
// or message and discarded once the response is written or the message is
// acknowledged.
type Callback struct {
	EventType         EventType    `json:"event_id" validate:"required"`
	CaseDetails       CaseDetails  `json:"case_details" validate:"required"`
	CaseDetailsBefore *CaseDetails `json:"case_details_before,omitempty"`
	IgnoreWarnings    bool         `json:"ignore_warning"`
	PageID            string       `json:"page_id,omitempty"`
}

// Clone returns a copy of c whose case data, before and after, shares no
// maps with c.
func (c Callback) Clone() Callback {
	out := c
	out.CaseDetails.Data = c.CaseDetails.Data.Clone()
	if c.CaseDetailsBefore != nil {
		before := *c.CaseDetailsBefore
		before.Data = c.CaseDetailsBefore.Data.Clone()
		out.CaseDetailsBefore = &before
	}
	return out
}

// CaseID returns the identifier of the case the callback is about.
func (c *Callback) CaseID() int64 {
	return c.CaseDetails.ID
}

// Data returns the current case payload.
func (c *Callback) Data() CaseData {
	return c.CaseDetails.Data
}

// DataBefore returns the pre-event snapshot, or nil if the platform did not
// send one.
func (c *Callback) DataBefore() CaseData {
	if c.CaseDetailsBefore == nil {
		return nil
	}
	return c.CaseDetailsBefore.Data
}
