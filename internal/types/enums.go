package types

// EventType identifies the business event behind a callback. The set is
// open-ended; consumers compare by value.
type EventType string

const (
	EventValidAppealCreated        EventType = "validAppealCreated"
	EventAppealReceived            EventType = "appealReceived"
	EventCaseUpdated               EventType = "caseUpdated"
	EventAppealWithdrawn           EventType = "appealWithdrawn"
	EventAppealLapsed              EventType = "appealLapsed"
	EventAppealDormant             EventType = "appealDormant"
	EventAdjourned                 EventType = "adjourned"
	EventDWPResponseReceived       EventType = "responseReceived"
	EventEvidenceReceived          EventType = "evidenceReceived"
	EventEvidenceReminder          EventType = "evidenceReminder"
	EventHearingBooked             EventType = "hearingBooked"
	EventPostponement              EventType = "postponed"
	EventActionPostponementRequest EventType = "actionPostponementRequest"
	EventProvideAppointeeDetails   EventType = "provideAppointeeDetails"
	EventDeathOfAppellant          EventType = "deathOfAppellant"
	EventDecisionIssued            EventType = "decisionIssued"
	EventDirectionIssued           EventType = "directionIssued"
	EventStruckOut                 EventType = "struckOut"
	EventSubscriptionUpdated       EventType = "subscriptionUpdated"
	EventUpdateOtherPartyData      EventType = "updateOtherPartyData"
	EventSendToDWP                 EventType = "sendToDwp"

	// Post-hearings events, active only when the corresponding feature is on.
	EventActionPostHearingApplication EventType = "actionPostHearingApplication"
	EventPostHearingRequest           EventType = "postHearingRequest"
	EventSORWritten                   EventType = "sORWritten"
	EventPermissionToAppealRequest    EventType = "permissionToAppealRequest"
	EventLibertyToApplyRequest        EventType = "libertyToApplyRequest"
	EventCorrectionRequest            EventType = "correctionRequest"
	EventSetAsideRequest              EventType = "setAsideRequest"
	EventUpperTribunalDecision        EventType = "upperTribunalDecision"
)

// HearingRoute names the system that lists a case for hearing.
type HearingRoute string

const (
	// HearingRouteGAPS is the legacy listing system.
	HearingRouteGAPS       HearingRoute = "gaps"
	HearingRouteListAssist HearingRoute = "listAssist"
)

// PostponementAction is the action chosen on an ACTION_POSTPONEMENT_REQUEST.
type PostponementAction string

const (
	PostponementGrant          PostponementAction = "grant"
	PostponementRefuse         PostponementAction = "refuse"
	PostponementSendToJudge    PostponementAction = "sendToJudge"
	PostponementRefuseOnTheDay PostponementAction = "refuseOnTheDay"
)

// Well-known case-data field paths used by the dispatch core. Paths use the
// gjson dot syntax.
const (
	FieldHearingRoute       = "schedulingAndListingFields.hearingRoute"
	FieldPostponementAction = "postponementRequest.actionPostponementRequestSelected"
	FieldAppointee          = "appeal.appellant.appointee"
	FieldAppellantName      = "appeal.appellant.name"
	FieldMRNDate            = "appeal.mrnDetails.mrnDate"
	FieldDWPState           = "dwpState"
	FieldSubscriptions      = "subscriptions"
	FieldCaseReference      = "caseReference"
)
