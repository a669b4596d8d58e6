package types

// Telemetry metric names for CloudWatch.
// All components MUST use these constants.
const (
	// Metric Names
	MetricDispatch            = "CallbackDispatch"
	MetricDispatchErrors      = "CallbackErrors"
	MetricDispatchWarnings    = "CallbackWarnings"
	MetricNotificationFailure = "NotificationFailure"
	MetricDeliveryAttempt     = "DeliveryAttempt"
	MetricQueueLag            = "NotificationQueueLag"
	MetricAPILatency          = "APILatency"

	// Dimension Keys
	DimPhase     = "Phase"
	DimEventType = "EventType"
	DimResult    = "Result"
	DimEndpoint  = "Endpoint"

	// Metric Namespace
	MetricNamespace = "CaseFlow"
)
