package port

// MetricsRecorder defines the interface for recording operational metrics
type MetricsRecorder interface {
	// RecordEvent records a processed build event with its classification and outcome
	RecordEvent(kind, outcome string)

	// RecordUpstreamRequest records a request to an external service
	RecordUpstreamRequest(service, method string, success bool)

	// RecordPanelRefresh records a status panel publication
	RecordPanelRefresh()
}
