package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Standard tracing fields propagated through the call chain.
const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldJobID is the comp-collection job ID
	FieldJobID = "job_id"

	// FieldSource is the marketplace source identifier
	FieldSource = "source"

	// FieldCardAssetID is the card asset a job gathers evidence for
	FieldCardAssetID = "card_asset_id"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldAttempt is the per-source attempt number
	FieldAttempt = "attempt"

	// FieldWorker is the dispatch worker index
	FieldWorker = "worker"
)
