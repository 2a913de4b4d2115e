package contract

import "context"

// DataExecutor is the Data Agent contract: one intent-level operation per call.
type DataExecutor interface {
	Execute(ctx context.Context, op Operation, params map[string]any) (DataResult, error)
}

// SupportResolver is the Support Agent contract.
type SupportResolver interface {
	Resolve(ctx context.Context, intent Intent, sc SupportContext) (SupportResult, error)
}

// IntentClassifier labels a query the deterministic rules could not classify.
type IntentClassifier interface {
	Classify(ctx context.Context, query string) ([]Intent, error)
}

// TraceStore archives the trace of a finished query.
type TraceStore interface {
	SaveTrace(ctx context.Context, resp ComposedResponse) error
}
