package review

import "context"

// Domain event names. An external transport (websocket relay, poll
// endpoint) consumes these; the core only knows the Sink interface.
const (
	EventImpactAcknowledged  = "impact.acknowledged"
	EventImpactAutoConfirmed = "impact.auto_confirmed"
	EventImpactDismissed     = "impact.dismissed"
	EventImpactNudged        = "impact.nudged"
	EventMergeGateMet        = "change.merge_gate_met"
	EventRevisionsRequested  = "change.revisions_requested"
)

// Sink delivers a named domain event to a single user. Implementations
// must be safe for concurrent use.
type Sink interface {
	Publish(ctx context.Context, userID, event string, data map[string]interface{}) error
}

// NopSink discards all events. Used in tests and in single-process
// deployments with no relay configured.
type NopSink struct{}

func (NopSink) Publish(context.Context, string, string, map[string]interface{}) error {
	return nil
}
