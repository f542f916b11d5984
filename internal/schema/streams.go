package schema

const (
	StreamInbound  = "inbound"
	StreamOutbound = "outbound"
	StreamWorkflow = "workflow"
	StreamErrors   = "errors"
)

// ConversationStreams are the streams scoped to a single conversation thread.
var ConversationStreams = []string{
	StreamInbound,
	StreamOutbound,
	StreamWorkflow,
	StreamErrors,
}

// StreamOrdering returns "fifo" or "lifo" for a given stream. Inbound and
// outbound messages must replay in arrival order; diagnostics read newest-first.
func StreamOrdering(stream string) string {
	if stream == StreamInbound || stream == StreamOutbound {
		return "fifo"
	}
	return "lifo"
}
