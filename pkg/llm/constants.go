package llm

// StopReason constants normalize provider-native termination reasons.
const (
	StopReasonStop   = "stop"   // normal completion
	StopReasonLength = "length" // truncated at the token limit
)

// ContentBlock type constants.
const (
	BlockTypeText     = "text"
	BlockTypeThinking = "thinking"
)
