package model

// AppState stores per-invocation state for the intent graph.
// Concurrency model:
//   - Registered as graph local state via compose.WithGenLocalState.
//   - Read and written only inside eino state handlers or compose.ProcessState,
//     which serialize access, so no extra locking is needed.
type AppState struct {
	ConversationID string

	// Dispatched holds the outcome of every action run in this turn, in order.
	Dispatched []ActionResponse

	// ToolCallIDSeq numbers tool calls the model returned without an id.
	ToolCallIDSeq int

	// Accumulated total LLM cost (USD) across model invocations for this turn.
	TotalCostUSD float64
}

// QueryInput is one caller utterance for a session.
type QueryInput struct {
	ConversationID string `json:"conversation_id"`
	Query          string `json:"query"`
}

// TurnResult is what a turn hands back to the transport.
type TurnResult struct {
	ConversationID string           `json:"conversation_id"`
	Text           string           `json:"text"`
	Actions        []ActionResponse `json:"actions,omitempty"`
	CostUSD        float64          `json:"cost_usd"`
}
