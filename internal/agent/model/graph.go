package model

// AppState stores per-request state for the Eino pipeline graph.
// Concurrency model:
//   - This struct is registered as Graph Local State via compose.WithGenLocalState.
//   - All reads/writes happen only inside Eino state handlers:
//     WithStatePreHandler, WithStatePostHandler, or compose.ProcessState.
//   - Eino serializes access to state within these handlers, so no additional
//     mutex/atomic is required as long as you never touch it outside handlers.
//   - The state lives exactly as long as one Invoke and is never shared
//     across requests or persisted.
type AppState struct {
	UserID       string
	RawQuery     string
	EnglishQuery string
	Decision     *RoutingDecision // set by parser post-handler
	Passages     []Passage        // set by retriever post-handler
	DraftAnswer  string           // set by answer post-handler

	// Accumulated total LLM cost (USD) across model invocations for this query
	TotalCostUSD float64
}

// Query represents the input for one pipeline run. Immutable after entry.
type Query struct {
	Question string `json:"question"`
	UserID   string `json:"user_id,omitempty"`
}

// Answer is the orchestrator's terminal output. Audio is attached by the
// caller-side TTS integration, not by the pipeline.
type Answer struct {
	Text     string   `json:"text"`
	Category Category `json:"category"`
}

// NoInfoAnswer is the canned reply produced when no passage grounds the
// question. Emitted deterministically, never by the model.
const NoInfoAnswer = "I don't have information about that."
