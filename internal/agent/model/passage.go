package model

// Passage is one retrieved chunk of reference text. All passages returned
// by a single retrieval share the routing decision's category and arrive
// ordered by descending Score.
type Passage struct {
	ID       string   `json:"id"`
	Content  string   `json:"content"`
	Source   Category `json:"source"`
	Score    float64  `json:"score"`
	Metadata string   `json:"metadata,omitempty"`
}
