// Package rerank defines the payload exchanged with a context reranker.
package rerank

// Candidate is the preview of one result sent to the reranker.
type Candidate struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Score       float64  `json:"score"`
}

// Context carries the caller signals a reranker may use.
type Context struct {
	UserID   string `json:"user_id,omitempty"`
	Domain   string `json:"domain,omitempty"`
	TaskType string `json:"task_type,omitempty"`
}

// Ranked is one candidate in the reranker's order. Score is optional.
type Ranked struct {
	ID    string  `json:"id"`
	Score float64 `json:"score,omitempty"`
}
