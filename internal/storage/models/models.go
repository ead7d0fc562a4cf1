package models

import "time"

type Document struct {
	ID          string
	Source      string
	Title       string
	ContentType string
	Summary     string
	RawContent  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type DocumentChunk struct {
	ID          string
	DocID       string
	ChunkIndex  int
	Text        string
	EmbeddingID string
	CreatedAt   time.Time
}

type InteractionRecord struct {
	ID             string
	UserID         string
	QueryText      string
	Response       string
	Classification string
	Model          string
	ContextCount   int
	LiveDataUsed   bool
	Enhanced       bool
	Stored         bool
	LatencyMS      int
	CreatedAt      time.Time
}

type Feedback struct {
	ID            int
	InteractionID string
	Helpful       bool
	IssueCategory string
	Comment       string
	CreatedAt     time.Time
}

type EvaluationRecord struct {
	ID               int
	InteractionID    string
	RelevanceScore   float64
	AccuracyScore    float64
	HelpfulnessScore float64
	AggregateScore   float64
	Reasoning        string
	CreatedAt        time.Time
}
