package db

import "time"

// Word is a dictionary form seen in at least one sentence, with its review state.
type Word struct {
	ID                int64
	Text              string
	FrequencyRank     int
	OccurrenceCount   int
	Reviewed          bool
	Repetition        uint32
	EFactor           float64
	ReviewInterval    time.Duration
	NextReviewAt      time.Time // zero until the first review
	DateFirstReviewed time.Time // zero until the first review
	DateAdded         time.Time
	Definitions       string
}

// Sentence is an ingested sentence. Its text is unique.
type Sentence struct {
	ID        int64
	Text      string
	Source    string
	DateAdded time.Time
}

// WordRef identifies a word inside a selection payload.
type WordRef struct {
	ID          int64  `json:"id"`
	Text        string `json:"text"`
	Definitions string `json:"definitions,omitempty"`
}

// Candidate is a sentence picked by one of the selection queries.
type Candidate struct {
	SentenceID int64
	Text       string
	Source     string
	DueCount   int
	NewCount   int
	// AvgNewOccurrence is the mean occurrence_count of the sentence's new words.
	AvgNewOccurrence float64
}

// ReviewUpdate is the state written back after a review.
type ReviewUpdate struct {
	WordID       int64
	Repetition   uint32
	EFactor      float64
	Interval     time.Duration
	NextReviewAt time.Time
	ReviewedAt   time.Time
}
