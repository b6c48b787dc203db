package domain

import (
	"crypto/sha1"
	"encoding/hex"
	"time"
)

// FeedbackType classifies an explicit reader reaction to a document.
type FeedbackType string

const (
	FeedbackPositive      FeedbackType = "positive"
	FeedbackNegative      FeedbackType = "negative"
	FeedbackFalsePositive FeedbackType = "false_positive"
	FeedbackFalseNegative FeedbackType = "false_negative"
)

// Valid reports whether the feedback type is one of the known values.
func (t FeedbackType) Valid() bool {
	switch t {
	case FeedbackPositive, FeedbackNegative, FeedbackFalsePositive, FeedbackFalseNegative:
		return true
	}
	return false
}

// PositiveEquivalent reports whether the event counts toward a category.
// A false negative means the system under-scored something the reader
// wanted, so it pulls in the same direction as a plain positive.
func (t FeedbackType) PositiveEquivalent() bool {
	return t == FeedbackPositive || t == FeedbackFalseNegative
}

// Document is a crawled item together with everything the scoring
// pipeline has derived for it so far. Scores stay nil until the score
// stage has run; the three of them and the topic are always written
// together.
type Document struct {
	ID            string
	Title         string
	URL           string
	Content       string
	Summary       string
	SourceURL     string
	Topic         string
	InterestScore *float64
	ValueScore    *float64
	NoveltyScore  *float64
	HighValue     bool
	Feedback      *FeedbackType
	Favorite      bool
	Vector        []float32
	PublishedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Scored reports whether the pipeline has assigned scores yet.
func (d Document) Scored() bool {
	return d.InterestScore != nil && d.ValueScore != nil && d.NoveltyScore != nil
}

// DocumentID derives the stable identifier for a document. Re-crawling
// the same URL from the same source always maps to the same row.
func DocumentID(sourceURL, docURL string) string {
	sum := sha1.Sum([]byte(sourceURL + "|" + docURL))
	return hex.EncodeToString(sum[:])
}

// Neighbor links a document to a semantically close one, produced by
// the daily similarity-index task.
type Neighbor struct {
	DocumentID string
	NeighborID string
	Similarity float64
}
