package common

// EntitySource tells which extractor produced a RawEntity.
type EntitySource string

const (
	// SourceLocal marks entities found by the local NER model.
	SourceLocal EntitySource = "local"
	// SourceDocument marks entities newly extracted by the generative model.
	SourceDocument EntitySource = "document"
	// SourcePreFound marks local candidates the generative model reused.
	SourcePreFound EntitySource = "pre_found"
)

// Valid reports whether s is one of the known sources.
func (s EntitySource) Valid() bool {
	switch s {
	case SourceLocal, SourceDocument, SourcePreFound:
		return true
	}
	return false
}

// RawEntity is a single entity mention produced for one chunk by one extractor.
// It only lives until the entities of a request are merged.
type RawEntity struct {
	Text   string       `json:"text"`
	Label  string       `json:"label"`
	Source EntitySource `json:"source"`
}

// MergedEntity is the canonical entity for one exact surface text.
//
// Labels behaves as a set but keeps first-seen order, so Labels[0] is the
// label that was reported first for this text. It is never empty.
type MergedEntity struct {
	ID     string   `json:"id"`
	Text   string   `json:"text"`
	Labels []string `json:"labels"`
}

// PrimaryLabel returns the label used as the node category when persisting.
func (e MergedEntity) PrimaryLabel() string {
	if len(e.Labels) == 0 {
		return ""
	}
	return e.Labels[0]
}

// HasLabel reports whether label is already part of the entity's label set.
func (e MergedEntity) HasLabel(label string) bool {
	for _, l := range e.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Relationship is a directed, typed edge between two merged entities.
// Confidence holds the blended score, not the raw model score.
type Relationship struct {
	Subject    string  `json:"subject"`
	Predicate  string  `json:"predicate"`
	Object     string  `json:"object"`
	FromID     string  `json:"from_id"`
	ToID       string  `json:"to_id"`
	Confidence float64 `json:"confidence"`
}

// ExtractionResult is what a single pipeline run hands back to the caller.
type ExtractionResult struct {
	Entities      []MergedEntity `json:"entities"`
	Relationships []Relationship `json:"relationships"`
	Warnings      []string       `json:"warnings,omitempty"`
}
