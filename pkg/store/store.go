package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/relgraph/pkg/common"
)

// WriteMode selects whether SaveGraph replaces or extends the stored graph.
type WriteMode string

const (
	// WriteModeReplace wipes all nodes and edges before writing.
	WriteModeReplace WriteMode = "replace"
	// WriteModeMerge upserts into the existing graph.
	WriteModeMerge WriteMode = "merge"
)

// ParseWriteMode maps a config value to a WriteMode. Empty means replace.
func ParseWriteMode(s string) (WriteMode, error) {
	switch WriteMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", WriteModeReplace:
		return WriteModeReplace, nil
	case WriteModeMerge:
		return WriteModeMerge, nil
	}
	return "", fmt.Errorf("unknown graph write mode %q", s)
}

// GraphWriter persists an extraction result as a labelled property graph.
//
// SaveGraph runs in a single write transaction: optionally wipe, then upsert
// one node per entity keyed by (id, text) and one directed edge per
// relationship between nodes matched by id. Writing the same input twice
// yields the same graph.
type GraphWriter interface {
	SaveGraph(ctx context.Context, entities []common.MergedEntity, relations []common.Relationship) error
	CountGraph(ctx context.Context) (nodes int, edges int, err error)
	Close(ctx context.Context) error
}

// Node is the backend independent form of a persisted entity.
type Node struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Label string `json:"label"`
}

// Edge is the backend independent form of a persisted relationship.
type Edge struct {
	FromID     string  `json:"from_id"`
	ToID       string  `json:"to_id"`
	Type       string  `json:"type"`
	Subject    string  `json:"subject"`
	Object     string  `json:"object"`
	Confidence float64 `json:"confidence"`
}

// Props returns the edge properties that are overwritten on every write.
func (e Edge) Props() map[string]any {
	return map[string]any{
		"subject":    e.Subject,
		"object":     e.Object,
		"confidence": e.Confidence,
	}
}

// PrepareGraph converts merged entities and relationships into sanitized
// nodes and edges. The node label is the entity's first-seen label.
func PrepareGraph(entities []common.MergedEntity, relations []common.Relationship) ([]Node, []Edge) {
	nodes := make([]Node, 0, len(entities))
	for _, e := range entities {
		nodes = append(nodes, Node{
			ID:    e.ID,
			Name:  e.Text,
			Label: SanitizeLabel(e.PrimaryLabel()),
		})
	}

	edges := make([]Edge, 0, len(relations))
	for _, r := range relations {
		edges = append(edges, Edge{
			FromID:     r.FromID,
			ToID:       r.ToID,
			Type:       SanitizeRelationType(r.Predicate),
			Subject:    r.Subject,
			Object:     r.Object,
			Confidence: r.Confidence,
		})
	}
	return nodes, edges
}

const (
	fallbackLabel        = "Entity"
	fallbackRelationType = "RELATED_TO"
)

// SanitizeIdentifier reduces s to a safe structural identifier: whitespace
// and dashes become underscores, every other character outside
// [A-Za-z0-9_] is dropped and a leading digit is prefixed with "_".
// It returns "" if nothing usable remains.
func SanitizeIdentifier(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '\t' || r == '\n' || r == '-':
			b.WriteRune('_')
		}
	}
	out := b.String()
	if strings.Trim(out, "_") == "" {
		return ""
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
	}
	return out
}

// SanitizeLabel returns a node label safe for use as a structural identifier.
func SanitizeLabel(label string) string {
	if s := SanitizeIdentifier(label); s != "" {
		return s
	}
	return fallbackLabel
}

// SanitizeRelationType returns an upper-cased edge type safe for use as a
// structural identifier.
func SanitizeRelationType(predicate string) string {
	if s := SanitizeIdentifier(predicate); s != "" {
		return strings.ToUpper(s)
	}
	return fallbackRelationType
}
