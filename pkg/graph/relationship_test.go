package graph

import (
	"context"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/relgraph/pkg/common"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func testEntities() []common.MergedEntity {
	return []common.MergedEntity{
		{ID: "e1", Text: "Acme", Labels: []string{"ORG"}},
		{ID: "e2", Text: "Rocket", Labels: []string{"PRODUCT"}},
	}
}

func TestResolveRelationshipsThresholdBeforeBlend(t *testing.T) {
	// punctuation keeps the proximity score at 0
	text := "Acme, builds the Rocket."
	f := &fakeAI{
		relations: func(string) (string, error) {
			return `[
				{"subject": "Acme", "predicate": "builds", "object": "Rocket", "from_id": "x", "to_id": "y", "confidence": 0.55},
				{"subject": "Acme", "predicate": "sells", "object": "Rocket", "from_id": "x", "to_id": "y", "confidence": 0.45}
			]`, nil
		},
	}

	t.Run("raw score passes", func(t *testing.T) {
		g := newTestClient(t, f, nil, nil)
		got, err := g.ResolveRelationships(context.Background(), text, testEntities(), 0.5)
		if err != nil {
			t.Fatalf("ResolveRelationships: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("expected one relationship, got %+v", got)
		}
		rel := got[0]
		if rel.Predicate != "builds" || rel.FromID != "e1" || rel.ToID != "e2" {
			t.Fatalf("unexpected relationship %+v", rel)
		}
		if !approx(rel.Confidence, 0.7*0.55) {
			t.Fatalf("confidence = %v, want %v", rel.Confidence, 0.7*0.55)
		}
	})

	t.Run("blended recheck drops it", func(t *testing.T) {
		g := newTestClient(t, f, nil, func(p *NewGraphClientParams) { p.RecheckBlended = true })
		got, err := g.ResolveRelationships(context.Background(), text, testEntities(), 0.5)
		if err != nil {
			t.Fatalf("ResolveRelationships: %v", err)
		}
		if len(got) != 0 {
			t.Fatalf("expected no relationships, got %+v", got)
		}
	})
}

func TestResolveRelationshipsBlendsProximity(t *testing.T) {
	text := "Acme builds Rocket"
	f := &fakeAI{
		relations: func(string) (string, error) {
			return `[{"subject": "Acme", "predicate": "  BUILDS   FAST ", "object": "Rocket", "confidence": "0.9"}]`, nil
		},
	}
	g := newTestClient(t, f, nil, nil)

	got, err := g.ResolveRelationships(context.Background(), text, testEntities(), 0)
	if err != nil {
		t.Fatalf("ResolveRelationships: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one relationship, got %+v", got)
	}
	// distance 2 over 3 words
	wantProx := math.Round((1-2.0/3.0)*10000) / 10000
	if !approx(got[0].Confidence, 0.7*0.9+0.3*wantProx) {
		t.Fatalf("confidence = %v, want %v", got[0].Confidence, 0.7*0.9+0.3*wantProx)
	}
	if got[0].Predicate != "BUILDS_FAST" {
		t.Fatalf("predicate = %q, want BUILDS_FAST", got[0].Predicate)
	}
	if f.lastOptions.MaxTokens != 32000 {
		t.Fatalf("expected response token ceiling 32000, got %d", f.lastOptions.MaxTokens)
	}
}

func TestResolveRelationshipsConfidenceRange(t *testing.T) {
	tests := []struct {
		name       string
		confidence string
		want       int
	}{
		{"percentage", "95", 0},
		{"negative", "-0.2", 0},
		{"upper bound", "1", 1},
		{"in range", "0.8", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeAI{
				relations: func(string) (string, error) {
					return `[{"subject": "Acme", "predicate": "builds", "object": "Rocket", "confidence": ` + tt.confidence + `}]`, nil
				},
			}
			g := newTestClient(t, f, nil, nil)

			got, err := g.ResolveRelationships(context.Background(), "Acme builds Rocket", testEntities(), 0.5)
			if err != nil {
				t.Fatalf("ResolveRelationships: %v", err)
			}
			if len(got) != tt.want {
				t.Fatalf("expected %d relationships, got %+v", tt.want, got)
			}
			for _, rel := range got {
				if rel.Confidence < 0 || rel.Confidence > 1 {
					t.Fatalf("confidence %v outside [0,1]", rel.Confidence)
				}
			}
		})
	}
}

func TestResolveRelationshipsGenerateOptions(t *testing.T) {
	f := &fakeAI{}
	temp := 0.0
	g := newTestClient(t, f, nil, func(p *NewGraphClientParams) {
		p.RelationModel = "gpt-4o"
		p.ReasoningEffort = "low"
		p.Temperature = &temp
		p.MaxResponseTokens = 1000
	})

	if _, err := g.ResolveRelationships(context.Background(), "Acme builds Rocket", testEntities(), 0); err != nil {
		t.Fatalf("ResolveRelationships: %v", err)
	}

	opts := f.lastOptions
	if opts.Model != "gpt-4o" || opts.Thinking != "low" || opts.Temperature != 0 || opts.MaxTokens != 1000 {
		t.Fatalf("unexpected options: %+v", opts)
	}
	if len(opts.SystemPrompts) != 1 || !strings.Contains(opts.SystemPrompts[0], "Acme") {
		t.Fatalf("expected the candidate entities in the system prompt, got %v", opts.SystemPrompts)
	}
}

func TestResolveRelationshipsFallbackId(t *testing.T) {
	text := "Acme builds Rocket"
	f := &fakeAI{
		relations: func(string) (string, error) {
			return `[{"subject": "Globex", "predicate": "COMPETES_WITH", "object": "Rocket", "confidence": 0.8}]`, nil
		},
	}
	g := newTestClient(t, f, nil, nil)

	got, err := g.ResolveRelationships(context.Background(), text, testEntities(), 0.5)
	if err != nil {
		t.Fatalf("ResolveRelationships: %v", err)
	}
	if len(got) != 1 || got[0].FromID != "e1" || got[0].ToID != "e2" {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestResolveRelationshipsParsesModelOutput(t *testing.T) {
	plain := `[{"subject": "Acme", "predicate": "BUILDS", "object": "Rocket", "confidence": 0.9}]`
	fenced := "```json\n" + plain + "\n```"

	run := func(t *testing.T, answer string) []common.Relationship {
		t.Helper()
		f := &fakeAI{relations: func(string) (string, error) { return answer, nil }}
		g := newTestClient(t, f, nil, nil)
		got, err := g.ResolveRelationships(context.Background(), "Acme builds Rocket", testEntities(), 0.5)
		if err != nil {
			t.Fatalf("ResolveRelationships: %v", err)
		}
		return got
	}

	if a, b := run(t, plain), run(t, fenced); !reflect.DeepEqual(a, b) || len(a) != 1 {
		t.Fatalf("fenced answer differs: %+v vs %+v", a, b)
	}
}

func TestResolveRelationshipsDropsMalformedChunk(t *testing.T) {
	text := "Acme builds Rocket.\n\nRocket needs Acme."
	f := &fakeAI{
		relations: func(chunk string) (string, error) {
			if strings.HasPrefix(chunk, "Acme") {
				return `{"subject": "Acme", "predicate": "BUILDS", "object": "Rocket", "confidence": 0.9}`, nil
			}
			return `[{"subject": "Rocket", "predicate": "NEEDS", "object": "Acme", "confidence": 0.9}]`, nil
		},
	}
	g := newTestClient(t, f, nil, func(p *NewGraphClientParams) {
		p.RelationChunks = ChunkOptions{Size: 20, Overlap: 0}
	})

	got, err := g.ResolveRelationships(context.Background(), text, testEntities(), 0.5)
	if err != nil {
		t.Fatalf("ResolveRelationships: %v", err)
	}
	if len(got) != 1 || got[0].Predicate != "NEEDS" {
		t.Fatalf("expected only the NEEDS relationship, got %+v", got)
	}
	if got[0].FromID != "e2" || got[0].ToID != "e1" {
		t.Fatalf("unexpected ids %+v", got[0])
	}
}

func TestResolveRelationshipsSkipsChunksWithoutEntities(t *testing.T) {
	f := &fakeAI{}
	g := newTestClient(t, f, nil, nil)

	got, err := g.ResolveRelationships(context.Background(), "nothing relevant here", testEntities(), 0.5)
	if err != nil {
		t.Fatalf("ResolveRelationships: %v", err)
	}
	if len(got) != 0 || f.relationCalls != 0 {
		t.Fatalf("expected no calls and no result, got %d calls and %+v", f.relationCalls, got)
	}
}

func TestNormalizePredicate(t *testing.T) {
	tests := map[string]string{
		"FOUNDED_IN":       "FOUNDED_IN",
		"founded in":       "founded_in",
		" works \t  for\n": "works_for",
		"":                 "",
	}
	for in, want := range tests {
		if got := NormalizePredicate(in); got != want {
			t.Fatalf("NormalizePredicate(%q) = %q, want %q", in, got, want)
		}
	}
}
