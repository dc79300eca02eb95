package graph

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/OFFIS-RIT/relgraph/pkg/common"
)

func TestCollectEntitiesMergesLabels(t *testing.T) {
	f := &fakeAI{
		entities: func(chunk string) ([]entityItem, error) {
			return []entityItem{
				{Text: "Acme", Label: "PRODUCT", Source: "pre_found"},
				{Text: "Rocket", Label: "PRODUCT", Source: "document"},
			}, nil
		},
	}
	r := &fakeRecognizer{labels: map[string]string{"Acme": "ORG"}}
	g := newTestClient(t, f, r, nil)

	got, err := g.CollectEntities(context.Background(), "Acme builds the Rocket. Acme is big.", []string{"PRODUCT"})
	if err != nil {
		t.Fatalf("CollectEntities: %v", err)
	}

	want := []common.MergedEntity{
		{ID: "e1", Text: "Acme", Labels: []string{"ORG", "PRODUCT"}},
		{ID: "e2", Text: "Rocket", Labels: []string{"PRODUCT"}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestCollectEntitiesFiltersContractViolations(t *testing.T) {
	f := &fakeAI{
		entities: func(chunk string) ([]entityItem, error) {
			return []entityItem{
				{Text: "", Label: "PRODUCT", Source: "document"},
				{Text: "Widget", Label: "ANIMAL", Source: "document"},
				{Text: "Gadget", Label: "PRODUCT", Source: "invented"},
				{Text: "Gizmo", Label: "PRODUCT", Source: "local"},
				{Text: "Rocket", Label: "PRODUCT", Source: "document"},
			}, nil
		},
	}
	g := newTestClient(t, f, nil, nil)

	got, err := g.CollectEntities(context.Background(), "some text", []string{"PRODUCT"})
	if err != nil {
		t.Fatalf("CollectEntities: %v", err)
	}
	if len(got) != 1 || got[0].Text != "Rocket" {
		t.Fatalf("expected only Rocket, got %+v", got)
	}
}

func TestCollectEntitiesResponseCeiling(t *testing.T) {
	f := &fakeAI{}
	g := newTestClient(t, f, nil, func(p *NewGraphClientParams) {
		p.EntityModel = "gpt-4o-mini"
		p.MaxResponseTokens = 1234
	})

	if _, err := g.CollectEntities(context.Background(), "Acme builds rockets.", []string{"ORG"}); err != nil {
		t.Fatalf("CollectEntities: %v", err)
	}
	if f.entityCalls != 1 {
		t.Fatalf("expected one entity call, got %d", f.entityCalls)
	}
	if f.entityOptions.MaxTokens != 1234 {
		t.Fatalf("expected response ceiling 1234, got %d", f.entityOptions.MaxTokens)
	}
	if f.entityOptions.Model != "gpt-4o-mini" || len(f.entityOptions.SystemPrompts) != 1 {
		t.Fatalf("unexpected options: %+v", f.entityOptions)
	}
}

func TestCollectEntitiesIsOrderedByChunk(t *testing.T) {
	text := "alpha first chunk.\n\nbeta second chunk.\n\ngamma third chunk."
	f := &fakeAI{
		entities: func(chunk string) ([]entityItem, error) {
			word := strings.Fields(chunk)[0]
			// later chunks answer first
			switch word {
			case "alpha":
				time.Sleep(30 * time.Millisecond)
			case "beta":
				time.Sleep(15 * time.Millisecond)
			}
			return []entityItem{{Text: word, Label: "TECHNOLOGY", Source: "document"}}, nil
		},
	}
	g := newTestClient(t, f, nil, func(p *NewGraphClientParams) {
		p.EntityChunks = ChunkOptions{Size: 20, Overlap: 0}
	})

	got, err := g.CollectEntities(context.Background(), text, []string{"TECHNOLOGY"})
	if err != nil {
		t.Fatalf("CollectEntities: %v", err)
	}

	var texts []string
	for _, e := range got {
		texts = append(texts, e.Text)
	}
	want := []string{"alpha", "beta", "gamma"}
	if !reflect.DeepEqual(texts, want) {
		t.Fatalf("got %v, want %v", texts, want)
	}
	if got[0].ID != "e1" || got[2].ID != "e3" {
		t.Fatalf("ids not assigned in merge order: %+v", got)
	}
}

func TestCollectEntitiesFailSoft(t *testing.T) {
	text := "alpha first chunk.\n\nbeta second chunk."
	f := &fakeAI{
		entities: func(chunk string) ([]entityItem, error) {
			if strings.HasPrefix(chunk, "alpha") {
				return nil, errors.New("model unavailable")
			}
			return []entityItem{{Text: "beta", Label: "JOB", Source: "document"}}, nil
		},
	}
	r := &fakeRecognizer{
		labels: map[string]string{"alpha": "ORG", "beta": "ORG"},
		fail:   func(chunk string) bool { return strings.HasPrefix(chunk, "beta") },
	}
	g := newTestClient(t, f, r, func(p *NewGraphClientParams) {
		p.LocalChunks = ChunkOptions{Size: 20, Overlap: 0}
		p.EntityChunks = ChunkOptions{Size: 20, Overlap: 0}
	})

	got, err := g.CollectEntities(context.Background(), text, []string{"JOB"})
	if err != nil {
		t.Fatalf("CollectEntities: %v", err)
	}
	want := []common.MergedEntity{
		{ID: "e1", Text: "alpha", Labels: []string{"ORG"}},
		{ID: "e2", Text: "beta", Labels: []string{"JOB"}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	// the failing chunk is retried once
	if f.entityCalls != 3 {
		t.Fatalf("expected 3 generative calls, got %d", f.entityCalls)
	}
}

func TestCollectEntitiesCancelled(t *testing.T) {
	g := newTestClient(t, &fakeAI{}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.CollectEntities(ctx, "some text", []string{"JOB"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestMergeEntities(t *testing.T) {
	local := []common.RawEntity{
		{Text: "Acme", Label: "ORG", Source: common.SourceLocal},
		{Text: "Acme", Label: "ORG", Source: common.SourceLocal},
	}
	generative := [][]common.RawEntity{
		nil,
		{{Text: "Acme", Label: "CUSTOM_BRAND", Source: common.SourceDocument}},
		{{Text: "acme", Label: "CUSTOM_BRAND", Source: common.SourceDocument}},
	}

	got, err := mergeEntities(local, generative, sequentialIDs())
	if err != nil {
		t.Fatalf("mergeEntities: %v", err)
	}
	want := []common.MergedEntity{
		{ID: "e1", Text: "Acme", Labels: []string{"ORG", "CUSTOM_BRAND"}},
		{ID: "e2", Text: "acme", Labels: []string{"CUSTOM_BRAND"}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}
