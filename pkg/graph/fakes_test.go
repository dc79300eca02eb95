package graph

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/OFFIS-RIT/relgraph/pkg/ai"
	"github.com/OFFIS-RIT/relgraph/pkg/common"
)

type fakeAI struct {
	mu sync.Mutex

	entities  func(chunk string) ([]entityItem, error)
	relations func(chunk string) (string, error)

	entityCalls   int
	relationCalls int
	lastOptions   ai.GenerateOptions
	entityOptions ai.GenerateOptions
}

func (f *fakeAI) GenerateCompletion(_ context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	f.mu.Lock()
	f.relationCalls++
	f.lastOptions = ai.ApplyOptions(ai.GenerateOptions{}, opts...)
	f.mu.Unlock()

	if f.relations == nil {
		return "[]", nil
	}
	return f.relations(prompt)
}

func (f *fakeAI) GenerateCompletionWithFormat(
	_ context.Context,
	_ string,
	_ string,
	prompt string,
	out any,
	opts ...ai.GenerateOption,
) error {
	f.mu.Lock()
	f.entityCalls++
	f.entityOptions = ai.ApplyOptions(ai.GenerateOptions{}, opts...)
	f.mu.Unlock()

	env, ok := out.(*entityEnvelope)
	if !ok {
		return fmt.Errorf("unexpected output type %T", out)
	}
	if f.entities == nil {
		env.Entities = nil
		return nil
	}
	items, err := f.entities(prompt)
	if err != nil {
		return err
	}
	env.Entities = items
	return nil
}

func (f *fakeAI) ResetMetrics()               {}
func (f *fakeAI) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

// fakeRecognizer tags every occurrence of the configured words.
type fakeRecognizer struct {
	labels map[string]string
	fail   func(chunk string) bool
}

func (r *fakeRecognizer) Recognize(text string) ([]common.RawEntity, error) {
	if r.fail != nil && r.fail(text) {
		return nil, fmt.Errorf("recognizer failed")
	}
	out := []common.RawEntity{}
	for _, word := range strings.Fields(text) {
		word = strings.Trim(word, ".,")
		if label, ok := r.labels[word]; ok {
			out = append(out, common.RawEntity{Text: word, Label: label, Source: common.SourceLocal})
		}
	}
	return out, nil
}

func sequentialIDs() func() (string, error) {
	var mu sync.Mutex
	n := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("e%d", n), nil
	}
}

func newTestClient(t *testing.T, f *fakeAI, r *fakeRecognizer, mod func(*NewGraphClientParams)) *GraphClient {
	t.Helper()
	if r == nil {
		r = &fakeRecognizer{}
	}
	params := NewGraphClientParams{
		AIClient:           f,
		Recognizer:         r,
		ParallelAiRequests: 4,
		MaxRetries:         2,
	}
	if mod != nil {
		mod(&params)
	}
	g, err := NewGraphClient(params)
	if err != nil {
		t.Fatalf("NewGraphClient: %v", err)
	}
	g.newID = sequentialIDs()
	return g
}
