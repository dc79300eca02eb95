package graph

import (
	"testing"

	"github.com/OFFIS-RIT/relgraph/pkg/common"
)

func TestEntityResolver(t *testing.T) {
	entities := []common.MergedEntity{
		{ID: "e1", Text: "Acme", Labels: []string{"ORG"}},
		{ID: "e2", Text: "Berlin", Labels: []string{"GPE"}},
		{ID: "e3", Text: "Acme Labs", Labels: []string{"ORG"}},
	}
	r := NewEntityResolver(entities)

	tests := []struct {
		name    string
		mention string
		wantID  string
		wantOK  bool
	}{
		{name: "exact", mention: "Berlin", wantID: "e2", wantOK: true},
		{name: "case insensitive", mention: "BERLIN", wantID: "e2", wantOK: true},
		{name: "entity inside mention", mention: "the city of berlin", wantID: "e2", wantOK: true},
		{name: "first match wins", mention: "Acme Labs", wantID: "e1", wantOK: true},
		{name: "unknown falls back to first", mention: "Globex", wantID: "e1", wantOK: false},
		{name: "empty mention falls back", mention: "", wantID: "e1", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := r.Resolve(tt.mention)
			if id != tt.wantID || ok != tt.wantOK {
				t.Fatalf("Resolve(%q) = (%q, %v), want (%q, %v)", tt.mention, id, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}

func TestEntityResolverEmpty(t *testing.T) {
	id, ok := NewEntityResolver(nil).Resolve("anything")
	if id != "" || ok {
		t.Fatalf("expected empty result, got (%q, %v)", id, ok)
	}
}
