package ner

import (
	"testing"

	"github.com/OFFIS-RIT/relgraph/pkg/common"
)

func TestProseRecognizerEmpty(t *testing.T) {
	r := NewProseRecognizer()
	for _, in := range []string{"", "   ", "\n\t"} {
		got, err := r.Recognize(in)
		if err != nil {
			t.Fatalf("Recognize(%q) returned error: %v", in, err)
		}
		if len(got) != 0 {
			t.Fatalf("Recognize(%q) = %v, want none", in, got)
		}
	}
}

func TestProseRecognizerMarksLocal(t *testing.T) {
	r := NewProseRecognizer()
	got, err := r.Recognize("Steve Jobs founded Apple in California together with Steve Wozniak.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, e := range got {
		if e.Source != common.SourceLocal {
			t.Fatalf("entity %q has source %q, want %q", e.Text, e.Source, common.SourceLocal)
		}
		if e.Text == "" || e.Label == "" {
			t.Fatalf("entity with empty field: %+v", e)
		}
	}
}
