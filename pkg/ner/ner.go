package ner

import (
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/relgraph/pkg/common"

	"github.com/jdkato/prose/v2"
)

// Recognizer is the local, fast entity extractor run over small chunks.
// Every returned entity carries common.SourceLocal.
type Recognizer interface {
	Recognize(text string) ([]common.RawEntity, error)
}

// ProseRecognizer runs the averaged perceptron NER model bundled with prose.
type ProseRecognizer struct{}

// NewProseRecognizer returns a Recognizer backed by prose.
func NewProseRecognizer() *ProseRecognizer {
	return &ProseRecognizer{}
}

// Recognize tags text and returns its named entities in document order.
func (r *ProseRecognizer) Recognize(text string) ([]common.RawEntity, error) {
	if strings.TrimSpace(text) == "" {
		return []common.RawEntity{}, nil
	}

	doc, err := prose.NewDocument(text)
	if err != nil {
		return nil, fmt.Errorf("failed to tag text: %w", err)
	}

	ents := doc.Entities()
	out := make([]common.RawEntity, 0, len(ents))
	for _, e := range ents {
		name := strings.TrimSpace(e.Text)
		if name == "" || e.Label == "" {
			continue
		}
		out = append(out, common.RawEntity{
			Text:   name,
			Label:  e.Label,
			Source: common.SourceLocal,
		})
	}
	return out, nil
}

var _ Recognizer = (*ProseRecognizer)(nil)
