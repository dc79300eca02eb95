package graph

import (
	"math"
	"strings"
)

// ProximityScorer measures how close two phrases occur in a document.
// The document is tokenized once on whitespace; phrases must match a
// contiguous run of tokens exactly (case-sensitive).
type ProximityScorer struct {
	words []string
	index map[string][]int
}

// NewProximityScorer tokenizes text and builds the word position index.
func NewProximityScorer(text string) *ProximityScorer {
	words := strings.Fields(text)
	index := make(map[string][]int, len(words))
	for i, w := range words {
		index[w] = append(index[w], i)
	}
	return &ProximityScorer{words: words, index: index}
}

// Score returns 1 - minDist/totalWords rounded to four decimals, where
// minDist is the smallest distance between the start positions of any
// occurrence of subject and object. It returns 0 if either phrase does
// not occur.
func (p *ProximityScorer) Score(subject, object string) float64 {
	subj := p.positions(subject)
	obj := p.positions(object)
	if len(subj) == 0 || len(obj) == 0 {
		return 0
	}

	minDist := math.MaxInt
	i, j := 0, 0
	for i < len(subj) && j < len(obj) {
		d := subj[i] - obj[j]
		if d < 0 {
			d = -d
		}
		if d < minDist {
			minDist = d
		}
		if subj[i] < obj[j] {
			i++
		} else {
			j++
		}
	}

	score := 1 - float64(minDist)/float64(len(p.words))
	return math.Round(score*10000) / 10000
}

// positions returns the ascending start indices of phrase in the document.
func (p *ProximityScorer) positions(phrase string) []int {
	tokens := strings.Fields(phrase)
	if len(tokens) == 0 {
		return nil
	}

	var out []int
	for _, start := range p.index[tokens[0]] {
		if start+len(tokens) > len(p.words) {
			break
		}
		match := true
		for k := 1; k < len(tokens); k++ {
			if p.words[start+k] != tokens[k] {
				match = false
				break
			}
		}
		if match {
			out = append(out, start)
		}
	}
	return out
}
