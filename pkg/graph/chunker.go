package graph

import (
	"strings"
	"unicode/utf8"
)

// DefaultSeparators are tried in order of decreasing granularity. The empty
// separator splits into single characters.
var DefaultSeparators = []string{"\n\n", "\n", ".", " ", ""}

// ChunkOptions configures SplitText. Size and Overlap are measured in
// characters (runes).
type ChunkOptions struct {
	Size       int
	Overlap    int
	Separators []string
}

var (
	LocalChunkOptions    = ChunkOptions{Size: 700, Overlap: 150}
	EntityChunkOptions   = ChunkOptions{Size: 10000, Overlap: 500}
	RelationChunkOptions = ChunkOptions{Size: 10000, Overlap: 400}
)

func (o ChunkOptions) normalize() ChunkOptions {
	if o.Size <= 0 {
		o.Size = 1
	}
	if o.Overlap < 0 {
		o.Overlap = 0
	}
	if o.Overlap >= o.Size {
		o.Overlap = o.Size - 1
	}
	if len(o.Separators) == 0 {
		o.Separators = DefaultSeparators
	}
	return o
}

// SplitText splits text recursively on the configured separators until
// every piece fits into opts.Size, then greedily merges neighbouring pieces
// into chunks that share up to opts.Overlap characters with their
// predecessor. A separator stays at the start of the piece that follows it.
//
// Chunks are trimmed and empty chunks are dropped.
func SplitText(text string, opts ChunkOptions) []string {
	opts = opts.normalize()
	chunks := splitRecursive(text, opts.Separators, opts.Size, opts.Overlap)
	if chunks == nil {
		return []string{}
	}
	return chunks
}

func splitRecursive(text string, separators []string, size, overlap int) []string {
	separator := separators[len(separators)-1]
	var next []string
	for i, s := range separators {
		if s == "" {
			separator = s
			break
		}
		if strings.Contains(text, s) {
			separator = s
			next = separators[i+1:]
			break
		}
	}

	var final, good []string
	for _, piece := range splitKeepSeparator(text, separator) {
		if utf8.RuneCountInString(piece) < size {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			final = append(final, mergePieces(good, size, overlap)...)
			good = nil
		}
		if len(next) == 0 {
			if chunk := strings.TrimSpace(piece); chunk != "" {
				final = append(final, chunk)
			}
			continue
		}
		final = append(final, splitRecursive(piece, next, size, overlap)...)
	}
	if len(good) > 0 {
		final = append(final, mergePieces(good, size, overlap)...)
	}
	return final
}

// splitKeepSeparator splits text on sep and prefixes every piece but the
// first with the separator. Empty pieces are dropped.
func splitKeepSeparator(text, sep string) []string {
	if sep == "" {
		pieces := make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
		return pieces
	}

	parts := strings.Split(text, sep)
	pieces := make([]string, 0, len(parts))
	for i, p := range parts {
		if i > 0 {
			p = sep + p
		}
		if p != "" {
			pieces = append(pieces, p)
		}
	}
	return pieces
}

func mergePieces(pieces []string, size, overlap int) []string {
	var chunks []string
	var current []string
	total := 0

	emit := func() {
		if chunk := strings.TrimSpace(strings.Join(current, "")); chunk != "" {
			chunks = append(chunks, chunk)
		}
	}

	for _, piece := range pieces {
		n := utf8.RuneCountInString(piece)
		if total+n > size && len(current) > 0 {
			emit()
			for total > overlap || (total+n > size && total > 0) {
				total -= utf8.RuneCountInString(current[0])
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += n
	}
	emit()

	return chunks
}
