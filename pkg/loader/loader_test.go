package loader

import (
	"context"
	"errors"
	"testing"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "markdown is rendered and stripped",
			in:   "# Title\n\n**Bold** text and *more*",
			want: "Title Bold text and more",
		},
		{
			name: "code blocks are dropped",
			in:   "before\n```go\nfmt.Println(1)\n```\nafter",
			want: "before after",
		},
		{
			name: "short numbers and urls are removed",
			in:   "Visit https://example.com/a now. Version 12345 and 123456.",
			want: "Visit now. Version and 123456.",
		},
		{
			name: "html is stripped and entities decoded",
			in:   "<div>Tom &amp; Jerry</div>",
			want: "Tom & Jerry",
		},
		{
			name: "whitespace collapses",
			in:   "a\n\n\nb\t\tc",
			want: "a b c",
		},
		{
			name: "empty",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CleanText(tt.in)
			if got != tt.want {
				t.Fatalf("CleanText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExtractPDFTextEmpty(t *testing.T) {
	_, err := ExtractPDFText(context.Background(), nil)
	if !errors.Is(err, ErrEmptyDocument) {
		t.Fatalf("expected ErrEmptyDocument, got %v", err)
	}
}

func TestExtractPDFTextNotAPDF(t *testing.T) {
	_, err := ExtractPDFText(context.Background(), []byte("plain text, not a pdf"))
	if err == nil {
		t.Fatal("expected error for non-pdf input")
	}
}
