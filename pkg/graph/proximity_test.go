package graph

import "testing"

func TestProximityScore(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		subject string
		object  string
		want    float64
	}{
		{
			name:    "reference example",
			text:    "A B C S D E F G H O",
			subject: "S",
			object:  "O",
			want:    0.4,
		},
		{
			name:    "missing subject",
			text:    "A B C",
			subject: "X",
			object:  "A",
			want:    0,
		},
		{
			name:    "missing object",
			text:    "A B C",
			subject: "A",
			object:  "X",
			want:    0,
		},
		{
			name:    "same position",
			text:    "Acme builds rockets",
			subject: "Acme",
			object:  "Acme",
			want:    1,
		},
		{
			name:    "multi word phrases use the closest pair",
			text:    "New York is far from Acme Corp but New York hosts Acme Corp today",
			subject: "New York",
			object:  "Acme Corp",
			want:    0.7857,
		},
		{
			name:    "case sensitive",
			text:    "acme builds rockets",
			subject: "Acme",
			object:  "rockets",
			want:    0,
		},
		{
			name:    "phrase must be contiguous",
			text:    "New big York and Acme",
			subject: "New York",
			object:  "Acme",
			want:    0,
		},
		{
			name:    "empty phrase",
			text:    "A B",
			subject: "",
			object:  "A",
			want:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewProximityScorer(tt.text).Score(tt.subject, tt.object)
			if got != tt.want {
				t.Fatalf("Score(%q, %q) = %v, want %v", tt.subject, tt.object, got, tt.want)
			}
			if got < 0 || got > 1 {
				t.Fatalf("score %v out of [0,1]", got)
			}
		})
	}
}
