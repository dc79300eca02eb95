package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/OFFIS-RIT/relgraph/pkg/common"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		in        string
		wantLabel string
		wantType  string
	}{
		{in: "PRODUCT", wantLabel: "PRODUCT", wantType: "PRODUCT"},
		{in: "founded in", wantLabel: "founded_in", wantType: "FOUNDED_IN"},
		{in: "works-for", wantLabel: "works_for", wantType: "WORKS_FOR"},
		{in: "x`]->(m) DETACH DELETE m //", wantLabel: "x_m_DETACH_DELETE_m_", wantType: "X_M_DETACH_DELETE_M_"},
		{in: "3D_MODEL", wantLabel: "_3D_MODEL", wantType: "_3D_MODEL"},
		{in: "", wantLabel: "Entity", wantType: "RELATED_TO"},
		{in: "!!!", wantLabel: "Entity", wantType: "RELATED_TO"},
		{in: "___", wantLabel: "Entity", wantType: "RELATED_TO"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := SanitizeLabel(tt.in); got != tt.wantLabel {
				t.Fatalf("SanitizeLabel(%q) = %q, want %q", tt.in, got, tt.wantLabel)
			}
			if got := SanitizeRelationType(tt.in); got != tt.wantType {
				t.Fatalf("SanitizeRelationType(%q) = %q, want %q", tt.in, got, tt.wantType)
			}
		})
	}
}

func TestParseWriteMode(t *testing.T) {
	tests := []struct {
		in      string
		want    WriteMode
		wantErr bool
	}{
		{in: "", want: WriteModeReplace},
		{in: "replace", want: WriteModeReplace},
		{in: " Merge ", want: WriteModeMerge},
		{in: "append", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseWriteMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseWriteMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("ParseWriteMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPrepareGraph(t *testing.T) {
	entities := []common.MergedEntity{
		{ID: "e1", Text: "Acme", Labels: []string{"ORG", "CUSTOM_BRAND"}},
	}
	relations := []common.Relationship{
		{Subject: "Acme", Predicate: "makes", Object: "Rocket", FromID: "e1", ToID: "e2", Confidence: 0.8},
	}

	nodes, edges := PrepareGraph(entities, relations)
	if len(nodes) != 1 || nodes[0].Label != "ORG" || nodes[0].Name != "Acme" || nodes[0].ID != "e1" {
		t.Fatalf("unexpected nodes: %+v", nodes)
	}
	if len(edges) != 1 || edges[0].Type != "MAKES" || edges[0].Confidence != 0.8 {
		t.Fatalf("unexpected edges: %+v", edges)
	}
	props := edges[0].Props()
	if props["subject"] != "Acme" || props["object"] != "Rocket" {
		t.Fatalf("unexpected props: %v", props)
	}
}

type slowWriter struct {
	active  atomic.Int32
	overlap atomic.Bool
}

func (w *slowWriter) SaveGraph(ctx context.Context, _ []common.MergedEntity, _ []common.Relationship) error {
	if w.active.Add(1) > 1 {
		w.overlap.Store(true)
	}
	time.Sleep(5 * time.Millisecond)
	w.active.Add(-1)
	return nil
}

func (w *slowWriter) CountGraph(context.Context) (int, int, error) { return 0, 0, nil }
func (w *slowWriter) Close(context.Context) error                  { return nil }

func TestLockedWriterSerializes(t *testing.T) {
	inner := &slowWriter{}
	w := NewLockedWriter(inner, NewLocalLocker())

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.SaveGraph(context.Background(), nil, nil); err != nil {
				t.Errorf("SaveGraph: %v", err)
			}
		}()
	}
	wg.Wait()

	if inner.overlap.Load() {
		t.Fatal("SaveGraph calls overlapped")
	}
}

func TestLocalLockerHonoursContext(t *testing.T) {
	l := NewLocalLocker()
	hold := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = l.WithLock(context.Background(), func(context.Context) error {
			close(hold)
			<-release
			return nil
		})
	}()
	<-hold
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := l.WithLock(ctx, func(context.Context) error { return nil })
	if err == nil {
		t.Fatal("expected context error while lock is held")
	}
}
