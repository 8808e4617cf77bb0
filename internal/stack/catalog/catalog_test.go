package catalog_test

import (
	"testing"

	"quickstack.ai/internal/stack/capability"
	"quickstack.ai/internal/stack/catalog"
	"quickstack.ai/internal/stack/model"
	"quickstack.ai/internal/stack/stacktest"
)

func ids(cs []catalog.Candidate) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.ID())
	}
	return out
}

func TestFindCandidatesFiltersAndSorts(t *testing.T) {
	reg := stacktest.Registry{
		{Name: "far", Pos: model.Vec3{X: 9}},
		{Name: "gone", Pos: model.Vec3{X: 1}, Invalid: true},
		{Name: "out", Pos: model.Vec3{X: 30}},
		{Name: "near", Pos: model.Vec3{X: 2}, Class: stacktest.Key("wood", 1), Classed: true, Stored: 7},
		{Name: "tieB", Pos: model.Vec3{Z: 5}},
		{Name: "tieA", Pos: model.Vec3{X: 5}},
	}
	got := catalog.FindCandidates(reg, model.Vec3{}, 10)
	want := []string{"near", "tieB", "tieA", "far"}
	if g := ids(got); len(g) != len(want) {
		t.Fatalf("got %v want %v", g, want)
	} else {
		for i := range want {
			if g[i] != want[i] {
				t.Fatalf("got %v want %v", g, want)
			}
		}
	}
	if !got[0].HasKey || got[0].Key != stacktest.Key("wood", 1) || got[0].Amount != 7 {
		t.Fatalf("classification not captured: %+v", got[0])
	}
	if got[1].HasKey {
		t.Fatalf("unclassified container reported a key: %+v", got[1])
	}
}

func TestFindCandidatesUnboundedRadius(t *testing.T) {
	reg := stacktest.Registry{
		{Name: "a", Pos: model.Vec3{X: 1000}},
		{Name: "b", Pos: model.Vec3{X: 1}},
	}
	for _, r := range []float64{0, -3} {
		got := catalog.FindCandidates(reg, model.Vec3{}, r)
		if len(got) != 2 || got[0].ID() != "b" {
			t.Fatalf("radius %v: got %v", r, ids(got))
		}
	}
}

type panicRegistry struct{}

func (panicRegistry) Containers() []capability.Container { panic("registry gone") }

func TestFindCandidatesMissingRegistry(t *testing.T) {
	if got := catalog.FindCandidates(nil, model.Vec3{}, 10); len(got) != 0 {
		t.Fatalf("expected empty result, got %v", ids(got))
	}
	if got := catalog.FindCandidates(panicRegistry{}, model.Vec3{}, 10); len(got) != 0 {
		t.Fatalf("expected empty result, got %v", ids(got))
	}
}

func TestNearest(t *testing.T) {
	cs := []catalog.Candidate{{Order: 0}, {Order: 1}, {Order: 2}}
	if got := catalog.Nearest(cs, 2); len(got) != 2 {
		t.Fatalf("len=%d", len(got))
	}
	if got := catalog.Nearest(cs, 0); len(got) != 1 {
		t.Fatalf("max<1 should keep one, got %d", len(got))
	}
	if got := catalog.Nearest(cs, 10); len(got) != 3 {
		t.Fatalf("len=%d", len(got))
	}
}
