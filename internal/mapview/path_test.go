package mapview

import (
	"math"
	"testing"
)

func TestPathOpacity(t *testing.T) {
	tests := []struct {
		index int
		want  float64
	}{
		{0, 0.8},
		{1, 0.7},
		{7, 0.1},
		{8, 0},
		{9, 0},
		{150, 0},
	}
	for _, tt := range tests {
		if got := PathOpacity(tt.index); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("PathOpacity(%d) = %v, want %v", tt.index, got, tt.want)
		}
	}
}

func TestBuildPath(t *testing.T) {
	history := &MoveHistory{
		BotID: 1,
		Moves: []Move{
			{From: Waypoint{X: 0, Y: 0}, To: Waypoint{X: 1, Y: 0}},
			{From: Waypoint{X: 1, Y: 0}, To: Waypoint{X: 1, Y: 1}},
		},
	}

	segs := BuildPath(history, 30, PathDotted)
	if len(segs) != 2 {
		t.Fatalf("segments = %d, want 2", len(segs))
	}

	first := segs[0]
	if first.X != 45 || first.Y != 45 {
		t.Errorf("first start = (%v, %v), want (45, 45)", first.X, first.Y)
	}
	if first.Length != 30 || first.Angle != 0 {
		t.Errorf("first length/angle = %v/%v, want 30/0", first.Length, first.Angle)
	}
	if math.Abs(segs[1].Angle-90) > 1e-9 {
		t.Errorf("second angle = %v, want 90", segs[1].Angle)
	}
	if segs[1].Opacity >= first.Opacity {
		t.Errorf("older edge should fade: %v >= %v", segs[1].Opacity, first.Opacity)
	}
	if first.Style != PathDotted {
		t.Errorf("style = %s, want dotted", first.Style)
	}
}

func TestBuildPath_LongHistoryNeverNegative(t *testing.T) {
	history := &MoveHistory{}
	for i := 0; i < 200; i++ {
		history.Moves = append(history.Moves, Move{From: Waypoint{X: i % 5}, To: Waypoint{X: (i + 1) % 5}})
	}
	for _, s := range BuildPath(history, 10, PathSolid) {
		if s.Opacity < 0 {
			t.Fatalf("segment %d opacity %v < 0", s.Index, s.Opacity)
		}
	}
}

func TestVisitedCells(t *testing.T) {
	history := &MoveHistory{Moves: []Move{
		{From: Waypoint{X: 0, Y: 0}, To: Waypoint{X: 1, Y: 0}},
		{From: Waypoint{X: 1, Y: 0}, To: Waypoint{X: 0, Y: 0}},
		{From: Waypoint{X: 0, Y: 0}, To: Waypoint{X: 0, Y: 1}},
	}}
	got := VisitedCells(history)
	want := []Point{{0, 0}, {1, 0}, {0, 1}}
	if len(got) != len(want) {
		t.Fatalf("VisitedCells = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("VisitedCells[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestParsePathStyle(t *testing.T) {
	if ParsePathStyle("dotted") != PathDotted {
		t.Error("dotted not parsed")
	}
	if ParsePathStyle("zigzag") != PathSolid {
		t.Error("unknown style should default to solid")
	}
}
