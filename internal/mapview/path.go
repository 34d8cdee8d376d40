package mapview

import (
	"math"
)

// Move path fading: the newest edge is drawn at PathBaseOpacity and each
// older edge loses PathOpacityStep.
const (
	PathBaseOpacity = 0.8
	PathOpacityStep = 0.1
	PathColor       = "255, 100, 100"
)

// PathStyle selects how move segments are stroked
type PathStyle string

const (
	PathSolid  PathStyle = "solid"
	PathDotted PathStyle = "dotted"
)

// ParsePathStyle defaults unknown styles to solid.
func ParsePathStyle(s string) PathStyle {
	if PathStyle(s) == PathDotted {
		return PathDotted
	}
	return PathSolid
}

// PathSegment is one drawn move edge in pixel space
type PathSegment struct {
	Index   int       `json:"index"`
	From    Point     `json:"from"`
	To      Point     `json:"to"`
	X       float64   `json:"x"`
	Y       float64   `json:"y"`
	Length  float64   `json:"length"`
	Angle   float64   `json:"angle"` // degrees
	Opacity float64   `json:"opacity"`
	Style   PathStyle `json:"style"`
}

// PathOpacity returns the opacity for the index-th newest edge, clamped to [0, 1].
func PathOpacity(index int) float64 {
	o := PathBaseOpacity - float64(index)*PathOpacityStep
	// Round off float noise so 0.8-8*0.1 is exactly 0.
	o = math.Round(o*1000) / 1000
	if o < 0 {
		return 0
	}
	if o > 1 {
		return 1
	}
	return o
}

// cellCenter maps a grid coordinate to the pixel center of its cell. The
// +1 leaves room for the axis ruler drawn along the top and left edges.
func cellCenter(coord, cellSize int) float64 {
	return float64((coord+1)*cellSize) + float64(cellSize)/2
}

// BuildPath turns a move history into drawable segments, one per edge.
func BuildPath(history *MoveHistory, cellSize int, style PathStyle) []PathSegment {
	if history == nil {
		return nil
	}
	segments := make([]PathSegment, 0, len(history.Moves))
	for i, move := range history.Moves {
		fromX := cellCenter(move.From.X, cellSize)
		fromY := cellCenter(move.From.Y, cellSize)
		toX := cellCenter(move.To.X, cellSize)
		toY := cellCenter(move.To.Y, cellSize)
		dx, dy := toX-fromX, toY-fromY

		segments = append(segments, PathSegment{
			Index:   i,
			From:    move.From.Point(),
			To:      move.To.Point(),
			X:       fromX,
			Y:       fromY,
			Length:  math.Hypot(dx, dy),
			Angle:   math.Atan2(dy, dx) * 180 / math.Pi,
			Opacity: PathOpacity(i),
			Style:   style,
		})
	}
	return segments
}

// VisitedCells returns the distinct cells touched by a move history in
// first-seen order.
func VisitedCells(history *MoveHistory) []Point {
	if history == nil {
		return nil
	}
	seen := make(map[Point]bool)
	var out []Point
	add := func(p Point) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, move := range history.Moves {
		add(move.From.Point())
		add(move.To.Point())
	}
	return out
}
