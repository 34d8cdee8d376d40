package main

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/nsf/termbox-go"

	"botmap/internal/mapview"
)

// terrainColors maps known terrain types onto the terminal palette
var terrainColors = map[string]termbox.Attribute{
	"plains":   termbox.ColorGreen,
	"forest":   termbox.ColorGreen | termbox.AttrBold,
	"mountain": termbox.ColorWhite,
	"city":     termbox.ColorYellow,
	"water":    termbox.ColorBlue,
	"desert":   termbox.ColorYellow | termbox.AttrBold,
}

// glyph picks the character and foreground for one cell. The topmost
// layer wins, mirroring the browser's paint order.
func glyph(c mapview.Cell, path map[mapview.Point]bool) (rune, termbox.Attribute) {
	var ch rune = ' '
	fg := termbox.ColorDefault

	for _, layer := range mapview.Layers {
		for _, m := range c.MarkersIn(layer) {
			switch m.Layer {
			case mapview.LayerVisited:
				ch, fg = '·', termbox.ColorWhite
			case mapview.LayerHome:
				ch, fg = 'H', termbox.ColorYellow|termbox.AttrBold
			case mapview.LayerBot:
				ch, fg = botRune(m), termbox.ColorBlack|termbox.AttrBold
			case mapview.LayerInteraction:
				ch, fg = '*', termbox.ColorMagenta|termbox.AttrBold
			case mapview.LayerAirport:
				ch, fg = 'A', termbox.ColorCyan|termbox.AttrBold
				if m.Busy {
					fg = termbox.ColorRed | termbox.AttrBold
				}
			}
		}
	}
	if ch == ' ' && path[mapview.Point{X: c.X, Y: c.Y}] {
		ch, fg = '+', termbox.ColorRed
	}
	return ch, fg
}

// botRune is the last digit of the bot id.
func botRune(m mapview.Marker) rune {
	s := m.BotID.String()
	return rune(s[len(s)-1])
}

func background(c mapview.Cell) termbox.Attribute {
	if bg, ok := terrainColors[c.Terrain]; ok {
		return bg
	}
	return termbox.ColorDefault
}

// pathCells collects the endpoints of every visible path segment.
func pathCells(segments []mapview.PathSegment) map[mapview.Point]bool {
	cells := make(map[mapview.Point]bool)
	for _, s := range segments {
		if s.Opacity <= 0 {
			continue
		}
		cells[s.From] = true
		cells[s.To] = true
	}
	return cells
}

// statusLine summarizes overlays and the selection for the bottom row.
func statusLine(f mapview.Frame) string {
	on := func(b bool) string {
		if b {
			return "on"
		}
		return "off"
	}
	t := f.Settings.Toggles
	parts := []string{
		f.State,
		fmt.Sprintf("[h]omes:%s", on(t.Homes)),
		fmt.Sprintf("[i]nteractions:%s", on(t.Interactions)),
		fmt.Sprintf("[a]irports:%s", on(t.Airports)),
		fmt.Sprintf("[v]isited:%s", on(t.Visited)),
		fmt.Sprintf("[p]aths:%s", on(t.Paths)),
	}
	if f.Selected != nil {
		parts = append(parts, "selected: "+f.Selected.DisplayName())
	}
	if f.LastError != "" {
		parts = append(parts, "error: "+f.LastError)
	}
	return strings.Join(parts, "  ")
}

// describe renders a location panel as lines of text.
func describe(info mapview.LocationInfo) []string {
	lines := []string{"Location " + info.Point.String()}
	if info.Home != nil {
		lines = append(lines, "Home of "+info.Home.Name)
	}
	for _, b := range info.BotsHere {
		line := b.DisplayName()
		if b.Status != "" {
			line += " - " + b.Status
		}
		lines = append(lines, line)
	}
	for _, a := range info.Airports {
		lines = append(lines, fmt.Sprintf("%s: %d/%d queued", a.Name, len(a.Queue), a.Capacity))
	}
	if info.TotalInteractions > 0 {
		lines = append(lines, fmt.Sprintf("%d interactions", info.TotalInteractions))
		for _, g := range info.Groups {
			lines = append(lines, fmt.Sprintf("  %s (%d)", g.Label(), g.Count))
		}
	}
	return lines
}

func drawText(x, y int, s string, fg, bg termbox.Attribute) {
	for _, r := range s {
		termbox.SetCell(x, y, r, fg, bg)
		x += runewidth.RuneWidth(r)
	}
}
