package mapview

// Layer names an overlay class. Each layer is added and removed
// independently of the others.
type Layer string

const (
	LayerHome        Layer = "home"
	LayerBot         Layer = "bot"
	LayerInteraction Layer = "interaction"
	LayerAirport     Layer = "airport"
	LayerVisited     Layer = "visited"
)

// Layers lists every overlay layer in paint order (bottom first).
var Layers = []Layer{LayerVisited, LayerHome, LayerBot, LayerInteraction, LayerAirport}

// Marker is one overlay drawn on a cell
type Marker struct {
	Layer     Layer     `json:"layer"`
	Key       string    `json:"key"`
	Label     string    `json:"label,omitempty"`
	Title     string    `json:"title,omitempty"`
	Color     string    `json:"color,omitempty"`
	Border    string    `json:"border,omitempty"`
	Size      int       `json:"size,omitempty"`
	BotID     BotID     `json:"bot_id,omitempty"`
	AirportID AirportID `json:"airport_id,omitempty"`
	Busy      bool      `json:"busy,omitempty"`
}

// Cell is one grid square
type Cell struct {
	X          int      `json:"x"`
	Y          int      `json:"y"`
	Background string   `json:"background"`
	Terrain    string   `json:"terrain,omitempty"`
	Title      string   `json:"title"`
	Markers    []Marker `json:"markers,omitempty"`
}

// Outline is the cell border derived from its markers: busy airports
// first, then homes.
func (c *Cell) Outline() string {
	home := false
	for _, m := range c.Markers {
		if m.Layer == LayerAirport && m.Busy {
			return "#e74c3c"
		}
		if m.Layer == LayerHome {
			home = true
		}
	}
	if home {
		return "gold"
	}
	return ""
}

// AddMarker appends m, replacing an existing marker with the same layer
// and key.
func (c *Cell) AddMarker(m Marker) {
	for i, existing := range c.Markers {
		if existing.Layer == m.Layer && existing.Key == m.Key {
			c.Markers[i] = m
			return
		}
	}
	c.Markers = append(c.Markers, m)
}

// RemoveLayer drops every marker of the given layer.
func (c *Cell) RemoveLayer(layer Layer) {
	kept := c.Markers[:0]
	for _, m := range c.Markers {
		if m.Layer != layer {
			kept = append(kept, m)
		}
	}
	c.Markers = kept
}

// MarkersIn returns the markers of one layer.
func (c *Cell) MarkersIn(layer Layer) []Marker {
	var out []Marker
	for _, m := range c.Markers {
		if m.Layer == layer {
			out = append(out, m)
		}
	}
	return out
}

// Grid is a width×height array of cells addressed directly by coordinate.
type Grid struct {
	info  MapInfo
	cells []Cell
}

// NewGrid builds an empty grid for info.
func NewGrid(info MapInfo) *Grid {
	g := &Grid{}
	g.Rebuild(info)
	return g
}

// Rebuild discards every cell and recreates width×height empty cells.
// Calling it twice with the same info yields the same grid.
func (g *Grid) Rebuild(info MapInfo) {
	if info.Width < 0 {
		info.Width = 0
	}
	if info.Height < 0 {
		info.Height = 0
	}
	g.info = info
	g.cells = make([]Cell, info.Width*info.Height)
	for y := 0; y < info.Height; y++ {
		for x := 0; x < info.Width; x++ {
			g.cells[y*info.Width+x] = Cell{
				X:          x,
				Y:          y,
				Background: DefaultCellColor,
				Title:      Point{X: x, Y: y}.String(),
			}
		}
	}
}

// Info returns the dimensions the grid was built with.
func (g *Grid) Info() MapInfo {
	return g.info
}

// Len returns the number of cells.
func (g *Grid) Len() int {
	return len(g.cells)
}

// Index returns the row-major index y*width+x, or false when out of range.
func (g *Grid) Index(x, y int) (int, bool) {
	if x < 0 || y < 0 || x >= g.info.Width || y >= g.info.Height {
		return 0, false
	}
	return y*g.info.Width + x, true
}

// Cell returns the cell at (x, y), or nil when out of range.
func (g *Grid) Cell(x, y int) *Cell {
	i, ok := g.Index(x, y)
	if !ok {
		return nil
	}
	return &g.cells[i]
}

// At returns the cell at a row-major index.
func (g *Grid) At(i int) *Cell {
	if i < 0 || i >= len(g.cells) {
		return nil
	}
	return &g.cells[i]
}

// Rows returns the cells grouped by row. The slices alias the grid.
func (g *Grid) Rows() [][]Cell {
	rows := make([][]Cell, g.info.Height)
	for y := range rows {
		rows[y] = g.cells[y*g.info.Width : (y+1)*g.info.Width]
	}
	return rows
}

// ClearLayer removes one overlay layer from every cell.
func (g *Grid) ClearLayer(layer Layer) {
	for i := range g.cells {
		g.cells[i].RemoveLayer(layer)
	}
}

// ClearTerrain resets every cell to the default background.
func (g *Grid) ClearTerrain() {
	for i := range g.cells {
		c := &g.cells[i]
		c.Background = DefaultCellColor
		c.Terrain = ""
		c.Title = Point{X: c.X, Y: c.Y}.String()
	}
}

// CountLayer returns how many markers of a layer are on the grid.
func (g *Grid) CountLayer(layer Layer) int {
	n := 0
	for i := range g.cells {
		for _, m := range g.cells[i].Markers {
			if m.Layer == layer {
				n++
			}
		}
	}
	return n
}

// Clone returns a deep copy safe to hand to another goroutine.
func (g *Grid) Clone() *Grid {
	c := &Grid{info: g.info, cells: make([]Cell, len(g.cells))}
	for i, cell := range g.cells {
		c.cells[i] = cell
		if len(cell.Markers) > 0 {
			c.cells[i].Markers = append([]Marker(nil), cell.Markers...)
		}
	}
	return c
}
