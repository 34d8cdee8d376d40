package mapview

import (
	"fmt"
	"sort"
	"strings"
)

// Airport marker styling
const (
	AirportBaseSize   = 12
	AirportSizeCap    = 5
	AirportUrgent     = "#e74c3c"
	AirportIdle       = "#2980b9"
	AirportAlarm      = "#ff0000"
	AirportBorder     = "#ffffff"
	AirportAlarmRatio = 0.8
)

// HomeMarkerColor is the ring color of home markers.
const HomeMarkerColor = "#3498db"

// InteractionMarkerColor fills interaction markers.
const InteractionMarkerColor = "#f39c12"

// VisitedColor tints cells a selected bot has passed through.
const VisitedColor = "#64c8ff"

// MarkerStyle is the derived look of an airport marker
type MarkerStyle struct {
	Size   int
	Color  string
	Border string
}

// AirportStyle derives marker intensity from queue pressure. Size grows
// with the queue up to a cap, color flips once anyone is queued, and the
// border alarms once the queue exceeds 80% of capacity.
func AirportStyle(queueLen, capacity int) MarkerStyle {
	if queueLen < 0 {
		queueLen = 0
	}
	style := MarkerStyle{
		Size:   AirportBaseSize + min(queueLen, AirportSizeCap),
		Color:  AirportIdle,
		Border: AirportBorder,
	}
	if queueLen > 0 {
		style.Color = AirportUrgent
	}
	if float64(queueLen) > AirportAlarmRatio*float64(capacity) {
		style.Border = AirportAlarm
	}
	return style
}

// ApplyTerrain paints each terrain entry's cell from the palette. Entries
// with no palette color or outside the grid are left as they are.
func ApplyTerrain(g *Grid, terrain []TerrainCell, colors map[string]string) int {
	painted := 0
	for _, t := range terrain {
		cell := g.Cell(t.X, t.Y)
		if cell == nil {
			continue
		}
		color, ok := colors[t.Type]
		if !ok {
			continue
		}
		cell.Background = color
		cell.Terrain = t.Type
		cell.Title = fmt.Sprintf("%s (%d,%d)", t.Type, t.X, t.Y)
		painted++
	}
	return painted
}

// PlaceBotMarkers replaces the bot layer with one marker per bot at
// index y*width+x.
func PlaceBotMarkers(g *Grid, bots []Bot, colors map[BotID]string) int {
	g.ClearLayer(LayerBot)
	placed := 0
	for _, bot := range bots {
		i, ok := g.Index(bot.X, bot.Y)
		if !ok {
			continue
		}
		color, ok := colors[bot.ID]
		if !ok {
			color = FallbackBotColor
		}
		g.At(i).AddMarker(Marker{
			Layer: LayerBot,
			Key:   "bot:" + bot.ID.String(),
			Label: bot.ID.String(),
			Title: botTitle(bot),
			Color: color,
			BotID: bot.ID,
		})
		placed++
	}
	return placed
}

func botTitle(bot Bot) string {
	lastSeen := bot.LastSeen
	if t, ok := ParseTimestamp(bot.LastSeen); ok {
		lastSeen = t.Format("15:04:05")
	}
	return fmt.Sprintf("%s\nStatus: %s\nLast seen: %s", bot.DisplayName(), bot.Status, lastSeen)
}

// PlaceHomeMarkers replaces the home layer. Homes without coordinates are skipped.
func PlaceHomeMarkers(g *Grid, homes []BotHome) int {
	g.ClearLayer(LayerHome)
	placed := 0
	for _, home := range homes {
		if !home.Placed {
			continue
		}
		cell := g.Cell(home.X, home.Y)
		if cell == nil {
			continue
		}
		title := "Home of Bot " + home.ID.String()
		if home.Name != "" {
			title += " (" + home.Name + ")"
		}
		cell.AddMarker(Marker{
			Layer:  LayerHome,
			Key:    "home:" + home.ID.String(),
			Title:  title,
			Color:  "white",
			Border: HomeMarkerColor,
			Size:   10,
			BotID:  home.ID,
		})
		placed++
	}
	return placed
}

// PlaceAirportMarkers replaces the airport layer, styling each marker from
// its queue length.
func PlaceAirportMarkers(g *Grid, airports []Airport) int {
	g.ClearLayer(LayerAirport)
	placed := 0
	for _, a := range airports {
		cell := g.Cell(a.X, a.Y)
		if cell == nil {
			continue
		}
		queueLen := len(a.Queue)
		style := AirportStyle(queueLen, a.Capacity)

		status := "No queue"
		label := "✈"
		if queueLen > 0 {
			status = fmt.Sprintf("Queue: %d/%d", queueLen, a.Capacity)
			label = fmt.Sprintf("%d", queueLen)
		}

		cell.AddMarker(Marker{
			Layer:     LayerAirport,
			Key:       fmt.Sprintf("airport:%d", a.ID),
			Label:     label,
			Title:     fmt.Sprintf("✈ %s\nFee: $%.2f\n%s", a.Name, a.Fee, status),
			Color:     style.Color,
			Border:    style.Border,
			Size:      style.Size,
			AirportID: a.ID,
			Busy:      queueLen > 0,
		})
		placed++
	}
	return placed
}

// PlaceInteractionMarkers replaces the interaction layer.
func PlaceInteractionMarkers(g *Grid, interactions []Interaction) int {
	g.ClearLayer(LayerInteraction)
	placed := 0
	for _, in := range interactions {
		cell := g.Cell(in.X, in.Y)
		if cell == nil {
			continue
		}
		ids := make([]string, len(in.BotIDs))
		for i, id := range in.BotIDs {
			ids[i] = id.String()
		}
		when := in.When()
		if t, ok := ParseTimestamp(when); ok {
			when = t.Format("15:04:05")
		}
		cell.AddMarker(Marker{
			Layer: LayerInteraction,
			Key:   fmt.Sprintf("interaction:%s:%s", in.Type, groupKey(in.BotIDs)),
			Title: fmt.Sprintf("Bots %s interacted here\n%s", strings.Join(ids, ", "), when),
			Color: InteractionMarkerColor,
		})
		placed++
	}
	return placed
}

// MarkVisited replaces the visited layer with one tint per point.
func MarkVisited(g *Grid, points []Point) int {
	g.ClearLayer(LayerVisited)
	marked := 0
	for _, p := range points {
		cell := g.Cell(p.X, p.Y)
		if cell == nil {
			continue
		}
		cell.AddMarker(Marker{
			Layer: LayerVisited,
			Key:   "visited",
			Color: VisitedColor,
		})
		marked++
	}
	return marked
}

// groupKey is the order-independent key of a participant set.
func groupKey(ids []BotID) string {
	sorted := append([]BotID(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = id.String()
	}
	return strings.Join(parts, "-")
}
