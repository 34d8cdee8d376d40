package mapview

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// BotID identifies a bot. The backend emits ids as numbers in most payloads
// but as strings in aggregated interaction rows, so both are accepted.
type BotID int

// UnmarshalJSON accepts 7, "7" and null.
func (id *BotID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	s := strings.Trim(string(data), `"`)
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid bot id %s: %w", data, err)
	}
	*id = BotID(n)
	return nil
}

func (id BotID) String() string {
	return strconv.Itoa(int(id))
}

// AirportID identifies an airport.
type AirportID int

// Point is a grid coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Point) String() string {
	return fmt.Sprintf("(%d, %d)", p.X, p.Y)
}

// MapInfo describes grid dimensions as reported by the backend
type MapInfo struct {
	Width    int `json:"width"`
	Height   int `json:"height"`
	CellSize int `json:"cell_size"`
}

// Valid reports whether a grid can be built from these dimensions.
func (m MapInfo) Valid() bool {
	return m.Width > 0 && m.Height > 0
}

// TerrainCell is one painted terrain entry
type TerrainCell struct {
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Type string `json:"type"`
}

// Bot is the last known location and status of a bot
type Bot struct {
	ID       BotID  `json:"id"`
	Name     string `json:"name"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Type     string `json:"type"`   // terrain type under the bot
	Status   string `json:"status"` // free-form status description
	LastSeen string `json:"last_seen"`
	HomeX    *int   `json:"home_x"`
	HomeY    *int   `json:"home_y"`
}

// DisplayName falls back to "Bot <id>" when the backend has no name.
func (b Bot) DisplayName() string {
	if b.Name != "" {
		return b.Name
	}
	return "Bot " + b.ID.String()
}

// Home returns the bot's home coordinate, if it has one.
func (b Bot) Home() (Point, bool) {
	if b.HomeX == nil || b.HomeY == nil {
		return Point{}, false
	}
	return Point{X: *b.HomeX, Y: *b.HomeY}, true
}

// BotHome is a home marker entry. Entries with null coordinates decode
// with Placed=false and are never drawn.
type BotHome struct {
	ID     BotID  `json:"id"`
	Name   string `json:"name"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Placed bool   `json:"-"`
}

// MarshalJSON writes null coordinates for an unplaced home.
func (h BotHome) MarshalJSON() ([]byte, error) {
	wire := struct {
		ID   BotID  `json:"id"`
		Name string `json:"name"`
		X    *int   `json:"x"`
		Y    *int   `json:"y"`
	}{ID: h.ID, Name: h.Name}
	if h.Placed {
		x, y := h.X, h.Y
		wire.X, wire.Y = &x, &y
	}
	return json.Marshal(wire)
}

func (h *BotHome) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	var wire struct {
		ID   BotID  `json:"id"`
		Name string `json:"name"`
		X    *int   `json:"x"`
		Y    *int   `json:"y"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	h.ID = wire.ID
	h.Name = wire.Name
	if wire.X != nil && wire.Y != nil {
		h.X, h.Y = *wire.X, *wire.Y
		h.Placed = true
	}
	return nil
}

// Interaction is an aggregated interaction row at one location
type Interaction struct {
	X               int      `json:"x"`
	Y               int      `json:"y"`
	Type            string   `json:"type"`
	BotIDs          []BotID  `json:"bot_ids"`
	BotNames        []string `json:"bot_names,omitempty"`
	LastInteraction string   `json:"last_interaction"`
	Timestamp       string   `json:"timestamp,omitempty"`
}

// When returns the best available time string for the interaction.
func (i Interaction) When() string {
	if i.LastInteraction != "" {
		return i.LastInteraction
	}
	return i.Timestamp
}

// MapSnapshot is one full world-state poll result. It is replaced
// wholesale on every poll and never merged with a previous one.
type MapSnapshot struct {
	MapInfo      MapInfo       `json:"map_info"`
	Terrain      []TerrainCell `json:"terrain,omitempty"`
	Bots         []Bot         `json:"bots"`
	BotHomes     []BotHome     `json:"bot_homes"`
	Interactions []Interaction `json:"interactions"`
}

// FindBot returns the bot with the given id.
func (s *MapSnapshot) FindBot(id BotID) (Bot, bool) {
	if s == nil {
		return Bot{}, false
	}
	for _, b := range s.Bots {
		if b.ID == id {
			return b, true
		}
	}
	return Bot{}, false
}

// RecentInteraction is a raw row from the recent interaction feed
type RecentInteraction struct {
	BotID        BotID  `json:"bot_id"`
	OtherBots    string `json:"other_bots"`
	LocationX    int    `json:"location_x"`
	LocationY    int    `json:"location_y"`
	LocationType string `json:"location_type"`
	Timestamp    string `json:"timestamp"`
}

// Airport is the server-authoritative state of one airport.
// The queue is FIFO and is never edited locally.
type Airport struct {
	ID            AirportID         `json:"id"`
	X             int               `json:"x"`
	Y             int               `json:"y"`
	Name          string            `json:"name"`
	Fee           float64           `json:"fee"`
	Capacity      int               `json:"capacity"`
	Destinations  []json.RawMessage `json:"destinations"`
	Queue         []BotID           `json:"queue"`
	LastDeparture string            `json:"last_departure,omitempty"`
}

// QueuePosition returns the 1-based position of a bot in the queue, or 0.
func (a Airport) QueuePosition(id BotID) int {
	for i, q := range a.Queue {
		if q == id {
			return i + 1
		}
	}
	return 0
}

// Waypoint is one end of a move edge
type Waypoint struct {
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Type string `json:"type,omitempty"`
}

func (w Waypoint) Point() Point {
	return Point{X: w.X, Y: w.Y}
}

// Move is one edge of a bot's path
type Move struct {
	From      Waypoint `json:"from"`
	To        Waypoint `json:"to"`
	Timestamp string   `json:"timestamp,omitempty"`
}

// MoveHistory lists a bot's moves, newest first.
type MoveHistory struct {
	BotID BotID  `json:"bot_id"`
	Moves []Move `json:"moves"`
}

// Palette maps terrain types and bot ids to CSS colors
type Palette struct {
	Terrain map[string]string `json:"terrain"`
	Bots    map[BotID]string  `json:"bots"`
}

// AppConfig is the backend's exported viewer configuration
type AppConfig struct {
	Map    MapInfo `json:"map"`
	Colors Palette `json:"colors"`
}

// Weather is the latest environmental reading
type Weather struct {
	Location    string `json:"location"`
	Temperature string `json:"temperature"`
	Condition   string `json:"condition"`
	Humidity    string `json:"humidity"`
	CollectedAt string `json:"collected_at"`
}

// Knowledge is one fact a bot holds
type Knowledge struct {
	ID         int64   `json:"id"`
	Fact       string  `json:"fact"`
	Source     string  `json:"source"`
	LearnedAt  string  `json:"learned_at"`
	Confidence float64 `json:"confidence"`
}

// BotSummary is an entry of the bot roster
type BotSummary struct {
	ID        BotID  `json:"id"`
	Name      string `json:"name"`
	Fullname  string `json:"fullname"`
	Species   string `json:"species"`
	CreatedAt string `json:"created_at"`
}

// Memory is one logged event of a bot
type Memory struct {
	ID        int64  `json:"id"`
	Event     string `json:"event"`
	EventType string `json:"event_type"`
	Timestamp string `json:"timestamp"`
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	time.RFC1123,
}

// ParseTimestamp parses the backend's SQLite and ISO timestamp formats.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
