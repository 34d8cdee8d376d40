package mapview

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"botmap/pkg/logger"
)

// Backend is the part of the world API the renderer needs.
type Backend interface {
	MapData(ctx context.Context) (*MapSnapshot, error)
	Terrain(ctx context.Context) ([]TerrainCell, error)
	RecentInteractions(ctx context.Context) ([]RecentInteraction, error)
	Config(ctx context.Context) (*AppConfig, error)
	Airports(ctx context.Context) ([]Airport, error)
	MoveHistory(ctx context.Context, botID BotID) (*MoveHistory, error)
	UseAirport(ctx context.Context, botID BotID, airportID AirportID) (*AirportJoin, error)
	Weather(ctx context.Context) (*Weather, error)
}

// State is the lifecycle of a render context
type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateRendered
	StateUpdating
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateRendered:
		return "rendered"
	case StateUpdating:
		return "updating"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Overlay is a user-toggleable display option
type Overlay string

const (
	OverlayHomes        Overlay = "homes"
	OverlayInteractions Overlay = "interactions"
	OverlayAirports     Overlay = "airports"
	OverlayVisited      Overlay = "visited"
	OverlayPaths        Overlay = "paths"
)

// ParseOverlay accepts singular and plural overlay names.
func ParseOverlay(name string) (Overlay, bool) {
	switch name {
	case "home", "homes":
		return OverlayHomes, true
	case "interaction", "interactions":
		return OverlayInteractions, true
	case "airport", "airports":
		return OverlayAirports, true
	case "visited":
		return OverlayVisited, true
	case "path", "paths":
		return OverlayPaths, true
	}
	return "", false
}

// Toggles holds the on/off state of every overlay
type Toggles struct {
	Homes        bool `json:"homes"`
	Interactions bool `json:"interactions"`
	Airports     bool `json:"airports"`
	Visited      bool `json:"visited"`
	Paths        bool `json:"paths"`
}

// Get reports whether an overlay is on.
func (t Toggles) Get(o Overlay) bool {
	switch o {
	case OverlayHomes:
		return t.Homes
	case OverlayInteractions:
		return t.Interactions
	case OverlayAirports:
		return t.Airports
	case OverlayVisited:
		return t.Visited
	case OverlayPaths:
		return t.Paths
	}
	return false
}

func (t *Toggles) set(o Overlay, on bool) {
	switch o {
	case OverlayHomes:
		t.Homes = on
	case OverlayInteractions:
		t.Interactions = on
	case OverlayAirports:
		t.Airports = on
	case OverlayVisited:
		t.Visited = on
	case OverlayPaths:
		t.Paths = on
	}
}

// Zoom limits for the cell size in pixels
const (
	MinCellSize = 4
	MaxCellSize = 120
)

// Settings are the viewer's display preferences
type Settings struct {
	Toggles   Toggles   `json:"toggles"`
	CellSize  int       `json:"cell_size"` // 0 uses the backend's cell size
	PathStyle PathStyle `json:"path_style"`
}

// DefaultSettings mirrors the map page's initial controls.
func DefaultSettings() Settings {
	return Settings{
		Toggles: Toggles{
			Homes:        true,
			Interactions: true,
			Airports:     true,
			Paths:        true,
		},
		PathStyle: PathDotted,
	}
}

// Pass describes one completed render or partial update
type Pass struct {
	ID      uuid.UUID     `json:"id"`
	Kind    string        `json:"kind"`
	At      time.Time     `json:"at"`
	State   string        `json:"state"`
	Cells   int           `json:"cells"`
	Markers map[Layer]int `json:"markers"`
}

// RenderContext owns everything the map view shows: the latest snapshot,
// the grid built from it, airports, the current selection and its move
// history, and the display settings. All mutation goes through its methods.
// Network fetches run outside the lock so the two pollers and user actions
// can interleave; whichever result lands last is what is drawn.
type RenderContext struct {
	backend Backend
	session uuid.UUID

	mu           sync.Mutex
	state        State
	settings     Settings
	config       *AppConfig
	snapshot     *MapSnapshot
	terrain      []TerrainCell
	airports     []Airport
	weather      *Weather
	recent       []RecentInteraction
	grid         *Grid
	selected     BotID
	hasSelection bool
	history      *MoveHistory
	path         []PathSegment
	lastPass     Pass
	lastErr      string
	updatedAt    time.Time

	listeners []func(Pass)
}

// NewRenderContext creates an unloaded render context.
func NewRenderContext(backend Backend, settings Settings) *RenderContext {
	if settings.PathStyle == "" {
		settings.PathStyle = PathDotted
	}
	return &RenderContext{
		backend:  backend,
		session:  uuid.New(),
		state:    StateUnloaded,
		settings: settings,
	}
}

// Session identifies this render context in logs and frames.
func (rc *RenderContext) Session() uuid.UUID {
	return rc.session
}

// OnPass registers fn to run after every pass. fn runs without the lock held.
func (rc *RenderContext) OnPass(fn func(Pass)) {
	rc.mu.Lock()
	rc.listeners = append(rc.listeners, fn)
	rc.mu.Unlock()
}

// State returns the current lifecycle state.
func (rc *RenderContext) State() State {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.state
}

// Settings returns the current display settings.
func (rc *RenderContext) Settings() Settings {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.settings
}

func (rc *RenderContext) emit(p Pass) {
	rc.mu.Lock()
	listeners := append([]func(Pass){}, rc.listeners...)
	rc.mu.Unlock()
	for _, fn := range listeners {
		fn(p)
	}
}

func (rc *RenderContext) log() *logrus.Entry {
	return logger.Log.WithField("session", rc.session.String())
}

// beginUpdate moves Unloaded→Loading or Rendered→Updating.
func (rc *RenderContext) beginUpdate() {
	rc.mu.Lock()
	switch rc.state {
	case StateUnloaded:
		rc.state = StateLoading
	case StateRendered:
		rc.state = StateUpdating
	}
	rc.mu.Unlock()
}

// failUpdate records err and falls back to the last good state: Rendered
// when something was drawn before, Unloaded otherwise.
func (rc *RenderContext) failUpdate(err error) {
	rc.mu.Lock()
	rc.lastErr = UserMessage(err)
	if rc.grid != nil && rc.snapshot != nil {
		rc.state = StateRendered
	} else {
		rc.state = StateUnloaded
	}
	rc.mu.Unlock()
}

func (rc *RenderContext) recordErr(err error) {
	rc.mu.Lock()
	rc.lastErr = UserMessage(err)
	rc.mu.Unlock()
}

func (rc *RenderContext) cellSizeLocked() int {
	if rc.settings.CellSize > 0 {
		return rc.settings.CellSize
	}
	if rc.snapshot != nil && rc.snapshot.MapInfo.CellSize > 0 {
		return rc.snapshot.MapInfo.CellSize
	}
	if rc.config != nil && rc.config.Map.CellSize > 0 {
		return rc.config.Map.CellSize
	}
	return DefaultConfig().Map.CellSize
}

func (rc *RenderContext) paletteLocked() Palette {
	if rc.config == nil {
		return DefaultConfig().Colors
	}
	return rc.config.Colors
}

func (rc *RenderContext) newPassLocked(kind string) Pass {
	p := Pass{
		ID:      uuid.New(),
		Kind:    kind,
		At:      time.Now(),
		State:   rc.state.String(),
		Markers: make(map[Layer]int),
	}
	if rc.grid != nil {
		p.Cells = rc.grid.Len()
		for _, layer := range Layers {
			p.Markers[layer] = rc.grid.CountLayer(layer)
		}
	}
	rc.lastPass = p
	rc.updatedAt = p.At
	return p
}

// renderLocked rebuilds the grid from scratch and paints every enabled layer.
func (rc *RenderContext) renderLocked(kind string) Pass {
	info := rc.snapshot.MapInfo
	info.CellSize = rc.cellSizeLocked()
	if rc.grid == nil {
		rc.grid = NewGrid(info)
	} else {
		rc.grid.Rebuild(info)
	}

	palette := rc.paletteLocked()
	terrain := rc.terrain
	if len(rc.snapshot.Terrain) > 0 {
		terrain = rc.snapshot.Terrain
	}
	ApplyTerrain(rc.grid, terrain, palette.Terrain)

	if rc.settings.Toggles.Homes {
		PlaceHomeMarkers(rc.grid, rc.snapshot.BotHomes)
	}
	PlaceBotMarkers(rc.grid, rc.snapshot.Bots, palette.Bots)
	if rc.settings.Toggles.Interactions {
		PlaceInteractionMarkers(rc.grid, rc.snapshot.Interactions)
	}
	if rc.settings.Toggles.Airports {
		PlaceAirportMarkers(rc.grid, rc.airports)
	}
	rc.redrawHistoryLocked()

	rc.state = StateRendered
	rc.lastErr = ""
	return rc.newPassLocked(kind)
}

// redrawHistoryLocked redraws path segments and visited cells for the
// cached move history.
func (rc *RenderContext) redrawHistoryLocked() {
	rc.path = nil
	if rc.grid != nil {
		rc.grid.ClearLayer(LayerVisited)
	}
	if rc.history == nil {
		return
	}
	if rc.settings.Toggles.Paths {
		rc.path = BuildPath(rc.history, rc.cellSizeLocked(), rc.settings.PathStyle)
	}
	if rc.settings.Toggles.Visited && rc.grid != nil {
		MarkVisited(rc.grid, VisitedCells(rc.history))
	}
}

// LoadConfig fetches the viewer configuration, falling back to defaults.
func (rc *RenderContext) LoadConfig(ctx context.Context) {
	cfg := ConfigOrDefault(ctx, rc.backend)
	rc.mu.Lock()
	rc.config = cfg
	rc.mu.Unlock()
}

// LoadSnapshot fetches the world snapshot and re-renders the whole grid.
// On failure the last good grid stays in place and the error is logged.
func (rc *RenderContext) LoadSnapshot(ctx context.Context) error {
	rc.beginUpdate()

	snap, err := rc.backend.MapData(ctx)
	if err != nil {
		rc.failUpdate(err)
		rc.log().WithError(err).Error("Error loading map")
		return err
	}

	rc.mu.Lock()
	rc.snapshot = snap
	pass := rc.renderLocked("full")
	rc.mu.Unlock()

	rc.log().WithFields(logrus.Fields{
		"pass":  pass.ID.String(),
		"bots":  len(snap.Bots),
		"cells": pass.Cells,
	}).Debug("Map rendered")
	rc.emit(pass)
	return nil
}

// Restore renders previously saved data without contacting the backend.
func (rc *RenderContext) Restore(snap *MapSnapshot, terrain []TerrainCell, airports []Airport) {
	if snap == nil || !snap.MapInfo.Valid() {
		return
	}
	rc.mu.Lock()
	rc.snapshot = snap
	rc.terrain = terrain
	rc.airports = airports
	pass := rc.renderLocked("restore")
	rc.mu.Unlock()
	rc.emit(pass)
}

// LoadTerrain fetches the terrain layer and repaints cell backgrounds.
func (rc *RenderContext) LoadTerrain(ctx context.Context) error {
	terrain, err := rc.backend.Terrain(ctx)
	if err != nil {
		rc.recordErr(err)
		rc.log().WithError(err).Error("Error loading terrain")
		return err
	}

	rc.mu.Lock()
	rc.terrain = terrain
	if rc.grid == nil {
		rc.mu.Unlock()
		return nil
	}
	rc.grid.ClearTerrain()
	ApplyTerrain(rc.grid, terrain, rc.paletteLocked().Terrain)
	pass := rc.newPassLocked("terrain")
	rc.mu.Unlock()

	rc.emit(pass)
	return nil
}

// LoadAirports fetches airports and redraws the airport layer.
func (rc *RenderContext) LoadAirports(ctx context.Context) error {
	airports, err := rc.backend.Airports(ctx)
	if err != nil {
		rc.recordErr(err)
		rc.log().WithError(err).Error("Error loading airports")
		return err
	}

	rc.mu.Lock()
	rc.airports = airports
	if rc.grid == nil {
		rc.mu.Unlock()
		return nil
	}
	if rc.settings.Toggles.Airports {
		PlaceAirportMarkers(rc.grid, airports)
	}
	pass := rc.newPassLocked("airports")
	rc.mu.Unlock()

	rc.emit(pass)
	return nil
}

// LoadWeather fetches the latest weather reading.
func (rc *RenderContext) LoadWeather(ctx context.Context) error {
	w, err := rc.backend.Weather(ctx)
	if err != nil {
		rc.log().WithError(err).Warn("Error loading weather")
		return err
	}
	rc.mu.Lock()
	rc.weather = w
	rc.mu.Unlock()
	return nil
}

// PollInteractions refreshes the recent interaction feed.
func (rc *RenderContext) PollInteractions(ctx context.Context) error {
	rows, err := rc.backend.RecentInteractions(ctx)
	if err != nil {
		rc.log().WithError(err).Warn("Error loading recent interactions")
		return err
	}

	rc.mu.Lock()
	rc.recent = rows
	pass := rc.newPassLocked("interactions")
	rc.mu.Unlock()

	rc.emit(pass)
	return nil
}

// Refresh runs a full refresh: config, snapshot, terrain, airports and
// weather. Each part fails independently; the combined error lists every
// failure.
func (rc *RenderContext) Refresh(ctx context.Context) error {
	var result *multierror.Error

	rc.LoadConfig(ctx)
	if err := rc.LoadSnapshot(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	if err := rc.LoadTerrain(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	if err := rc.LoadAirports(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	if err := rc.LoadWeather(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// SetOverlay turns an overlay on or off. The overlay's markers are always
// removed first and, when turning on, redrawn from current data, so
// repeated toggles never duplicate markers.
func (rc *RenderContext) SetOverlay(ctx context.Context, overlay Overlay, on bool) error {
	rc.mu.Lock()
	switch overlay {
	case OverlayHomes, OverlayInteractions, OverlayAirports, OverlayVisited, OverlayPaths:
	default:
		rc.mu.Unlock()
		return fmt.Errorf("unknown overlay %q", overlay)
	}
	rc.settings.Toggles.set(overlay, on)

	if rc.grid == nil || rc.snapshot == nil {
		rc.mu.Unlock()
		return nil
	}

	needHistory := false
	switch overlay {
	case OverlayHomes:
		rc.grid.ClearLayer(LayerHome)
		if on {
			PlaceHomeMarkers(rc.grid, rc.snapshot.BotHomes)
		}
	case OverlayInteractions:
		rc.grid.ClearLayer(LayerInteraction)
		if on {
			PlaceInteractionMarkers(rc.grid, rc.snapshot.Interactions)
		}
	case OverlayAirports:
		rc.grid.ClearLayer(LayerAirport)
		if on {
			PlaceAirportMarkers(rc.grid, rc.airports)
		}
	case OverlayVisited, OverlayPaths:
		rc.redrawHistoryLocked()
		needHistory = on && rc.hasSelection && rc.history == nil
	}
	pass := rc.newPassLocked("overlay:" + string(overlay))
	selected := rc.selected
	rc.mu.Unlock()

	rc.emit(pass)
	if needHistory {
		return rc.DrawMoveHistory(ctx, selected)
	}
	return nil
}

// SetZoom changes the cell size and re-renders the grid.
func (rc *RenderContext) SetZoom(cellSize int) error {
	if cellSize < MinCellSize || cellSize > MaxCellSize {
		return fmt.Errorf("cell size %d outside [%d, %d]", cellSize, MinCellSize, MaxCellSize)
	}

	rc.mu.Lock()
	rc.settings.CellSize = cellSize
	if rc.snapshot == nil {
		rc.mu.Unlock()
		return nil
	}
	pass := rc.renderLocked("zoom")
	rc.mu.Unlock()

	rc.emit(pass)
	return nil
}

// SetPathStyle changes how move paths are stroked and redraws them.
func (rc *RenderContext) SetPathStyle(style PathStyle) {
	rc.mu.Lock()
	rc.settings.PathStyle = style
	if rc.history == nil {
		rc.mu.Unlock()
		return
	}
	rc.redrawHistoryLocked()
	pass := rc.newPassLocked("path-style")
	rc.mu.Unlock()

	rc.emit(pass)
}

// SelectBot makes a bot the current selection and returns it. When move
// paths or visited cells are shown, its move history is fetched and drawn.
func (rc *RenderContext) SelectBot(ctx context.Context, id BotID) (Bot, error) {
	rc.mu.Lock()
	if rc.snapshot == nil {
		rc.mu.Unlock()
		return Bot{}, ErrNotLoaded
	}
	bot, ok := rc.snapshot.FindBot(id)
	if !ok {
		rc.mu.Unlock()
		return Bot{}, fmt.Errorf("bot %d: %w", id, ErrUnknownBot)
	}
	rc.selected = id
	rc.hasSelection = true
	rc.history = nil
	rc.redrawHistoryLocked()
	fetch := rc.settings.Toggles.Paths || rc.settings.Toggles.Visited
	pass := rc.newPassLocked("select")
	rc.mu.Unlock()

	rc.emit(pass)
	if fetch {
		// A failed history fetch leaves the selection in place without a path.
		_ = rc.DrawMoveHistory(ctx, id)
	}
	return bot, nil
}

// ClearSelection drops the selected bot and its path overlays.
func (rc *RenderContext) ClearSelection() {
	rc.mu.Lock()
	rc.hasSelection = false
	rc.selected = 0
	rc.history = nil
	rc.redrawHistoryLocked()
	pass := rc.newPassLocked("deselect")
	rc.mu.Unlock()

	rc.emit(pass)
}

// Selected returns the selected bot id, if any.
func (rc *RenderContext) Selected() (BotID, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.selected, rc.hasSelection
}

// DrawMoveHistory fetches a bot's move history, clears the previous path
// overlays and draws the new ones. A result for a bot that is no longer
// selected is discarded.
func (rc *RenderContext) DrawMoveHistory(ctx context.Context, id BotID) error {
	history, err := rc.backend.MoveHistory(ctx, id)
	if err != nil {
		rc.recordErr(err)
		rc.log().WithError(err).WithField("bot_id", id).Error("Error loading move history")
		return err
	}

	rc.mu.Lock()
	if !rc.hasSelection || rc.selected != id {
		rc.mu.Unlock()
		return nil
	}
	rc.history = history
	rc.redrawHistoryLocked()
	pass := rc.newPassLocked("move-history")
	rc.mu.Unlock()

	rc.emit(pass)
	return nil
}

// SelectLocation describes what is at (x, y) in the current snapshot.
func (rc *RenderContext) SelectLocation(x, y int) (LocationInfo, error) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.snapshot == nil || rc.grid == nil {
		return LocationInfo{}, ErrNotLoaded
	}
	if _, ok := rc.grid.Index(x, y); !ok {
		return LocationInfo{}, fmt.Errorf("%s: %w", Point{X: x, Y: y}, ErrOutOfBounds)
	}
	return SelectLocation(rc.snapshot, rc.airports, x, y), nil
}

// AirportPanel is the detail view of one airport
type AirportPanel struct {
	Airport          Airport `json:"airport"`
	QueueLength      int     `json:"queue_length"`
	SelectedBot      *BotID  `json:"selected_bot,omitempty"`
	SelectedPosition int     `json:"selected_position,omitempty"`
	CanJoin          bool    `json:"can_join"`
}

// AirportInfo returns the detail panel for an airport.
func (rc *RenderContext) AirportInfo(id AirportID) (AirportPanel, error) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	for _, a := range rc.airports {
		if a.ID != id {
			continue
		}
		panel := AirportPanel{Airport: a, QueueLength: len(a.Queue)}
		if rc.hasSelection {
			sel := rc.selected
			panel.SelectedBot = &sel
			panel.SelectedPosition = a.QueuePosition(sel)
			panel.CanJoin = true
		}
		return panel, nil
	}
	return AirportPanel{}, fmt.Errorf("airport %d: %w", id, ErrUnknownAirport)
}

// HomePanel is the detail view of a bot's home
type HomePanel struct {
	BotID    BotID  `json:"bot_id"`
	Name     string `json:"name"`
	Point    Point  `json:"point"`
	BotsHere []Bot  `json:"bots_here"`
}

// HomeInfo returns the detail panel for a bot's home.
func (rc *RenderContext) HomeInfo(id BotID) (HomePanel, error) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.snapshot == nil {
		return HomePanel{}, ErrNotLoaded
	}
	for _, home := range rc.snapshot.BotHomes {
		if home.ID != id || !home.Placed {
			continue
		}
		panel := HomePanel{BotID: id, Name: "Bot " + id.String(), Point: Point{X: home.X, Y: home.Y}, BotsHere: []Bot{}}
		if bot, ok := rc.snapshot.FindBot(id); ok {
			panel.Name = bot.DisplayName()
		}
		for _, b := range rc.snapshot.Bots {
			if b.X == home.X && b.Y == home.Y {
				panel.BotsHere = append(panel.BotsHere, b)
			}
		}
		return panel, nil
	}
	return HomePanel{}, fmt.Errorf("home of bot %d: %w", id, ErrUnknownBot)
}

// JoinAirportQueue asks the backend to queue a bot at an airport. On
// success the airports are re-fetched so the queue shown is the server's;
// on failure nothing local changes and the server's message is returned.
func (rc *RenderContext) JoinAirportQueue(ctx context.Context, botID BotID, airportID AirportID) (*AirportJoin, error) {
	entry := rc.log().WithFields(logrus.Fields{"bot_id": botID, "airport_id": airportID})

	join, err := rc.backend.UseAirport(ctx, botID, airportID)
	if err != nil {
		rc.recordErr(err)
		entry.WithError(err).Warn("Airport join rejected")
		return nil, err
	}
	entry.WithField("position", join.PositionInQueue).Info("Bot joined airport queue")

	if err := rc.LoadAirports(ctx); err != nil {
		entry.WithError(err).Warn("Airport refresh after join failed")
	}
	return join, nil
}

// Frame is a consistent copy of the render context for display
type Frame struct {
	Session   uuid.UUID           `json:"session"`
	State     string              `json:"state"`
	Pass      Pass                `json:"pass"`
	MapInfo   MapInfo             `json:"map_info"`
	Settings  Settings            `json:"settings"`
	Grid      *Grid               `json:"-"`
	Cells     []Cell              `json:"cells"`
	Path      []PathSegment       `json:"path"`
	Selected  *Bot                `json:"selected,omitempty"`
	Bots      []Bot               `json:"bots"`
	Airports  []Airport           `json:"airports"`
	Weather   *Weather            `json:"weather,omitempty"`
	Recent    []RecentInteraction `json:"recent"`
	LastError string              `json:"last_error,omitempty"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// Frame returns a copy of the current view.
func (rc *RenderContext) Frame() Frame {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	f := Frame{
		Session:   rc.session,
		State:     rc.state.String(),
		Pass:      rc.lastPass,
		Settings:  rc.settings,
		Cells:     []Cell{},
		Path:      append([]PathSegment{}, rc.path...),
		Bots:      []Bot{},
		Airports:  append([]Airport{}, rc.airports...),
		Recent:    append([]RecentInteraction{}, rc.recent...),
		LastError: rc.lastErr,
		UpdatedAt: rc.updatedAt,
	}
	if rc.weather != nil {
		w := *rc.weather
		f.Weather = &w
	}
	if rc.grid != nil {
		f.Grid = rc.grid.Clone()
		f.Cells = f.Grid.cells
		f.MapInfo = f.Grid.Info()
	}
	if rc.snapshot != nil {
		f.Bots = append(f.Bots, rc.snapshot.Bots...)
		if rc.hasSelection {
			if bot, ok := rc.snapshot.FindBot(rc.selected); ok {
				f.Selected = &bot
			}
		}
	}
	return f
}

// LastGood returns the data behind the current grid, for persisting.
func (rc *RenderContext) LastGood() (*MapSnapshot, []TerrainCell, []Airport) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.snapshot, append([]TerrainCell(nil), rc.terrain...), append([]Airport(nil), rc.airports...)
}
