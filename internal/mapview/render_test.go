package mapview

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// fakeBackend serves canned responses and counts calls.
type fakeBackend struct {
	mu sync.Mutex

	snapshot     *MapSnapshot
	snapshotErr  error
	terrain      []TerrainCell
	airports     []Airport
	airportsErr  error
	histories    map[BotID]*MoveHistory
	historyErr   error
	historyHook  func(BotID)
	joinErr      error
	weather      *Weather

	calls map[string]int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		snapshot: &MapSnapshot{
			MapInfo: MapInfo{Width: 5, Height: 5, CellSize: 20},
			Bots: []Bot{
				{ID: 1, Name: "Ada", X: 1, Y: 1},
				{ID: 2, Name: "Bob", X: 3, Y: 2},
			},
			BotHomes: []BotHome{{ID: 1, X: 0, Y: 0, Placed: true}},
			Interactions: []Interaction{
				{X: 1, Y: 1, Type: "plains", BotIDs: []BotID{1, 2}},
			},
		},
		terrain:  []TerrainCell{{X: 0, Y: 0, Type: "water"}},
		airports: []Airport{{ID: 1, X: 4, Y: 4, Name: "Hub", Capacity: 5, Queue: []BotID{2}}},
		histories: map[BotID]*MoveHistory{
			1: {BotID: 1, Moves: []Move{
				{From: Waypoint{X: 1, Y: 0}, To: Waypoint{X: 1, Y: 1}},
				{From: Waypoint{X: 0, Y: 0}, To: Waypoint{X: 1, Y: 0}},
			}},
			2: {BotID: 2, Moves: []Move{{From: Waypoint{X: 3, Y: 1}, To: Waypoint{X: 3, Y: 2}}}},
		},
		weather: &Weather{Condition: "Sunny"},
		calls:   make(map[string]int),
	}
}

func (f *fakeBackend) count(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeBackend) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeBackend) MapData(ctx context.Context) (*MapSnapshot, error) {
	f.count("map")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snapshotErr != nil {
		return nil, f.snapshotErr
	}
	snap := *f.snapshot
	return &snap, nil
}

func (f *fakeBackend) Terrain(ctx context.Context) ([]TerrainCell, error) {
	f.count("terrain")
	return f.terrain, nil
}

func (f *fakeBackend) RecentInteractions(ctx context.Context) ([]RecentInteraction, error) {
	f.count("recent")
	return []RecentInteraction{{BotID: 1, OtherBots: "Bob"}}, nil
}

func (f *fakeBackend) Config(ctx context.Context) (*AppConfig, error) {
	f.count("config")
	return nil, errors.New("config offline")
}

func (f *fakeBackend) Airports(ctx context.Context) ([]Airport, error) {
	f.count("airports")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.airportsErr != nil {
		return nil, f.airportsErr
	}
	return append([]Airport(nil), f.airports...), nil
}

func (f *fakeBackend) MoveHistory(ctx context.Context, id BotID) (*MoveHistory, error) {
	f.count("history")
	if f.historyHook != nil {
		f.historyHook(id)
	}
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	h, ok := f.histories[id]
	if !ok {
		return &MoveHistory{BotID: id}, nil
	}
	return h, nil
}

func (f *fakeBackend) UseAirport(ctx context.Context, botID BotID, airportID AirportID) (*AirportJoin, error) {
	f.count("join")
	if f.joinErr != nil {
		return nil, f.joinErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.airports {
		if f.airports[i].ID == airportID {
			f.airports[i].Queue = append(f.airports[i].Queue, botID)
			return &AirportJoin{Message: "queued", PositionInQueue: len(f.airports[i].Queue)}, nil
		}
	}
	return nil, &ServerError{Status: 404, Message: "Airport not found"}
}

func (f *fakeBackend) Weather(ctx context.Context) (*Weather, error) {
	f.count("weather")
	return f.weather, nil
}

func loadedContext(t *testing.T, settings Settings) (*RenderContext, *fakeBackend) {
	t.Helper()
	fb := newFakeBackend()
	rc := NewRenderContext(fb, settings)
	if err := rc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	return rc, fb
}

func TestRenderContext_StateTransitions(t *testing.T) {
	fb := newFakeBackend()
	rc := NewRenderContext(fb, DefaultSettings())
	if rc.State() != StateUnloaded {
		t.Fatalf("initial state = %s", rc.State())
	}

	var seen []string
	rc.OnPass(func(p Pass) { seen = append(seen, p.Kind) })

	if err := rc.LoadSnapshot(context.Background()); err != nil {
		t.Fatalf("LoadSnapshot() error = %v", err)
	}
	if rc.State() != StateRendered {
		t.Errorf("state after load = %s, want rendered", rc.State())
	}
	if len(seen) != 1 || seen[0] != "full" {
		t.Errorf("passes = %v, want [full]", seen)
	}
}

func TestRenderContext_InitialFailureStaysUnloaded(t *testing.T) {
	fb := newFakeBackend()
	fb.snapshotErr = ErrUnavailable
	rc := NewRenderContext(fb, DefaultSettings())

	if err := rc.LoadSnapshot(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if rc.State() != StateUnloaded {
		t.Errorf("state = %s, want unloaded", rc.State())
	}
	if f := rc.Frame(); f.LastError != "Backend unavailable" {
		t.Errorf("LastError = %q", f.LastError)
	}
}

func TestRenderContext_FailureKeepsLastGoodGrid(t *testing.T) {
	rc, fb := loadedContext(t, DefaultSettings())
	before := rc.Frame()

	fb.mu.Lock()
	fb.snapshotErr = errors.New("boom")
	fb.mu.Unlock()

	if err := rc.LoadSnapshot(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if rc.State() != StateRendered {
		t.Errorf("state = %s, want rendered", rc.State())
	}
	after := rc.Frame()
	if len(after.Cells) != len(before.Cells) || after.Pass.ID != before.Pass.ID {
		t.Error("grid changed after failed poll")
	}
	if got := after.Grid.Cell(1, 1).MarkersIn(LayerBot); len(got) != 1 {
		t.Errorf("bot markers lost: %+v", got)
	}
}

func TestRenderContext_RefreshAggregatesErrors(t *testing.T) {
	fb := newFakeBackend()
	fb.snapshotErr = ErrUnavailable
	fb.airportsErr = ErrMalformed
	rc := NewRenderContext(fb, DefaultSettings())

	err := rc.Refresh(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrUnavailable) || !errors.Is(err, ErrMalformed) {
		t.Errorf("combined error %v should wrap both failures", err)
	}
}

func TestRenderContext_RenderedLayers(t *testing.T) {
	rc, _ := loadedContext(t, DefaultSettings())
	g := rc.Frame().Grid

	if g.Cell(0, 0).Background != "#1e90ff" {
		t.Errorf("terrain not painted: %s", g.Cell(0, 0).Background)
	}
	if g.CountLayer(LayerHome) != 1 {
		t.Errorf("home markers = %d, want 1", g.CountLayer(LayerHome))
	}
	if g.CountLayer(LayerBot) != 2 {
		t.Errorf("bot markers = %d, want 2", g.CountLayer(LayerBot))
	}
	if g.CountLayer(LayerAirport) != 1 {
		t.Errorf("airport markers = %d, want 1", g.CountLayer(LayerAirport))
	}
	if g.Info().CellSize != 20 {
		t.Errorf("cell size = %d, want backend's 20", g.Info().CellSize)
	}
}

func TestRenderContext_ToggleIdempotent(t *testing.T) {
	overlays := []struct {
		overlay Overlay
		layer   Layer
	}{
		{OverlayHomes, LayerHome},
		{OverlayInteractions, LayerInteraction},
		{OverlayAirports, LayerAirport},
	}

	for _, tt := range overlays {
		t.Run(string(tt.overlay), func(t *testing.T) {
			rc, _ := loadedContext(t, DefaultSettings())
			ctx := context.Background()
			want := rc.Frame().Grid.CountLayer(tt.layer)

			if err := rc.SetOverlay(ctx, tt.overlay, false); err != nil {
				t.Fatal(err)
			}
			if got := rc.Frame().Grid.CountLayer(tt.layer); got != 0 {
				t.Errorf("markers after off = %d, want 0", got)
			}

			for i := 0; i < 3; i++ {
				if err := rc.SetOverlay(ctx, tt.overlay, true); err != nil {
					t.Fatal(err)
				}
			}
			if got := rc.Frame().Grid.CountLayer(tt.layer); got != want {
				t.Errorf("markers after off/on = %d, want %d", got, want)
			}
		})
	}
}

func TestRenderContext_SetOverlayUnknown(t *testing.T) {
	rc, _ := loadedContext(t, DefaultSettings())
	if err := rc.SetOverlay(context.Background(), Overlay("bots"), false); err == nil {
		t.Error("expected error for unknown overlay")
	}
}

func TestRenderContext_SelectBotDrawsHistory(t *testing.T) {
	settings := DefaultSettings()
	settings.Toggles.Visited = true
	rc, fb := loadedContext(t, settings)

	bot, err := rc.SelectBot(context.Background(), 1)
	if err != nil {
		t.Fatalf("SelectBot() error = %v", err)
	}
	if bot.Name != "Ada" {
		t.Errorf("bot = %+v", bot)
	}
	if fb.Calls("history") != 1 {
		t.Errorf("history calls = %d, want 1", fb.Calls("history"))
	}

	f := rc.Frame()
	if len(f.Path) != 2 {
		t.Fatalf("path segments = %d, want 2", len(f.Path))
	}
	if f.Path[0].Opacity != PathBaseOpacity {
		t.Errorf("newest edge opacity = %v", f.Path[0].Opacity)
	}
	if got := f.Grid.CountLayer(LayerVisited); got != 3 {
		t.Errorf("visited cells = %d, want 3", got)
	}
	if f.Selected == nil || f.Selected.ID != 1 {
		t.Errorf("Selected = %+v", f.Selected)
	}

	// Selecting another bot replaces the overlays rather than adding to them.
	if _, err := rc.SelectBot(context.Background(), 2); err != nil {
		t.Fatal(err)
	}
	f = rc.Frame()
	if len(f.Path) != 1 || f.Grid.CountLayer(LayerVisited) != 2 {
		t.Errorf("after reselect: path=%d visited=%d", len(f.Path), f.Grid.CountLayer(LayerVisited))
	}
}

func TestRenderContext_SelectBotErrors(t *testing.T) {
	rc := NewRenderContext(newFakeBackend(), DefaultSettings())
	if _, err := rc.SelectBot(context.Background(), 1); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("unloaded SelectBot error = %v", err)
	}

	rc, _ = loadedContext(t, DefaultSettings())
	if _, err := rc.SelectBot(context.Background(), 99); !errors.Is(err, ErrUnknownBot) {
		t.Errorf("unknown bot error = %v", err)
	}
}

func TestRenderContext_HistoryFailureKeepsSelection(t *testing.T) {
	rc, fb := loadedContext(t, DefaultSettings())
	fb.historyErr = ErrUnavailable

	if _, err := rc.SelectBot(context.Background(), 1); err != nil {
		t.Fatalf("SelectBot() error = %v", err)
	}
	if id, ok := rc.Selected(); !ok || id != 1 {
		t.Errorf("Selected() = %d, %v", id, ok)
	}
	if len(rc.Frame().Path) != 0 {
		t.Error("path drawn despite failed fetch")
	}
}

func TestRenderContext_SupersededHistoryDiscarded(t *testing.T) {
	rc, _ := loadedContext(t, DefaultSettings())
	ctx := context.Background()

	if _, err := rc.SelectBot(ctx, 2); err != nil {
		t.Fatal(err)
	}
	// The user picks bot 2 while the fetch for bot 1 is still in flight.
	if err := rc.DrawMoveHistory(ctx, 1); err != nil {
		t.Fatal(err)
	}
	f := rc.Frame()
	if len(f.Path) != 1 || f.Path[0].To != (Point{X: 3, Y: 2}) {
		t.Errorf("stale history replaced current path: %+v", f.Path)
	}
}

func TestRenderContext_HistoryDiscardedAfterClear(t *testing.T) {
	settings := DefaultSettings()
	settings.Toggles.Visited = true
	rc, fb := loadedContext(t, settings)

	// The selection is cleared while the fetch for bot 1 is in flight.
	fb.historyHook = func(BotID) { rc.ClearSelection() }
	if _, err := rc.SelectBot(context.Background(), 1); err != nil {
		t.Fatal(err)
	}

	f := rc.Frame()
	if f.Selected != nil {
		t.Errorf("selected = %+v, want none", f.Selected)
	}
	if len(f.Path) != 0 || f.Grid.CountLayer(LayerVisited) != 0 {
		t.Errorf("deselected bot drawn: path=%d visited=%d", len(f.Path), f.Grid.CountLayer(LayerVisited))
	}
}

func TestRenderContext_PathsOffSkipsFetch(t *testing.T) {
	settings := DefaultSettings()
	settings.Toggles.Paths = false
	rc, fb := loadedContext(t, settings)

	if _, err := rc.SelectBot(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	if fb.Calls("history") != 0 {
		t.Errorf("history fetched with paths and visited off")
	}

	if err := rc.SetOverlay(context.Background(), OverlayPaths, true); err != nil {
		t.Fatal(err)
	}
	if fb.Calls("history") != 1 || len(rc.Frame().Path) != 2 {
		t.Errorf("turning paths on should fetch and draw history")
	}
}

func TestRenderContext_JoinAirportQueue(t *testing.T) {
	rc, fb := loadedContext(t, DefaultSettings())
	ctx := context.Background()
	fetched := fb.Calls("airports")

	join, err := rc.JoinAirportQueue(ctx, 1, 1)
	if err != nil {
		t.Fatalf("JoinAirportQueue() error = %v", err)
	}
	if join.PositionInQueue != 2 {
		t.Errorf("position = %d, want 2", join.PositionInQueue)
	}
	if fb.Calls("airports") != fetched+1 {
		t.Error("airports not re-fetched after join")
	}
	panel, err := rc.AirportInfo(1)
	if err != nil {
		t.Fatal(err)
	}
	if panel.QueueLength != 2 {
		t.Errorf("queue length = %d, want 2", panel.QueueLength)
	}
	if label := rc.Frame().Grid.Cell(4, 4).MarkersIn(LayerAirport)[0].Label; label != "2" {
		t.Errorf("airport label = %q, want 2", label)
	}
}

func TestRenderContext_FailedJoinLeavesQueue(t *testing.T) {
	rc, fb := loadedContext(t, DefaultSettings())
	fb.joinErr = &ServerError{Status: 400, Message: "Bot already in queue"}
	fetched := fb.Calls("airports")

	_, err := rc.JoinAirportQueue(context.Background(), 2, 1)
	if err == nil {
		t.Fatal("expected error")
	}
	if UserMessage(err) != "Bot already in queue" {
		t.Errorf("message = %q", UserMessage(err))
	}
	if fb.Calls("airports") != fetched {
		t.Error("airports re-fetched after failed join")
	}
	panel, _ := rc.AirportInfo(1)
	if panel.QueueLength != 1 {
		t.Errorf("queue length = %d, want unchanged 1", panel.QueueLength)
	}
}

func TestRenderContext_AirportInfo(t *testing.T) {
	rc, _ := loadedContext(t, DefaultSettings())

	panel, err := rc.AirportInfo(1)
	if err != nil {
		t.Fatal(err)
	}
	if panel.CanJoin || panel.SelectedBot != nil {
		t.Error("join offered without a selection")
	}

	if _, err := rc.SelectBot(context.Background(), 2); err != nil {
		t.Fatal(err)
	}
	panel, _ = rc.AirportInfo(1)
	if !panel.CanJoin || panel.SelectedPosition != 1 {
		t.Errorf("panel = %+v, want bot 2 at position 1", panel)
	}

	if _, err := rc.AirportInfo(42); !errors.Is(err, ErrUnknownAirport) {
		t.Errorf("unknown airport error = %v", err)
	}
}

func TestRenderContext_HomeInfo(t *testing.T) {
	rc, _ := loadedContext(t, DefaultSettings())

	panel, err := rc.HomeInfo(1)
	if err != nil {
		t.Fatal(err)
	}
	if panel.Name != "Ada" || panel.Point != (Point{}) {
		t.Errorf("panel = %+v", panel)
	}
	if _, err := rc.HomeInfo(2); !errors.Is(err, ErrUnknownBot) {
		t.Errorf("homeless bot error = %v", err)
	}
}

func TestRenderContext_SelectLocation(t *testing.T) {
	rc, _ := loadedContext(t, DefaultSettings())

	info, err := rc.SelectLocation(1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(info.BotsHere) != 1 || info.TotalInteractions != 1 {
		t.Errorf("info = %+v", info)
	}
	if _, err := rc.SelectLocation(5, 0); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("out of bounds error = %v", err)
	}
}

func TestRenderContext_SetZoom(t *testing.T) {
	rc, _ := loadedContext(t, DefaultSettings())

	if err := rc.SetZoom(40); err != nil {
		t.Fatal(err)
	}
	f := rc.Frame()
	if f.MapInfo.CellSize != 40 || f.Settings.CellSize != 40 {
		t.Errorf("cell size = %d/%d, want 40", f.MapInfo.CellSize, f.Settings.CellSize)
	}
	if f.Grid.CountLayer(LayerBot) != 2 {
		t.Error("markers lost on zoom")
	}

	for _, size := range []int{0, MinCellSize - 1, MaxCellSize + 1} {
		if err := rc.SetZoom(size); err == nil {
			t.Errorf("SetZoom(%d) should fail", size)
		}
	}
}

func TestRenderContext_SetPathStyle(t *testing.T) {
	rc, _ := loadedContext(t, DefaultSettings())
	if _, err := rc.SelectBot(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	rc.SetPathStyle(PathSolid)
	for _, s := range rc.Frame().Path {
		if s.Style != PathSolid {
			t.Fatalf("segment %d style = %s", s.Index, s.Style)
		}
	}
}

func TestRenderContext_Restore(t *testing.T) {
	fb := newFakeBackend()
	rc := NewRenderContext(fb, DefaultSettings())

	rc.Restore(fb.snapshot, fb.terrain, fb.airports)
	if rc.State() != StateRendered {
		t.Errorf("state = %s, want rendered", rc.State())
	}
	if fb.Calls("map") != 0 {
		t.Error("restore contacted the backend")
	}

	snap, terrain, airports := rc.LastGood()
	if snap == nil || len(terrain) != 1 || len(airports) != 1 {
		t.Errorf("LastGood() = %v, %v, %v", snap, terrain, airports)
	}
}

func TestRenderContext_PollInteractions(t *testing.T) {
	rc, _ := loadedContext(t, DefaultSettings())
	if err := rc.PollInteractions(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := rc.Frame().Recent; len(got) != 1 || got[0].OtherBots != "Bob" {
		t.Errorf("Recent = %+v", got)
	}
}

func TestRenderContext_LoadTerrainResetsDroppedCells(t *testing.T) {
	rc, fb := loadedContext(t, DefaultSettings())

	fb.terrain = []TerrainCell{{X: 1, Y: 0, Type: "forest"}}
	if err := rc.LoadTerrain(context.Background()); err != nil {
		t.Fatal(err)
	}

	g := rc.Frame().Grid
	if c := g.Cell(0, 0); c.Background != DefaultCellColor || c.Terrain != "" {
		t.Errorf("dropped cell kept old terrain: %+v", c)
	}
	if c := g.Cell(1, 0); c.Background != "#2d5a27" || c.Terrain != "forest" {
		t.Errorf("new terrain not painted: %+v", c)
	}
}
