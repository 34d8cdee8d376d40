package main

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"botmap/internal/mapview"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage(filepath.Join(t.TempDir(), "botmap.db"))
	if err != nil {
		t.Fatalf("NewStorage() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStorage_Settings(t *testing.T) {
	s := newTestStorage(t)

	if _, err := s.LoadSettings(); err != sql.ErrNoRows {
		t.Fatalf("empty LoadSettings() error = %v, want sql.ErrNoRows", err)
	}

	want := mapview.Settings{
		Toggles:   mapview.Toggles{Homes: true, Visited: true},
		CellSize:  24,
		PathStyle: mapview.PathSolid,
	}
	if err := s.SaveSettings(want); err != nil {
		t.Fatal(err)
	}
	// A second save replaces the single settings row.
	want.CellSize = 36
	if err := s.SaveSettings(want); err != nil {
		t.Fatal(err)
	}

	got, err := s.LoadSettings()
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("LoadSettings() = %+v, want %+v", got, want)
	}
}

func TestStorage_Snapshot(t *testing.T) {
	s := newTestStorage(t)

	if _, err := s.LoadSnapshot(); err != sql.ErrNoRows {
		t.Fatalf("empty LoadSnapshot() error = %v, want sql.ErrNoRows", err)
	}

	snap := &mapview.MapSnapshot{
		MapInfo:  mapview.MapInfo{Width: 4, Height: 3, CellSize: 30},
		Bots:     []mapview.Bot{{ID: 1, Name: "Ada", X: 2, Y: 1}},
		BotHomes: []mapview.BotHome{{ID: 1, X: 0, Y: 0, Placed: true}},
	}
	terrain := []mapview.TerrainCell{{X: 1, Y: 1, Type: "forest"}}
	airports := []mapview.Airport{{ID: 5, Name: "Hub", Queue: []mapview.BotID{1}}}

	if err := s.SaveSnapshot(snap, terrain, airports); err != nil {
		t.Fatal(err)
	}

	world, err := s.LoadSnapshot()
	if err != nil {
		t.Fatal(err)
	}
	if world.Snapshot.MapInfo != snap.MapInfo || len(world.Snapshot.Bots) != 1 {
		t.Errorf("snapshot = %+v", world.Snapshot)
	}
	if !world.Snapshot.BotHomes[0].Placed {
		t.Error("home placement lost in the cache")
	}
	if len(world.Terrain) != 1 || world.Terrain[0].Type != "forest" {
		t.Errorf("terrain = %+v", world.Terrain)
	}
	if len(world.Airports) != 1 || world.Airports[0].QueuePosition(1) != 1 {
		t.Errorf("airports = %+v", world.Airports)
	}
	if time.Since(world.FetchedAt) > time.Minute {
		t.Errorf("FetchedAt = %v", world.FetchedAt)
	}
}

func TestStorage_PassJournal(t *testing.T) {
	s := newTestStorage(t)
	session := uuid.New()

	old := mapview.Pass{ID: uuid.New(), Kind: "full", State: "rendered", At: time.Now().AddDate(0, 0, -10)}
	fresh := mapview.Pass{
		ID:      uuid.New(),
		Kind:    "airports",
		State:   "rendered",
		At:      time.Now(),
		Cells:   12,
		Markers: map[mapview.Layer]int{mapview.LayerAirport: 2},
	}
	for _, p := range []mapview.Pass{old, fresh} {
		if err := s.RecordPass(session, p); err != nil {
			t.Fatal(err)
		}
	}

	passes, err := s.RecentPasses(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(passes) != 2 || passes[0].ID != fresh.ID {
		t.Fatalf("RecentPasses() = %+v", passes)
	}
	if passes[0].Markers[mapview.LayerAirport] != 2 {
		t.Errorf("markers = %v", passes[0].Markers)
	}

	removed, err := s.CompactPasses(7)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("CompactPasses() removed %d, want 1", removed)
	}

	stats, err := s.GetStats()
	if err != nil {
		t.Fatal(err)
	}
	if stats["pass_count"] != 1 {
		t.Errorf("pass_count = %v, want 1", stats["pass_count"])
	}
}

func TestStorage_RecentPassesSkipsCorruptMarkers(t *testing.T) {
	s := newTestStorage(t)
	good := mapview.Pass{ID: uuid.New(), Kind: "full", State: "rendered", At: time.Now()}
	if err := s.RecordPass(uuid.New(), good); err != nil {
		t.Fatal(err)
	}
	if _, err := s.db.Exec(`
		INSERT INTO render_passes (id, session_id, kind, state, cells, markers, created_at)
		VALUES (?, ?, 'full', 'rendered', 0, '{not json', ?)
	`, uuid.New().String(), uuid.New().String(), time.Now().Unix()); err != nil {
		t.Fatal(err)
	}

	passes, err := s.RecentPasses(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(passes) != 1 || passes[0].ID != good.ID {
		t.Errorf("RecentPasses() = %+v, want only the readable pass", passes)
	}
}
