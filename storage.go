package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"botmap/internal/mapview"
)

// Snapshot cache keys
const (
	cacheMap      = "map"
	cacheTerrain  = "terrain"
	cacheAirports = "airports"
)

type Storage struct {
	db *sql.DB
}

// NewStorage initializes SQLite database and creates tables
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	storage := &Storage{db: db}
	if err := storage.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return storage, nil
}

func (s *Storage) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS view_settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		cell_size INTEGER NOT NULL DEFAULT 0,
		path_style TEXT NOT NULL,
		show_homes INTEGER NOT NULL,
		show_interactions INTEGER NOT NULL,
		show_airports INTEGER NOT NULL,
		show_visited INTEGER NOT NULL,
		show_paths INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS snapshot_cache (
		name TEXT PRIMARY KEY,
		body TEXT NOT NULL,
		fetched_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS render_passes (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		state TEXT NOT NULL,
		cells INTEGER NOT NULL,
		markers TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_passes_created ON render_passes(created_at);
	CREATE INDEX IF NOT EXISTS idx_passes_session ON render_passes(session_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// SaveSettings persists the viewer's display preferences
func (s *Storage) SaveSettings(settings mapview.Settings) error {
	t := settings.Toggles
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO view_settings (
			id, cell_size, path_style,
			show_homes, show_interactions, show_airports, show_visited, show_paths,
			updated_at
		) VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)
	`, settings.CellSize, string(settings.PathStyle),
		boolInt(t.Homes), boolInt(t.Interactions), boolInt(t.Airports), boolInt(t.Visited), boolInt(t.Paths),
		time.Now().Unix())
	return err
}

// LoadSettings returns the saved preferences. sql.ErrNoRows means none were saved.
func (s *Storage) LoadSettings() (mapview.Settings, error) {
	var settings mapview.Settings
	var style string
	var homes, interactions, airports, visited, paths int

	err := s.db.QueryRow(`
		SELECT cell_size, path_style,
			show_homes, show_interactions, show_airports, show_visited, show_paths
		FROM view_settings WHERE id = 1
	`).Scan(&settings.CellSize, &style, &homes, &interactions, &airports, &visited, &paths)
	if err != nil {
		return mapview.Settings{}, err
	}

	settings.PathStyle = mapview.ParsePathStyle(style)
	settings.Toggles = mapview.Toggles{
		Homes:        homes == 1,
		Interactions: interactions == 1,
		Airports:     airports == 1,
		Visited:      visited == 1,
		Paths:        paths == 1,
	}
	return settings, nil
}

func (s *Storage) putCache(tx *sql.Tx, name string, v interface{}, now int64) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	_, err = tx.Exec(`
		INSERT OR REPLACE INTO snapshot_cache (name, body, fetched_at)
		VALUES (?, ?, ?)
	`, name, string(body), now)
	return err
}

// SaveSnapshot stores the last good world state so a restart can draw
// something before the backend answers.
func (s *Storage) SaveSnapshot(snap *mapview.MapSnapshot, terrain []mapview.TerrainCell, airports []mapview.Airport) error {
	if snap == nil {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	if err := s.putCache(tx, cacheMap, snap, now); err != nil {
		return err
	}
	if err := s.putCache(tx, cacheTerrain, terrain, now); err != nil {
		return err
	}
	if err := s.putCache(tx, cacheAirports, airports, now); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Storage) getCache(name string, out interface{}) (time.Time, error) {
	var body string
	var fetchedAt int64
	err := s.db.QueryRow(`SELECT body, fetched_at FROM snapshot_cache WHERE name = ?`, name).Scan(&body, &fetchedAt)
	if err != nil {
		return time.Time{}, err
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return time.Time{}, fmt.Errorf("decode cached %s: %w", name, err)
	}
	return time.Unix(fetchedAt, 0), nil
}

// CachedWorld is the last good world state read back from disk
type CachedWorld struct {
	Snapshot  *mapview.MapSnapshot
	Terrain   []mapview.TerrainCell
	Airports  []mapview.Airport
	FetchedAt time.Time
}

// LoadSnapshot reads the cached world state. sql.ErrNoRows means nothing is cached.
func (s *Storage) LoadSnapshot() (*CachedWorld, error) {
	var snap mapview.MapSnapshot
	fetchedAt, err := s.getCache(cacheMap, &snap)
	if err != nil {
		return nil, err
	}

	world := &CachedWorld{Snapshot: &snap, FetchedAt: fetchedAt}
	// Terrain and airports are optional; a missing row just means none.
	if _, err := s.getCache(cacheTerrain, &world.Terrain); err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	if _, err := s.getCache(cacheAirports, &world.Airports); err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	return world, nil
}

// RecordPass appends a render pass to the journal
func (s *Storage) RecordPass(session uuid.UUID, p mapview.Pass) error {
	markers, err := json.Marshal(p.Markers)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO render_passes (id, session_id, kind, state, cells, markers, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.ID.String(), session.String(), p.Kind, p.State, p.Cells, string(markers), p.At.Unix())
	return err
}

// RecentPasses returns the newest passes first
func (s *Storage) RecentPasses(limit int) ([]mapview.Pass, error) {
	rows, err := s.db.Query(`
		SELECT id, kind, state, cells, markers, created_at
		FROM render_passes
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var passes []mapview.Pass
	for rows.Next() {
		var p mapview.Pass
		var idStr, markers string
		var createdAt int64

		if err := rows.Scan(&idStr, &p.Kind, &p.State, &p.Cells, &markers, &createdAt); err != nil {
			continue
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			continue
		}
		p.ID = id
		p.At = time.Unix(createdAt, 0)
		if err := json.Unmarshal([]byte(markers), &p.Markers); err != nil {
			continue
		}
		passes = append(passes, p)
	}

	return passes, rows.Err()
}

// CompactPasses deletes journal entries older than the given number of days
func (s *Storage) CompactPasses(days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days).Unix()
	res, err := s.db.Exec(`DELETE FROM render_passes WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SetMeta stores a key/value pair in the meta table
func (s *Storage) SetMeta(key, value string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, key, value)
	return err
}

// GetMeta reads a meta value; sql.ErrNoRows when unset
func (s *Storage) GetMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	return value, err
}

// GetStats returns basic statistics about the stored data
func (s *Storage) GetStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var passCount int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM render_passes`).Scan(&passCount); err != nil {
		return nil, err
	}
	stats["pass_count"] = passCount

	var fetchedAt sql.NullInt64
	if err := s.db.QueryRow(`SELECT MAX(fetched_at) FROM snapshot_cache`).Scan(&fetchedAt); err != nil {
		return nil, err
	}
	if fetchedAt.Valid {
		stats["snapshot_cached_at"] = time.Unix(fetchedAt.Int64, 0)
	}

	return stats, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}
