package mapview

import (
	"context"

	"botmap/pkg/logger"
)

const (
	// DefaultCellColor is the background of a cell with no known terrain.
	DefaultCellColor = "#a8d5a2"
	// FallbackBotColor is used for bots missing from the palette.
	FallbackBotColor = "#95a5a6"
)

// DefaultConfig returns the palette and dimensions the backend ships with.
// Used when /api/config is unreachable.
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Map: MapInfo{Width: 50, Height: 50, CellSize: 30},
		Colors: Palette{
			Terrain: map[string]string{
				"plains":   "#a8d5a2",
				"forest":   "#2d5a27",
				"mountain": "#8b7355",
				"city":     "#ffd700",
				"water":    "#1e90ff",
				"desert":   "#f4a460",
			},
			Bots: map[BotID]string{
				1: "#3498db",
				2: "#e74c3c",
				3: "#2ecc71",
				5: "#9b59b6",
			},
		},
	}
}

// ConfigOrDefault fetches /api/config and falls back to DefaultConfig on
// any failure. Missing palette sections are filled from the defaults.
func ConfigOrDefault(ctx context.Context, c Backend) *AppConfig {
	cfg, err := c.Config(ctx)
	if err != nil {
		logger.Log.WithError(err).Warn("Failed to load config, using defaults")
		return DefaultConfig()
	}

	def := DefaultConfig()
	if cfg.Colors.Terrain == nil {
		cfg.Colors.Terrain = def.Colors.Terrain
	}
	if cfg.Colors.Bots == nil {
		cfg.Colors.Bots = map[BotID]string{}
	}
	if !cfg.Map.Valid() {
		cfg.Map = def.Map
	}
	return cfg
}
