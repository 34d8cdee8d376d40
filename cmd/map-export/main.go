package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"botmap/internal/mapview"
	"botmap/pkg/logger"
)

// WorldExport is everything one backend reported at export time
type WorldExport struct {
	Backend  string                `json:"backend"`
	Snapshot *mapview.MapSnapshot  `json:"snapshot"`
	Terrain  []mapview.TerrainCell `json:"terrain"`
	Airports []mapview.Airport     `json:"airports"`
	Weather  *mapview.Weather      `json:"weather,omitempty"`
}

// ExportFile is the document written to disk
type ExportFile struct {
	Worlds       []WorldExport `json:"worlds"`
	Timestamp    string        `json:"timestamp"`
	BackendCount int           `json:"backend_count"`
}

func main() {
	logger.Init()

	var (
		backends = flag.String("backends", "", "Comma-separated list of backend URLs (e.g., localhost:5000,localhost:5001)")
		output   = flag.String("output", "world.json", "Output file path")
		timeout  = flag.Duration("timeout", 15*time.Second, "Per-backend request timeout")
	)
	flag.Parse()

	if *backends == "" {
		fmt.Println("Usage: map-export -backends <url1,url2,...> [-output world.json]")
		os.Exit(1)
	}

	urls := splitCSV(*backends)
	fmt.Printf("Fetching data from %d backends...\n", len(urls))

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		worlds []WorldExport
		errs   *multierror.Error
	)
	for _, url := range urls {
		wg.Add(1)
		go func(url string) {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), *timeout)
			defer cancel()

			world, err := fetchWorld(ctx, mapview.NewClient(url, *timeout))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("%s: %w", url, err))
				return
			}
			worlds = append(worlds, *world)
			fmt.Printf("✓ Fetched: %s (%dx%d, %d bots, %d airports)\n", world.Backend,
				world.Snapshot.MapInfo.Width, world.Snapshot.MapInfo.Height,
				len(world.Snapshot.Bots), len(world.Airports))
		}(url)
	}
	wg.Wait()

	if err := errs.ErrorOrNil(); err != nil {
		logger.Log.WithError(err).Warn("Some backends could not be exported")
	}
	if len(worlds) == 0 {
		fmt.Println("No worlds retrieved!")
		os.Exit(1)
	}

	sort.Slice(worlds, func(i, j int) bool { return worlds[i].Backend < worlds[j].Backend })

	export := ExportFile{
		Worlds:       worlds,
		Timestamp:    time.Now().UTC().Format("2006-01-02T15:04:05Z"),
		BackendCount: len(worlds),
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to marshal JSON")
	}
	if err := os.WriteFile(*output, data, 0644); err != nil {
		logger.Log.WithError(err).WithField("output", *output).Fatal("Failed to write file")
	}

	fmt.Printf("\n✓ Exported %d worlds to %s\n", len(worlds), *output)
	for _, w := range worlds {
		printStats(w)
	}
}

// fetchWorld pulls one backend's snapshot, terrain and airports.
// Weather is optional and never fails the export.
func fetchWorld(ctx context.Context, client *mapview.Client) (*WorldExport, error) {
	world := &WorldExport{Backend: client.BaseURL()}

	snap, err := client.MapData(ctx)
	if err != nil {
		return nil, err
	}
	world.Snapshot = snap

	var result *multierror.Error
	if world.Terrain, err = client.Terrain(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	if world.Airports, err = client.Airports(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}

	if w, err := client.Weather(ctx); err == nil {
		world.Weather = w
	} else {
		logger.Log.WithFields(logrus.Fields{"backend": world.Backend}).WithError(err).Debug("Weather unavailable")
	}
	return world, nil
}

func printStats(w WorldExport) {
	fmt.Printf("\n%s\n", w.Backend)
	fmt.Println(strings.Repeat("=", len(w.Backend)))

	cells := w.Snapshot.MapInfo.Width * w.Snapshot.MapInfo.Height
	terrainCounts := make(map[string]int)
	for _, t := range w.Terrain {
		terrainCounts[t.Type]++
	}
	types := make([]string, 0, len(terrainCounts))
	for t := range terrainCounts {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Printf("%-12s %5d (%.1f%%)\n", t, terrainCounts[t], float64(terrainCounts[t])/float64(max(cells, 1))*100)
	}

	homes := 0
	for _, h := range w.Snapshot.BotHomes {
		if h.Placed {
			homes++
		}
	}
	fmt.Printf("\nBots: %d (%d with homes)\n", len(w.Snapshot.Bots), homes)
	fmt.Printf("Interactions: %d\n", len(w.Snapshot.Interactions))

	queued := 0
	for _, a := range w.Airports {
		queued += len(a.Queue)
	}
	fmt.Printf("Airports: %d (%d bots queued)\n", len(w.Airports), queued)
	if w.Weather != nil {
		fmt.Printf("Weather: %s, %s\n", w.Weather.Condition, w.Weather.Temperature)
	}
}

func splitCSV(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
