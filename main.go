package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"botmap/internal/mapview"
	"botmap/pkg/logger"
)

func main() {
	logger.Init()

	// Parse command line flags; each defaults from the environment
	backend := flag.String("backend", envOr("BOTMAP_BACKEND", "http://localhost:5000"), "Base URL of the world backend")
	address := flag.String("address", envOr("BOTMAP_ADDRESS", "0.0.0.0:8090"), "Address to bind web UI server (host:port)")
	dbPath := flag.String("db", envOr("BOTMAP_DB", "botmap.db"), "Path to SQLite database")
	interactionInterval := flag.Duration("interaction-interval", envDuration("BOTMAP_INTERACTION_INTERVAL", mapview.DefaultInteractionInterval), "Recent interaction poll interval")
	refreshInterval := flag.Duration("refresh-interval", envDuration("BOTMAP_REFRESH_INTERVAL", mapview.DefaultRefreshInterval), "Full map refresh interval")
	timeout := flag.Duration("timeout", envDuration("BOTMAP_TIMEOUT", 10*time.Second), "Backend request timeout")
	useNAT := flag.Bool("nat", envBool("BOTMAP_NAT"), "Map the web UI port on the gateway via UPnP/NAT-PMP")
	flag.Parse()

	storage, err := NewStorage(*dbPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to initialize storage")
	}

	if previous, downgraded, err := CheckDatabaseVersion(storage); err != nil {
		logger.Log.WithError(err).Warn("Failed to check database version")
	} else if downgraded {
		logger.Log.WithFields(logrus.Fields{
			"database": previous.String(),
			"running":  CurrentVersion.String(),
		}).Warn("Database was written by a newer viewer; cached data may not load")
	}

	settings, err := storage.LoadSettings()
	switch {
	case errors.Is(err, sql.ErrNoRows):
		settings = mapview.DefaultSettings()
	case err != nil:
		logger.Log.WithError(err).Warn("Failed to load view settings, using defaults")
		settings = mapview.DefaultSettings()
	default:
		logger.Log.WithField("cell_size", settings.CellSize).Info("Restored view settings")
	}

	client := mapview.NewClient(*backend, *timeout)
	rc := mapview.NewRenderContext(client, settings)

	// Draw the last good world right away; the first poll replaces it
	if world, err := storage.LoadSnapshot(); err == nil {
		rc.Restore(world.Snapshot, world.Terrain, world.Airports)
		logger.Log.WithField("fetched_at", world.FetchedAt.Format(time.RFC3339)).Info("Restored cached map")
	} else if !errors.Is(err, sql.ErrNoRows) {
		logger.Log.WithError(err).Warn("Failed to read cached map")
	}

	hub := NewBroadcaster()
	rc.OnPass(hub.PublishPass)
	rc.OnPass(journalPasses(storage, rc))

	api := NewAPI(rc, storage, hub, client.BaseURL())

	// Try to bind before starting the pollers
	listener, err := net.Listen("tcp", *address)
	if err != nil {
		logger.Log.WithError(err).WithField("address", *address).Fatal("Web server failed to bind")
	}
	server := &http.Server{
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.WithError(err).Error("Web server error")
		}
	}()

	poller := mapview.NewPoller(rc, *interactionInterval, *refreshInterval, *timeout)
	poller.Start()

	logger.Log.WithFields(logrus.Fields{
		"web":       "http://" + *address,
		"backend":   client.BaseURL(),
		"version":   CurrentVersion.String(),
		"session":   rc.Session().String(),
		"refresh":   refreshInterval.String(),
		"interacts": interactionInterval.String(),
	}).Info("Map viewer is now online")

	var exposure *WebExposure
	if *useNAT {
		exposure = setupNAT(*address)
	}

	scheduleCompaction(storage)

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Log.Info("Shutting down...")
	poller.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Warn("Web server shutdown")
	}
	if exposure != nil {
		exposure.Close()
	}
	if err := storage.SaveSettings(rc.Settings()); err != nil {
		logger.Log.WithError(err).Warn("Failed to save view settings")
	}
	storage.Close()
	logger.Log.Info("Goodbye!")
}

// journalPasses records every pass and caches the world after full renders
func journalPasses(storage *Storage, rc *mapview.RenderContext) func(mapview.Pass) {
	return func(p mapview.Pass) {
		if err := storage.RecordPass(rc.Session(), p); err != nil {
			logger.Log.WithError(err).Debug("Failed to record pass")
		}
		if p.Kind != "full" && p.Kind != "airports" {
			return
		}
		snap, terrain, airports := rc.LastGood()
		if err := storage.SaveSnapshot(snap, terrain, airports); err != nil {
			logger.Log.WithError(err).Warn("Failed to cache map")
		}
	}
}

// scheduleCompaction trims the pass journal daily at 3 AM
func scheduleCompaction(storage *Storage) {
	now := time.Now()
	next := time.Date(now.Year(), now.Month(), now.Day(), 3, 0, 0, 0, now.Location())
	if next.Before(now) {
		next = next.Add(24 * time.Hour)
	}

	duration := next.Sub(now)
	logger.Log.Infof("Next journal compaction scheduled for %s (in %v)", next.Format(time.RFC3339), duration.Round(time.Second))

	go func() {
		time.Sleep(duration)
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()

		for {
			if removed, err := storage.CompactPasses(7); err != nil {
				logger.Log.WithError(err).Error("Compaction error")
			} else {
				logger.Log.WithField("removed", removed).Info("Journal compaction complete")
			}

			<-ticker.C
		}
	}()
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logger.Log.WithField("key", key).Warnf("Invalid duration %q, using %s", v, def)
		return def
	}
	return d
}

func envBool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
