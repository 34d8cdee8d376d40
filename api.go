package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"botmap/internal/mapview"
	"botmap/pkg/logger"
)

type API struct {
	rc         *mapview.RenderContext
	storage    *Storage
	hub        *Broadcaster
	backendURL string
	startedAt  time.Time
	router     *mux.Router
}

// NewAPI creates the viewer's HTTP surface
func NewAPI(rc *mapview.RenderContext, storage *Storage, hub *Broadcaster, backendURL string) *API {
	api := &API{
		rc:         rc,
		storage:    storage,
		hub:        hub,
		backendURL: backendURL,
		startedAt:  time.Now(),
		router:     mux.NewRouter(),
	}

	api.setupRoutes()
	return api
}

func (api *API) setupRoutes() {
	// Web interface (root)
	api.router.HandleFunc("/", api.ServeWebInterface).Methods("GET")
	api.router.HandleFunc("/ws", api.hub.ServeWS).Methods("GET")

	// Map state
	api.router.HandleFunc("/api/view", api.getView).Methods("GET")
	api.router.HandleFunc("/api/passes", api.getPasses).Methods("GET")
	api.router.HandleFunc("/api/location/{x:-?[0-9]+}/{y:-?[0-9]+}", api.getLocation).Methods("GET")
	api.router.HandleFunc("/api/airport/{id:[0-9]+}", api.getAirport).Methods("GET")
	api.router.HandleFunc("/api/home/{id:[0-9]+}", api.getHome).Methods("GET")

	// Actions
	api.router.HandleFunc("/api/select/bot/{id:[0-9]+}", api.selectBot).Methods("POST")
	api.router.HandleFunc("/api/select/clear", api.clearSelection).Methods("POST")
	api.router.HandleFunc("/api/toggle/{layer}", api.toggleLayer).Methods("POST")
	api.router.HandleFunc("/api/zoom/{size:[0-9]+}", api.setZoom).Methods("POST")
	api.router.HandleFunc("/api/path-style/{style}", api.setPathStyle).Methods("POST")
	api.router.HandleFunc("/api/airport/{id:[0-9]+}/join", api.joinAirport).Methods("POST")
	api.router.HandleFunc("/api/refresh", api.refresh).Methods("POST")

	api.router.HandleFunc("/api/version", api.getVersion).Methods("GET")
	api.router.HandleFunc("/health", api.healthCheck).Methods("GET")
}

// Handler returns the router
func (api *API) Handler() http.Handler {
	return api.router
}

// statusFor maps a render or backend error onto an HTTP status
func statusFor(err error) int {
	var se *mapview.ServerError
	switch {
	case errors.As(err, &se):
		if se.Status >= 400 {
			return se.Status
		}
		return http.StatusBadRequest
	case errors.Is(err, mapview.ErrNotLoaded):
		return http.StatusServiceUnavailable
	case errors.Is(err, mapview.ErrUnknownBot), errors.Is(err, mapview.ErrUnknownAirport):
		return http.StatusNotFound
	case errors.Is(err, mapview.ErrOutOfBounds), errors.Is(err, mapview.ErrNoSelection):
		return http.StatusBadRequest
	case errors.Is(err, mapview.ErrUnavailable), errors.Is(err, mapview.ErrMalformed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func pathInt(r *http.Request, name string) (int, bool) {
	n, err := strconv.Atoi(mux.Vars(r)[name])
	return n, err == nil
}

// persistSettings saves the current display settings; failures are logged only
func (api *API) persistSettings() {
	if api.storage == nil {
		return
	}
	if err := api.storage.SaveSettings(api.rc.Settings()); err != nil {
		logger.Log.WithError(err).Warn("Failed to save view settings")
	}
}

// getView returns the whole current frame
func (api *API) getView(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, api.rc.Frame())
}

// getPasses returns the most recent render passes from the journal
func (api *API) getPasses(w http.ResponseWriter, r *http.Request) {
	if api.storage == nil {
		respondJSON(w, http.StatusOK, []mapview.Pass{})
		return
	}
	limit := 50
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 500 {
		limit = l
	}
	passes, err := api.storage.RecentPasses(limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to read pass journal")
		return
	}
	if passes == nil {
		passes = []mapview.Pass{}
	}
	respondJSON(w, http.StatusOK, passes)
}

// getLocation describes a clicked cell
func (api *API) getLocation(w http.ResponseWriter, r *http.Request) {
	x, okX := pathInt(r, "x")
	y, okY := pathInt(r, "y")
	if !okX || !okY {
		respondError(w, http.StatusBadRequest, "Invalid coordinates")
		return
	}

	info, err := api.rc.SelectLocation(x, y)
	if err != nil {
		respondError(w, statusFor(err), mapview.UserMessage(err))
		return
	}
	respondJSON(w, http.StatusOK, info)
}

// getAirport returns an airport's detail panel
func (api *API) getAirport(w http.ResponseWriter, r *http.Request) {
	id, _ := pathInt(r, "id")
	panel, err := api.rc.AirportInfo(mapview.AirportID(id))
	if err != nil {
		respondError(w, statusFor(err), "Airport not found")
		return
	}
	respondJSON(w, http.StatusOK, panel)
}

// getHome returns a bot home's detail panel
func (api *API) getHome(w http.ResponseWriter, r *http.Request) {
	id, _ := pathInt(r, "id")
	panel, err := api.rc.HomeInfo(mapview.BotID(id))
	if err != nil {
		respondError(w, statusFor(err), mapview.UserMessage(err))
		return
	}
	respondJSON(w, http.StatusOK, panel)
}

// selectBot selects a bot and draws its move history
func (api *API) selectBot(w http.ResponseWriter, r *http.Request) {
	id, _ := pathInt(r, "id")
	bot, err := api.rc.SelectBot(r.Context(), mapview.BotID(id))
	if err != nil {
		respondError(w, statusFor(err), mapview.UserMessage(err))
		return
	}

	frame := api.rc.Frame()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"bot":  bot,
		"path": frame.Path,
	})
}

// clearSelection drops the selected bot
func (api *API) clearSelection(w http.ResponseWriter, r *http.Request) {
	api.rc.ClearSelection()
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// toggleLayer turns an overlay on or off. Without ?on= it flips the current state.
func (api *API) toggleLayer(w http.ResponseWriter, r *http.Request) {
	overlay, ok := mapview.ParseOverlay(mux.Vars(r)["layer"])
	if !ok {
		respondError(w, http.StatusBadRequest, "Unknown layer")
		return
	}

	on := !api.rc.Settings().Toggles.Get(overlay)
	if raw := r.URL.Query().Get("on"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid value for on")
			return
		}
		on = v
	}

	if err := api.rc.SetOverlay(r.Context(), overlay, on); err != nil {
		// The toggle itself applied; only the history fetch failed.
		logger.Log.WithError(err).WithField("layer", overlay).Warn("Overlay redraw incomplete")
	}
	api.persistSettings()

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"layer": overlay,
		"on":    on,
	})
}

// setZoom changes the cell size
func (api *API) setZoom(w http.ResponseWriter, r *http.Request) {
	size, _ := pathInt(r, "size")
	if err := api.rc.SetZoom(size); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	api.persistSettings()
	respondJSON(w, http.StatusOK, map[string]int{"cell_size": size})
}

// setPathStyle switches between solid and dotted move paths
func (api *API) setPathStyle(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["style"]
	style := mapview.ParsePathStyle(raw)
	if string(style) != raw {
		respondError(w, http.StatusBadRequest, "Unknown path style")
		return
	}
	api.rc.SetPathStyle(style)
	api.persistSettings()
	respondJSON(w, http.StatusOK, map[string]string{"path_style": string(style)})
}

// joinAirport queues the selected bot (or ?bot=) at an airport
func (api *API) joinAirport(w http.ResponseWriter, r *http.Request) {
	airportID, _ := pathInt(r, "id")

	botID, selected := api.rc.Selected()
	if raw := r.URL.Query().Get("bot"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid bot id")
			return
		}
		botID, selected = mapview.BotID(n), true
	}
	if !selected {
		respondError(w, http.StatusBadRequest, "Select a bot first")
		return
	}

	join, err := api.rc.JoinAirportQueue(r.Context(), botID, mapview.AirportID(airportID))
	if err != nil {
		respondError(w, statusFor(err), mapview.UserMessage(err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":           true,
		"message":           join.Message,
		"position_in_queue": join.PositionInQueue,
	})
}

// refresh runs a full refresh now instead of waiting for the next tick
func (api *API) refresh(w http.ResponseWriter, r *http.Request) {
	if err := api.rc.Refresh(r.Context()); err != nil {
		logger.Log.WithError(err).Warn("Manual refresh incomplete")
		respondJSON(w, http.StatusBadGateway, map[string]interface{}{
			"error": mapview.UserMessage(err),
			"state": api.rc.State().String(),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"state":  api.rc.State().String(),
	})
}

// getVersion returns version information
func (api *API) getVersion(w http.ResponseWriter, r *http.Request) {
	info := GetVersionInfo(api.backendURL)
	if api.storage != nil {
		if v, err := api.storage.GetMeta(dbVersionKey); err == nil {
			info.Database = v
		}
	}
	respondJSON(w, http.StatusOK, info)
}

// healthCheck returns the health status of the viewer
func (api *API) healthCheck(w http.ResponseWriter, r *http.Request) {
	frame := api.rc.Frame()
	status := "healthy"
	if frame.State == mapview.StateUnloaded.String() {
		status = "degraded"
	}
	health := map[string]interface{}{
		"status":         status,
		"state":          frame.State,
		"last_error":     frame.LastError,
		"viewers":        api.hub.SubscriberCount(),
		"uptime_seconds": int(time.Since(api.startedAt).Seconds()),
		"timestamp":      time.Now(),
	}
	if api.storage != nil {
		if stats, err := api.storage.GetStats(); err == nil {
			health["storage"] = stats
		}
	}
	respondJSON(w, http.StatusOK, health)
}

// Helper functions for JSON responses
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Log.WithFields(logrus.Fields{"status": status}).WithError(err).Debug("encode response failed")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
