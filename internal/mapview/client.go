package mapview

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxBodySize caps how much of a backend response is read.
const maxBodySize = 8 << 20

// Client talks to the world backend's JSON API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a backend client. baseURL may omit the scheme.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the normalized backend address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// envelope is the status part shared by mutation responses
type envelope struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *Client) get(ctx context.Context, endpoint string, out interface{}) error {
	return c.do(ctx, http.MethodGet, endpoint, nil, out)
}

// do performs a request and decodes a JSON response into out.
// Non-2xx and success=false both become *ServerError.
func (c *Client) do(ctx context.Context, method, endpoint string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", endpoint, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %v", method, endpoint, ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("read %s: %w: %v", endpoint, ErrUnavailable, err)
	}

	// Arrays won't decode into the envelope; that just means "no status fields".
	var env envelope
	_ = json.Unmarshal(data, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ServerError{Status: resp.StatusCode, Endpoint: endpoint, Message: env.Error}
	}
	if env.Success != nil && !*env.Success {
		return &ServerError{Status: resp.StatusCode, Endpoint: endpoint, Message: env.Error}
	}
	if env.Success == nil && env.Error != "" {
		// Some read endpoints answer 200 {"error": "..."} when they have no data.
		return &ServerError{Status: resp.StatusCode, Endpoint: endpoint, Message: env.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w: %v", endpoint, ErrMalformed, err)
	}
	return nil
}

// MapData fetches the full map snapshot.
func (c *Client) MapData(ctx context.Context) (*MapSnapshot, error) {
	var snap MapSnapshot
	if err := c.get(ctx, "/api/map/data", &snap); err != nil {
		return nil, err
	}
	if !snap.MapInfo.Valid() {
		return nil, fmt.Errorf("/api/map/data: %w: missing map_info", ErrMalformed)
	}
	return &snap, nil
}

// Terrain fetches the terrain layer.
func (c *Client) Terrain(ctx context.Context) ([]TerrainCell, error) {
	var resp struct {
		Terrain []TerrainCell `json:"terrain"`
	}
	if err := c.get(ctx, "/api/map/terrain", &resp); err != nil {
		return nil, err
	}
	return resp.Terrain, nil
}

// RecentInteractions fetches the raw recent interaction feed.
func (c *Client) RecentInteractions(ctx context.Context) ([]RecentInteraction, error) {
	var rows []RecentInteraction
	if err := c.get(ctx, "/api/map/interactions/recent", &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// Config fetches the viewer configuration exported by the backend.
func (c *Client) Config(ctx context.Context) (*AppConfig, error) {
	var cfg AppConfig
	if err := c.get(ctx, "/api/config", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Airports fetches every airport with its current queue.
func (c *Client) Airports(ctx context.Context) ([]Airport, error) {
	var airports []Airport
	if err := c.get(ctx, "/api/airports", &airports); err != nil {
		return nil, err
	}
	return airports, nil
}

// MoveHistory fetches a bot's path edges, newest first.
func (c *Client) MoveHistory(ctx context.Context, botID BotID) (*MoveHistory, error) {
	var history MoveHistory
	if err := c.get(ctx, fmt.Sprintf("/api/bot/%d/move-history", botID), &history); err != nil {
		return nil, err
	}
	if history.BotID == 0 {
		history.BotID = botID
	}
	return &history, nil
}

// AirportJoin is the server's answer to a successful queue join
type AirportJoin struct {
	Message         string `json:"message"`
	PositionInQueue int    `json:"position_in_queue"`
}

// UseAirport asks the backend to put a bot into an airport queue.
func (c *Client) UseAirport(ctx context.Context, botID BotID, airportID AirportID) (*AirportJoin, error) {
	var join AirportJoin
	endpoint := fmt.Sprintf("/api/bot/%d/use_airport/%d", botID, airportID)
	if err := c.do(ctx, http.MethodPost, endpoint, nil, &join); err != nil {
		return nil, err
	}
	return &join, nil
}

// Weather fetches the latest weather reading.
func (c *Client) Weather(ctx context.Context) (*Weather, error) {
	var w Weather
	if err := c.get(ctx, "/api/weather", &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// Bots fetches the active bot roster.
func (c *Client) Bots(ctx context.Context) ([]BotSummary, error) {
	var bots []BotSummary
	if err := c.get(ctx, "/api/bots", &bots); err != nil {
		return nil, err
	}
	return bots, nil
}

// Knowledge fetches the facts a bot holds.
func (c *Client) Knowledge(ctx context.Context, botID BotID) ([]Knowledge, error) {
	var facts []Knowledge
	if err := c.get(ctx, fmt.Sprintf("/api/bot/%d/knowledge", botID), &facts); err != nil {
		return nil, err
	}
	return facts, nil
}

// AddKnowledge teaches a bot a fact and returns the new fact id.
func (c *Client) AddKnowledge(ctx context.Context, botID BotID, fact, source string) (int64, error) {
	if strings.TrimSpace(fact) == "" {
		return 0, errors.New("fact is required")
	}
	if source == "" {
		source = "dashboard"
	}
	body := map[string]string{"fact": fact, "source": source}
	var resp struct {
		ID int64 `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/bot/%d/knowledge", botID), body, &resp); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

// DeleteKnowledge removes a fact. It reports whether anything was deleted.
func (c *Client) DeleteKnowledge(ctx context.Context, botID BotID, knowledgeID int64) (bool, error) {
	var resp struct {
		Deleted bool `json:"deleted"`
	}
	endpoint := fmt.Sprintf("/api/bot/%d/knowledge/%d", botID, knowledgeID)
	if err := c.do(ctx, http.MethodDelete, endpoint, nil, &resp); err != nil {
		return false, err
	}
	return resp.Deleted, nil
}

// UpdateNeeds sets need slider values for a bot.
func (c *Client) UpdateNeeds(ctx context.Context, botID BotID, needs map[string]float64) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/api/bot/%d/needs", botID), needs, nil)
}

// Memories fetches a bot's memory log, optionally filtered by event type.
func (c *Client) Memories(ctx context.Context, botID BotID, eventType string) ([]Memory, error) {
	endpoint := fmt.Sprintf("/api/bot/%d/memories", botID)
	if eventType != "" {
		endpoint += "/" + url.PathEscape(eventType)
	}
	var memories []Memory
	if err := c.get(ctx, endpoint, &memories); err != nil {
		return nil, err
	}
	return memories, nil
}
