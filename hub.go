package main

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"botmap/internal/mapview"
	"botmap/pkg/logger"
)

// WebSocket settings
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	subscriberBuf  = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// FrameEvent tells browsers that a new pass was rendered
type FrameEvent struct {
	Type      string    `json:"type"`
	PassID    uuid.UUID `json:"pass_id"`
	Kind      string    `json:"kind"`
	State     string    `json:"state"`
	Cells     int       `json:"cells"`
	UpdatedAt time.Time `json:"updated_at"`
}

func frameEventFor(p mapview.Pass) FrameEvent {
	return FrameEvent{
		Type:      "frame",
		PassID:    p.ID,
		Kind:      p.Kind,
		State:     p.State,
		Cells:     p.Cells,
		UpdatedAt: p.At,
	}
}

// Broadcaster fans frame events out to every connected browser
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[uuid.UUID]chan FrameEvent
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[uuid.UUID]chan FrameEvent),
	}
}

// Register creates a subscriber channel and returns its id.
func (b *Broadcaster) Register() (uuid.UUID, chan FrameEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.New()
	ch := make(chan FrameEvent, subscriberBuf)
	b.subscribers[id] = ch
	return id, ch
}

// Unregister closes and removes a subscriber.
func (b *Broadcaster) Unregister(id uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
}

// Broadcast sends an event to every subscriber. Slow subscribers miss it.
func (b *Broadcaster) Broadcast(ev FrameEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// PublishPass is a render context pass listener.
func (b *Broadcaster) PublishPass(p mapview.Pass) {
	b.Broadcast(frameEventFor(p))
}

// SubscriberCount returns the number of connected browsers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// ServeWS upgrades the request and streams frame events until the browser leaves.
func (b *Broadcaster) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	id, events := b.Register()
	logger.Log.WithFields(logrus.Fields{
		"subscriber": id.String(),
		"remote":     r.RemoteAddr,
	}).Info("Viewer connected")

	go b.writePump(conn, events)
	b.readPump(conn, id)
}

// readPump only drains control frames; browsers never send commands here.
func (b *Broadcaster) readPump(conn *websocket.Conn, id uuid.UUID) {
	defer func() {
		b.Unregister(id)
		if err := conn.Close(); err != nil {
			logger.Log.WithError(err).Debug("failed to close websocket connection")
		}
		logger.Log.WithField("subscriber", id.String()).Info("Viewer disconnected")
	}()

	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logger.Log.WithError(err).Warn("failed to set read deadline")
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.WithError(err).Warn("websocket read error")
			}
			return
		}
	}
}

func (b *Broadcaster) writePump(conn *websocket.Conn, events <-chan FrameEvent) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case ev, ok := <-events:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logger.Log.WithError(err).Warn("failed to set write deadline")
			}
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				logger.Log.WithError(err).Debug("write frame event failed")
				return
			}

		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logger.Log.WithError(err).Warn("failed to set ping write deadline")
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Log.WithError(err).Debug("ping failed")
				return
			}
		}
	}
}
