// Package live pushes league updates to websocket subscribers, one room per league.
package live

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
	broadcastQueue = 64
)

const (
	EventMatchCompleted    = "match_completed"
	EventMatchScheduled    = "match_scheduled"
	EventStandingsUpdated  = "standings_updated"
	EventFixturesGenerated = "fixtures_generated"
	EventLeagueCompleted   = "league_completed"
)

type Message struct {
	Type     string `json:"type"`
	LeagueID int64  `json:"leagueId"`
	Payload  any    `json:"payload"`
}

type roomMessage struct {
	leagueID int64
	data     []byte
}

type countRequest struct {
	leagueID int64
	reply    chan int
}

type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	leagueID int64
}

// Hub owns the room map from a single goroutine; everything else talks to it
// through channels.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan roomMessage
	count      chan countRequest
	done       chan struct{}
	rooms      map[int64]map[*Client]struct{}
	upgrader   websocket.Upgrader
}

func NewHub(allowedOrigins ...string) *Hub {
	h := &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan roomMessage, broadcastQueue),
		count:      make(chan countRequest),
		done:       make(chan struct{}),
		rooms:      make(map[int64]map[*Client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// Run serves the hub until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, room := range h.rooms {
				for client := range room {
					close(client.send)
				}
			}
			h.rooms = make(map[int64]map[*Client]struct{})
			return nil

		case client := <-h.register:
			room, ok := h.rooms[client.leagueID]
			if !ok {
				room = make(map[*Client]struct{})
				h.rooms[client.leagueID] = room
			}
			room[client] = struct{}{}
			log.Debug().Int64("league_id", client.leagueID).Int("clients", len(room)).Msg("Live client joined")

		case client := <-h.unregister:
			h.remove(client)

		case msg := <-h.broadcast:
			for client := range h.rooms[msg.leagueID] {
				select {
				case client.send <- msg.data:
				default:
					log.Warn().Int64("league_id", msg.leagueID).Msg("Dropping slow live client")
					h.remove(client)
				}
			}

		case req := <-h.count:
			req.reply <- len(h.rooms[req.leagueID])
		}
	}
}

func (h *Hub) remove(client *Client) {
	room, ok := h.rooms[client.leagueID]
	if !ok {
		return
	}
	if _, ok := room[client]; !ok {
		return
	}
	delete(room, client)
	close(client.send)
	if len(room) == 0 {
		delete(h.rooms, client.leagueID)
	}
}

// Publish queues an event for every subscriber of the league. It never
// blocks the caller; events are dropped when the queue is full or the hub
// has stopped.
func (h *Hub) Publish(leagueID int64, eventType string, payload any) {
	data, err := json.Marshal(Message{Type: eventType, LeagueID: leagueID, Payload: payload})
	if err != nil {
		log.Error().Err(err).Int64("league_id", leagueID).Str("type", eventType).Msg("Failed to encode live event")
		return
	}
	select {
	case h.broadcast <- roomMessage{leagueID: leagueID, data: data}:
	case <-h.done:
	default:
		log.Warn().Int64("league_id", leagueID).Str("type", eventType).Msg("Live event queue full, dropping event")
	}
}

// Subscribers reports how many clients are in a league room.
func (h *Hub) Subscribers(leagueID int64) int {
	reply := make(chan int, 1)
	select {
	case h.count <- countRequest{leagueID: leagueID, reply: reply}:
		return <-reply
	case <-h.done:
		return 0
	}
}

// Serve upgrades the request and subscribes the connection to leagueID.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, leagueID int64) {
	logger := log.Ctx(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Int64("league_id", leagueID).Msg("Websocket upgrade failed")
		return
	}
	client := &Client{hub: h, conn: conn, send: make(chan []byte, sendBuffer), leagueID: leagueID}

	select {
	case h.register <- client:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go client.writePump()
	client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Subscribers only listen; anything they send is discarded.
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Int64("league_id", c.leagueID).Msg("Live client closed unexpectedly")
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
