// Package realtime pushes agency changes to connected dashboards. Updates are
// published on the Redis channel agency:<id> so every server instance fans
// them out to its own websocket subscribers.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/agency-hub-service/internal/model"
)

const (
	channelPrefix = "agency:"
	writeWait     = 5 * time.Second
)

// EventAgencyUpdated is sent whenever an agency's name, logo or plan changes
const EventAgencyUpdated = "agency.updated"

// Message is the payload delivered to subscribers
type Message struct {
	Type   string        `json:"type"`
	Agency *model.Agency `json:"agency"`
}

// Channel returns the Redis channel of an agency
func Channel(agencyID uuid.UUID) string {
	return channelPrefix + agencyID.String()
}

// Publisher is the subset of the Redis client used to publish updates
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Subscriber is the subset of the Redis client used to receive updates
type Subscriber interface {
	PSubscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// Notifier publishes agency updates to Redis
type Notifier struct {
	redis Publisher
}

func NewNotifier(p Publisher) *Notifier {
	return &Notifier{redis: p}
}

func (n *Notifier) PublishAgency(ctx context.Context, agency *model.Agency) error {
	data, err := json.Marshal(Message{Type: EventAgencyUpdated, Agency: agency})
	if err != nil {
		return err
	}
	return n.redis.Publish(ctx, Channel(agency.ID), data).Err()
}

// Hub keeps the websocket subscribers of each agency
type Hub struct {
	mu       sync.Mutex
	subs     map[uuid.UUID]map[*websocket.Conn]struct{}
	upgrader websocket.Upgrader
}

// NewHub accepts upgrades from allowedOrigins; an empty list or "*" allows any origin
func NewHub(allowedOrigins []string) *Hub {
	h := &Hub{subs: make(map[uuid.UUID]map[*websocket.Conn]struct{})}
	h.upgrader = websocket.Upgrader{CheckOrigin: originChecker(allowedOrigins)}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// ServeAgency upgrades the request and keeps the connection subscribed to
// agencyID until the client goes away
func (h *Hub) ServeAgency(w http.ResponseWriter, r *http.Request, agencyID uuid.UUID) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("agency_id", agencyID.String()).Msg("WebSocket upgrade failed")
		return
	}
	h.add(agencyID, conn)
	defer h.remove(agencyID, conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) add(agencyID uuid.UUID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[agencyID] == nil {
		h.subs[agencyID] = make(map[*websocket.Conn]struct{})
	}
	h.subs[agencyID][conn] = struct{}{}
}

func (h *Hub) remove(agencyID uuid.UUID, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.subs[agencyID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.subs, agencyID)
		}
	}
	conn.Close()
}

// Subscribers returns the number of open connections on agencyID
func (h *Hub) Subscribers(agencyID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[agencyID])
}

// Broadcast writes payload to every subscriber of agencyID, dropping the
// connections that fail, and returns how many received it
func (h *Hub) Broadcast(agencyID uuid.UUID, payload []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	sent := 0
	for conn := range h.subs[agencyID] {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			delete(h.subs[agencyID], conn)
			conn.Close()
			continue
		}
		sent++
	}
	return sent
}

// dispatch routes a message received on a Redis channel to its agency
func (h *Hub) dispatch(channel, payload string) {
	id, err := uuid.Parse(strings.TrimPrefix(channel, channelPrefix))
	if err != nil {
		log.Warn().Str("channel", channel).Msg("Ignoring message on unknown channel")
		return
	}
	h.Broadcast(id, []byte(payload))
}

// Listen relays every agency:* message to local subscribers until ctx is done
func (h *Hub) Listen(ctx context.Context, sub Subscriber) error {
	pubsub := sub.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	log.Info().Msg("Realtime hub listening for agency updates")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			h.dispatch(msg.Channel, msg.Payload)
		}
	}
}

// Close disconnects every subscriber
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, conns := range h.subs {
		for conn := range conns {
			conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
			conn.Close()
		}
		delete(h.subs, id)
	}
}
