package hub

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/idkrafsan/BetTracker/models"
	"github.com/idkrafsan/BetTracker/service"
	log "github.com/sirupsen/logrus"
)

const computeTimeout = 5 * time.Second

// ConnectionObserver is told about client connects and disconnects
type ConnectionObserver interface {
	WebsocketConnected()
	WebsocketDisconnected()
}

// periodSnapshot hands the run loop a dashboard computed off the loop, along
// with the change count observed before computing it
type periodSnapshot struct {
	client *Client
	period models.Period
	msg    ServerMessage
	seq    uint64
}

// Hub keeps the connected dashboard clients and pushes a fresh dashboard to
// each of them, for the client's own period, after every store change.
type Hub struct {
	provider service.DashboardProvider
	observer ConnectionObserver
	upgrader websocket.Upgrader

	// Owned by the Run loop
	clients map[*Client]struct{}

	register   chan periodSnapshot
	unregister chan *Client
	periods    chan periodSnapshot
	changes    chan struct{}
	changeSeq  atomic.Uint64

	done     chan struct{}
	stopOnce sync.Once
	count    int
	countMu  sync.RWMutex
}

// NewHub creates a hub. observer may be nil.
func NewHub(provider service.DashboardProvider, observer ConnectionObserver, allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		provider: provider,
		observer: observer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     allowOrigin,
		},
		clients:    make(map[*Client]struct{}),
		register:   make(chan periodSnapshot),
		unregister: make(chan *Client),
		periods:    make(chan periodSnapshot),
		changes:    make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

// Run serves the hub until ctx is cancelled, then disconnects every client
func (h *Hub) Run(ctx context.Context) {
	defer h.stopOnce.Do(func() { close(h.done) })

	log.Info("Dashboard hub started")

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case reg := <-h.register:
			c := reg.client
			h.clients[c] = struct{}{}
			h.setCount(len(h.clients))
			if h.observer != nil {
				h.observer.WebsocketConnected()
			}
			log.WithFields(log.Fields{
				"clientID": c.ID,
				"period":   c.period,
				"total":    len(h.clients),
			}).Info("Dashboard client connected")
			h.deliverSnapshot(reg)

		case c := <-h.unregister:
			h.drop(c)

		case change := <-h.periods:
			if _, ok := h.clients[change.client]; ok {
				change.client.period = change.period
				h.deliverSnapshot(change)
			}

		case <-h.changes:
			h.broadcast(ctx)
		}
	}
}

// OnChange is a dashboard listener. Notifications arriving while a broadcast
// is pending collapse into that broadcast.
func (h *Hub) OnChange(service.ChangeSource) {
	h.changeSeq.Add(1)
	h.scheduleBroadcast()
}

func (h *Hub) scheduleBroadcast() {
	select {
	case h.changes <- struct{}{}:
	default:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.countMu.RLock()
	defer h.countMu.RUnlock()
	return h.count
}

// ServeHTTP upgrades the request and starts the client. The initial period
// comes from ?period= and defaults to all.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	period, err := models.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Debug("Websocket upgrade failed")
		return
	}

	c := newClient(uuid.NewString(), conn, h, period)

	select {
	case h.register <- h.snapshot(r.Context(), c, period):
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func (h *Hub) unregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// changePeriod runs on the client's read goroutine
func (h *Hub) changePeriod(c *Client, period models.Period) {
	select {
	case h.periods <- h.snapshot(context.Background(), c, period):
	case <-h.done:
	}
}

func (h *Hub) drop(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.done)
	h.setCount(len(h.clients))
	if h.observer != nil {
		h.observer.WebsocketDisconnected()
	}
	log.WithFields(log.Fields{
		"clientID": c.ID,
		"total":    len(h.clients),
	}).Info("Dashboard client disconnected")
}

// broadcast computes each requested period once and queues it for its clients
func (h *Hub) broadcast(ctx context.Context) {
	if len(h.clients) == 0 {
		return
	}

	byPeriod := make(map[models.Period][]*Client)
	for c := range h.clients {
		byPeriod[c.period] = append(byPeriod[c.period], c)
	}

	for period, clients := range byPeriod {
		msg := h.message(ctx, period)
		for _, c := range clients {
			h.deliver(c, msg)
		}
	}
}

// snapshot computes a client's dashboard outside the run loop so a slow
// provider never stalls other clients
func (h *Hub) snapshot(ctx context.Context, c *Client, period models.Period) periodSnapshot {
	seq := h.changeSeq.Load()
	return periodSnapshot{client: c, period: period, msg: h.message(ctx, period), seq: seq}
}

// deliverSnapshot queues a precomputed dashboard. A change that landed while
// it was being computed may have broadcast before the client was listening,
// so a fresh broadcast is scheduled.
func (h *Hub) deliverSnapshot(s periodSnapshot) {
	h.deliver(s.client, s.msg)
	if h.changeSeq.Load() != s.seq {
		h.scheduleBroadcast()
	}
}

// deliver drops clients too slow to keep up
func (h *Hub) deliver(c *Client, msg ServerMessage) {
	if c.trySend(msg) {
		return
	}
	log.WithField("clientID", c.ID).Warn("Dashboard client buffer full, disconnecting")
	h.drop(c)
}

func (h *Hub) message(ctx context.Context, period models.Period) ServerMessage {
	ctx, cancel := context.WithTimeout(ctx, computeTimeout)
	defer cancel()

	dashboard, err := h.provider.Current(ctx, period)
	if err != nil {
		log.WithError(err).WithField("period", period).Error("Failed to compute dashboard for clients")
		return ServerMessage{Type: MessageTypeError, Error: "dashboard unavailable", Timestamp: time.Now()}
	}
	return ServerMessage{Type: MessageTypeDashboard, Dashboard: dashboard, Timestamp: time.Now()}
}

func (h *Hub) shutdown() {
	log.WithField("clients", len(h.clients)).Info("Shutting down dashboard hub")
	for c := range h.clients {
		h.drop(c)
	}
}

func (h *Hub) setCount(n int) {
	h.countMu.Lock()
	defer h.countMu.Unlock()
	h.count = n
}
