// Package display is the external display consumers' interface: a fiber + websocket hub that lets out-of-process rate-meter,
// voltmeter, oscilloscope, histogram and bar-display tools subscribe to a
// named feed and receive JSON frames pushed by the acquisition pipeline.
package display

import (
	"encoding/json"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/arcade-daq/waveflow/pkg/event"
	"github.com/arcade-daq/waveflow/pkg/id"
	"github.com/arcade-daq/waveflow/pkg/log"
	"github.com/arcade-daq/waveflow/pkg/ringbuffer"
)

// historyDepth is the number of recent frames replayed to a newly connected
// client per feed, so a plot tool started mid-run doesn't open on a blank
// screen while it waits for the next live frame.
const historyDepth = 16

// Feed names one of the external display consumers, plus the lifecycle
// status feed Handle pushes onto.
type Feed string

const (
	FeedRate      Feed = "rate"
	FeedVoltmeter Feed = "voltmeter"
	FeedScope     Feed = "oscilloscope"
	FeedHistogram Feed = "histogram"
	FeedBar       Feed = "bar"

	// FeedStatus carries run lifecycle transitions (paused/resumed/stopped/
	// ended), pushed by Handle rather than the acquisition loop directly.
	FeedStatus Feed = "status"
)

var allFeeds = []Feed{FeedRate, FeedVoltmeter, FeedScope, FeedHistogram, FeedBar, FeedStatus}

// Hub fans out frames to every websocket client subscribed to a feed, and
// keeps a short replay history per feed for clients that connect mid-run.
type Hub struct {
	mu      sync.RWMutex
	clients map[Feed]map[*websocket.Conn]struct{}
	history map[Feed]*ringbuffer.RingBuffer[[]byte]
}

// NewHub returns an empty hub with a historyDepth-frame replay buffer
// per feed.
func NewHub() *Hub {
	h := &Hub{
		clients: make(map[Feed]map[*websocket.Conn]struct{}),
		history: make(map[Feed]*ringbuffer.RingBuffer[[]byte]),
	}
	for _, f := range allFeeds {
		h.history[f] = ringbuffer.NewRingBuffer[[]byte](historyDepth, &ringbuffer.YieldingWaitStrategy{})
	}
	return h
}

// Register wires the hub's websocket route onto app at path "/ws/:feed".
func (h *Hub) Register(app *fiber.App) {
	app.Use("/ws/:feed", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("feed", Feed(c.Params("feed")))
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/:feed", websocket.New(h.handle))
}

func (h *Hub) handle(c *websocket.Conn) {
	feed, _ := c.Locals("feed").(Feed)
	connID := id.GetXid()
	log.Debugw("display client connected", "feed", string(feed), "conn", connID)
	h.add(feed, c)
	defer func() {
		h.remove(feed, c)
		log.Debugw("display client gone", "feed", string(feed), "conn", connID)
	}()

	if rb, ok := h.history[feed]; ok {
		for _, frame := range rb.Snapshot(historyDepth) {
			if err := c.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		}
	}

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}
}

func (h *Hub) add(feed Feed, c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[feed] == nil {
		h.clients[feed] = make(map[*websocket.Conn]struct{})
	}
	h.clients[feed][c] = struct{}{}
}

func (h *Hub) remove(feed Feed, c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients[feed], c)
	_ = c.Close()
}

// Broadcast marshals payload as JSON and writes it to every client
// currently subscribed to feed. A write error drops that client silently;
// display consumers pull at their own cadence and tolerate gaps.
func (h *Hub) Broadcast(feed Feed, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Warnw("display: marshal frame failed", "feed", string(feed), "error", err)
		return
	}

	if rb, ok := h.history[feed]; ok {
		rb.Publish(body)
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients[feed]))
	for c := range h.clients[feed] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.WriteMessage(websocket.TextMessage, body); err != nil {
			h.remove(feed, c)
		}
	}
}

// Handle implements event.EventHandler so a Hub can be registered directly
// on a Controller's event bus: every lifecycle transition it's registered
// for lands on FeedStatus, letting a status panel react without polling.
func (h *Hub) Handle(e event.Event) {
	h.Broadcast(FeedStatus, map[string]string{"event": e.EventName()})
}
