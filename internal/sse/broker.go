// Package sse implements a Server-Sent Events broker for real-time updates.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Event types emitted by the broker.
const (
	TypeMovementsNew   = "movements.new"
	TypeMovementsRead  = "movements.read"
	TypeUnreadUpdated  = "unread.updated"
	TypeMonitorChecked = "monitor.checked"
)

type caseEventReq struct {
	kind string
	data CaseEvent
}

// CaseEvent is the payload of per-case movement events.
type CaseEvent struct {
	CaseID string `json:"case_id"`
	Added  int    `json:"added,omitempty"`
	Marked int    `json:"marked,omitempty"`
	Unread int    `json:"unread"`
}

// Broker manages SSE client connections and broadcasts events.
//
// A single goroutine owns the client set and the unread throttle timestamp;
// public methods talk to it over channels.
type Broker struct {
	unreadMin time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	caseEventCh   chan caseEventReq
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker that emits unread.updated at most once per
// unreadThrottle.
func NewBroker(unreadThrottle time.Duration) *Broker {
	if unreadThrottle <= 0 {
		unreadThrottle = 2 * time.Second
	}

	b := &Broker{
		unreadMin:     unreadThrottle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		caseEventCh:   make(chan caseEventReq, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var lastUnread time.Time

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		msg := fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload)
		raw := []byte(msg)

		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case req := <-b.caseEventCh:
			broadcast(Event{Type: req.kind, Data: req.data})

			now := time.Now()
			if now.Sub(lastUnread) >= b.unreadMin {
				lastUnread = now
				broadcast(Event{Type: TypeUnreadUpdated, Data: map[string]string{}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// MovementsAdded announces new movements for a case.
func (b *Broker) MovementsAdded(caseID string, added, unread int) {
	b.publishCase(TypeMovementsNew, CaseEvent{CaseID: caseID, Added: added, Unread: unread})
}

// MovementsRead announces that a case's movements were acknowledged.
func (b *Broker) MovementsRead(caseID string, marked int) {
	b.publishCase(TypeMovementsRead, CaseEvent{CaseID: caseID, Marked: marked})
}

// MonitorChecked reports the outcome of one scheduler pass.
func (b *Broker) MonitorChecked(checked, failed int) {
	b.Publish(Event{Type: TypeMonitorChecked, Data: map[string]int{"checked": checked, "failed": failed}})
}

// publishCase sends a case event followed by a throttled unread.updated.
func (b *Broker) publishCase(kind string, ev CaseEvent) {
	if b.closed.Load() {
		return
	}
	select {
	case b.caseEventCh <- caseEventReq{kind: kind, data: ev}:
	case <-b.stopped:
	}
}

// ServeHTTP streams events to one client (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
