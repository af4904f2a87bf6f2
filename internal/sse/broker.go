// Package sse implements a Server-Sent Events broker that pushes habit,
// group, note and notice events to connected views.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync/atomic"
	"time"

	"github.com/quipex/habit-button/internal/notify"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Event types.
const (
	TypeGroupUpdated = "group.updated"
	TypeNotice       = "notice"
)

type noteEventReq struct {
	kind string
	path string
}

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable
// state (clients and per-group throttle timestamps). Public methods talk to
// the loop through channels, so no mutexes are required.
type Broker struct {
	groupMin time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	noteEventCh   chan noteEventReq
	groupCh       chan string
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker. group.updated events are sent at most once
// per groupThrottle per group; suppressed ones are delivered when the
// interval ends.
func NewBroker(groupThrottle time.Duration) *Broker {
	if groupThrottle <= 0 {
		groupThrottle = 500 * time.Millisecond
	}

	b := &Broker{
		groupMin:      groupThrottle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		noteEventCh:   make(chan noteEventReq, 256),
		groupCh:       make(chan string, 256),
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
	lastGroup := make(map[string]time.Time)
	pending := make(map[string]struct{})
	var trailing *time.Timer
	var trailingCh <-chan time.Time

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))

		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
			}
		}
	}

	sendGroup := func(group string, now time.Time) {
		lastGroup[group] = now
		broadcast(Event{Type: TypeGroupUpdated, Data: map[string]string{"group": group}})
	}

	armTrailing := func() {
		if trailing == nil {
			trailing = time.NewTimer(b.groupMin)
			trailingCh = trailing.C
		} else {
			trailing.Reset(b.groupMin)
		}
	}

	for {
		select {
		case <-b.stopCh:
			if trailing != nil {
				trailing.Stop()
			}
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

		case req := <-b.noteEventCh:
			switch req.kind {
			case "created", "updated", "deleted":
				broadcast(Event{Type: "note." + req.kind, Data: map[string]string{"path": req.path}})
			}

		case group := <-b.groupCh:
			now := time.Now()
			if now.Sub(lastGroup[group]) >= b.groupMin {
				sendGroup(group, now)
				continue
			}
			if len(pending) == 0 {
				armTrailing()
			}
			pending[group] = struct{}{}

		case <-trailingCh:
			now := time.Now()
			groups := make([]string, 0, len(pending))
			for g := range pending {
				groups = append(groups, g)
			}
			sort.Strings(groups)
			for _, g := range groups {
				sendGroup(g, now)
			}
			pending = make(map[string]struct{})

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

// PublishHabitEvent announces a widget change, e.g. kind "logged".
func (b *Broker) PublishHabitEvent(kind, habitKey, sourcePath string) {
	b.Publish(Event{Type: "habit." + kind, Data: map[string]string{
		"habitKey":   habitKey,
		"sourcePath": sourcePath,
	}})
}

// PublishGroupEvent announces that a group's records changed.
func (b *Broker) PublishGroupEvent(group string) {
	if b.closed.Load() || group == "" {
		return
	}
	select {
	case b.groupCh <- group:
	case <-b.stopped:
	}
}

// PublishNoteEvent announces a document change reported by the watcher.
func (b *Broker) PublishNoteEvent(kind, path string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.noteEventCh <- noteEventReq{kind: kind, path: path}:
	case <-b.stopped:
	}
}

// Notify forwards a transient notice to connected views. It implements
// notify.Sink.
func (b *Broker) Notify(level notify.Level, message string) {
	b.Publish(Event{Type: TypeNotice, Data: map[string]string{
		"level":   string(level),
		"message": message,
	}})
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
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
