package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

type Event struct {
	Type    string `json:"type"`
	OwnerID string `json:"owner_id"`
	At      int64  `json:"at"`
}

// EventBus fans change notifications out to the SSE streams of one owner.
// Clients re-fetch their boards when notified.
type EventBus struct {
	mu     sync.RWMutex
	subs   map[string]map[chan []byte]struct{}
	closed bool
}

func NewEventBus() *EventBus { return &EventBus{subs: make(map[string]map[chan []byte]struct{})} }

func (b *EventBus) Subscribe(ownerID string) (ch chan []byte, cancel func()) {
	ch = make(chan []byte, 16)
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	if b.subs[ownerID] == nil {
		b.subs[ownerID] = make(map[chan []byte]struct{})
	}
	b.subs[ownerID][ch] = struct{}{}
	b.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			subs, ok := b.subs[ownerID]
			if !ok {
				return
			}
			if _, ok := subs[ch]; !ok {
				return
			}
			delete(subs, ch)
			if len(subs) == 0 {
				delete(b.subs, ownerID)
			}
			close(ch)
		})
	}
}

func (b *EventBus) Publish(ev Event) {
	data, _ := json.Marshal(ev)
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[ev.OwnerID] {
		select {
		case ch <- data:
		default: // drop if slow
		}
	}
}

// Invalidate announces that ownerID's boards changed.
func (b *EventBus) Invalidate(_ context.Context, ownerID string) {
	b.Publish(Event{Type: "boards.changed", OwnerID: ownerID, At: time.Now().Unix()})
}

// Close ends every open stream.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for owner, subs := range b.subs {
		for ch := range subs {
			close(ch)
		}
		delete(b.subs, owner)
	}
}

// ServeSSE streams ownerID's notifications until the client goes away.
func (b *EventBus) ServeSSE(w http.ResponseWriter, r *http.Request, ownerID string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := b.Subscribe(ownerID)
	defer cancel()

	_, _ = w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	ticker := time.NewTicker(25 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			// heartbeat comment to keep connection alive through proxies
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write([]byte("event: boards.changed\ndata: "))
			_, _ = w.Write(msg)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}
