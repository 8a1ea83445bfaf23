package hub

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
)

const subscriberBuffer = 32

// Event is a JSON-encoded payload addressed to every subscriber of a channel.
type Event struct {
	Channel string
	Payload []byte
}

// Subscriber receives the events published on one channel. The receive
// channel is closed when the subscriber is removed or the hub shuts down.
type Subscriber struct {
	ID      string
	Channel string
	C       chan []byte
}

// Hub fans events out to per-conversation channel subscribers. Publishing
// never blocks the caller: events go through a buffered queue drained by a
// worker pool, and slow subscribers are skipped rather than waited on.
type Hub struct {
	mu      sync.RWMutex
	subs    map[string]map[string]*Subscriber
	events  chan Event
	workers int
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewHub(workers, queueSize int) *Hub {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 1000
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		subs:    make(map[string]map[string]*Subscriber),
		events:  make(chan Event, queueSize),
		workers: workers,
		ctx:     ctx,
		cancel:  cancel,
	}

	for i := 0; i < workers; i++ {
		h.wg.Add(1)
		go h.processEvents()
	}

	return h
}

// Subscribe registers a new subscriber on the given channel.
func (h *Hub) Subscribe(channel string) *Subscriber {
	sub := &Subscriber{
		ID:      uuid.NewString(),
		Channel: channel,
		C:       make(chan []byte, subscriberBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[channel] == nil {
		h.subs[channel] = make(map[string]*Subscriber)
	}
	h.subs[channel][sub.ID] = sub
	log.Printf("subscriber %s joined channel %s", sub.ID, channel)
	return sub
}

// Unsubscribe removes a subscriber and closes its receive channel.
// Safe to call more than once.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	byID, ok := h.subs[sub.Channel]
	if !ok {
		return
	}
	if _, ok := byID[sub.ID]; !ok {
		return
	}
	delete(byID, sub.ID)
	if len(byID) == 0 {
		delete(h.subs, sub.Channel)
	}
	close(sub.C)
	log.Printf("subscriber %s left channel %s", sub.ID, sub.Channel)
}

// Publish encodes the payload and queues it for delivery to every
// subscriber of the channel. Drops the event if the queue is full.
func (h *Hub) Publish(channel string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("hub: encode event for channel %s: %v", channel, err)
		return
	}

	select {
	case h.events <- Event{Channel: channel, Payload: data}:
	case <-h.ctx.Done():
	default:
		log.Printf("hub: event queue full, dropping event on channel %s", channel)
	}
}

func (h *Hub) processEvents() {
	defer h.wg.Done()

	for {
		select {
		case ev := <-h.events:
			h.dispatch(ev)
		case <-h.ctx.Done():
			return
		}
	}
}

func (h *Hub) dispatch(ev Event) {
	// The sends never block, so the read lock is held for the whole
	// fan-out. Unsubscribe and Shutdown close subscriber channels only
	// under the write lock, which cannot be taken mid-dispatch, so a
	// send can never race a close.
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs[ev.Channel] {
		select {
		case sub.C <- ev.Payload:
		default:
			log.Printf("hub: subscriber %s on %s is not keeping up, dropping event", sub.ID, sub.Channel)
		}
	}
}

// Shutdown stops the workers and closes every subscriber channel.
func (h *Hub) Shutdown() {
	h.cancel()
	h.wg.Wait()

	h.mu.Lock()
	defer h.mu.Unlock()
	for channel, byID := range h.subs {
		for _, sub := range byID {
			close(sub.C)
		}
		delete(h.subs, channel)
	}
	log.Println("hub shutdown complete")
}
