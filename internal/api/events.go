package api

import (
	crand "crypto/rand"
	"encoding/hex"
	"encoding/json"
	"sync"

	"github.com/skylark-data/overflight.report/internal/vision"
)

// EventBus fans emitted detection records out to any number of event-stream
// subscribers. Publishing never blocks: a subscriber that cannot keep up
// misses events rather than stalling the frame loop.
type EventBus struct {
	mu          sync.Mutex
	subscribers map[string]chan string
}

// subscriberBuffer absorbs short bursts (several detections in one frame)
// before a slow consumer starts dropping.
const subscriberBuffer = 16

func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string]chan string)}
}

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe creates a new channel for receiving detection events. The
// channel ID identifies the subscription when unsubscribing.
func (b *EventBus) Subscribe() (string, chan string) {
	id := randomID()
	ch := make(chan string, subscriberBuffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *EventBus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
}

// PublishDetection marshals the detection and offers it to every
// subscriber.
func (b *EventBus) PublishDetection(det *vision.Detection) {
	payload, err := json.Marshal(det)
	if err != nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- string(payload):
		default:
			// Subscriber buffer full; drop for this subscriber.
		}
	}
}

// Close tears down all subscriber channels. Streaming handlers see the
// close and finish their responses.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}
