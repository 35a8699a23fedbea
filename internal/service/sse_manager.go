package service

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/stepwise-ai/stepwise/internal/model"
)

// TopicActivity carries every decomposition and settings event. A single
// topic is enough for the current API; the manager is keyed by topic so new
// streams do not need new plumbing.
const TopicActivity = "activity"

// subscriber is one SSE client connection for a topic.
type subscriber struct {
	topic string
	ch    chan *model.Event
}

// SSEManager distributes service events to connected SSE clients.
// It keeps an in-memory ring buffer of the last 500 events per topic
// and a fan-out map of topic → subscribers.
type SSEManager struct {
	mu sync.RWMutex
	// topic → next sequence number (starts at 1)
	nextSeq map[string]int
	// topic → list of subscribers
	subscribers map[string][]*subscriber
	// topic → recent events (ring buffer, max 500)
	recentEvents map[string][]*model.Event
}

func NewSSEManager() *SSEManager {
	return &SSEManager{
		nextSeq:      make(map[string]int),
		subscribers:  make(map[string][]*subscriber),
		recentEvents: make(map[string][]*model.Event),
	}
}

// Publish assigns the event a topic-scoped sequence number and timestamp,
// appends it to the ring buffer, and fans it out to subscribers.
func (m *SSEManager) Publish(topic string, event *model.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextSeq[topic]++
	event.Seq = m.nextSeq[topic]
	if event.Ts == "" {
		event.Ts = time.Now().UTC().Format(time.RFC3339Nano)
	}

	// Append to ring buffer (cap 500)
	buf := m.recentEvents[topic]
	buf = append(buf, event)
	if len(buf) > 500 {
		buf = buf[len(buf)-500:]
	}
	m.recentEvents[topic] = buf

	for _, sub := range m.subscribers[topic] {
		select {
		case sub.ch <- event:
		default:
			// Slow consumer: drop. Client will reconnect and replay via since_seq.
		}
	}
}

// PublishJSON marshals payload and publishes it as an event of the given type.
func (m *SSEManager) PublishJSON(topic, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("sse: marshal %s payload: %v", eventType, err)
		return
	}
	m.Publish(topic, &model.Event{Type: eventType, PayloadJSON: string(data)})
}

// Subscribe registers a new SSE client for a topic.
// Returns a channel of events and a cancel function to unsubscribe.
func (m *SSEManager) Subscribe(ctx context.Context, topic string, sinceSeq int) (<-chan *model.Event, func()) {
	m.mu.Lock()

	ch := make(chan *model.Event, 64)
	sub := &subscriber{topic: topic, ch: ch}
	m.subscribers[topic] = append(m.subscribers[topic], sub)

	// Replay buffered events since sinceSeq
	buffered := m.recentEvents[topic]
	toReplay := make([]*model.Event, 0)
	for _, ev := range buffered {
		if ev.Seq > sinceSeq {
			toReplay = append(toReplay, ev)
		}
	}
	m.mu.Unlock()

	// Send replayed events into channel before releasing caller. The done
	// channel lets cancel stop the replay so ch is never closed mid-send.
	done := make(chan struct{})
	var replayWG sync.WaitGroup
	replayWG.Add(1)
	go func() {
		defer replayWG.Done()
		for _, ev := range toReplay {
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}()

	cancel := func() {
		m.mu.Lock()
		subs := m.subscribers[topic]
		updated := subs[:0]
		for _, s := range subs {
			if s != sub {
				updated = append(updated, s)
			}
		}
		m.subscribers[topic] = updated
		m.mu.Unlock()

		close(done)
		replayWG.Wait()
		close(ch)
	}

	return ch, cancel
}

// RecentEvents returns buffered events for a topic (for reconnect replay).
func (m *SSEManager) RecentEvents(topic string, sinceSeq int) []*model.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Event
	for _, ev := range m.recentEvents[topic] {
		if ev.Seq > sinceSeq {
			out = append(out, ev)
		}
	}
	return out
}
