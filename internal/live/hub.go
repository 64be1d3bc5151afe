package live

import (
	"context"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/draggle/rate-my-rez-waterloo/internal/cache"
)

// Topic names the data behind one live list. Subscriptions attach to a topic;
// services publish the topic whenever its underlying data changes.
const TopicFeed = "feed"

func TopicReviews(propertyID string) string   { return "reviews:" + propertyID }
func TopicQuestions(propertyID string) string { return "questions:" + propertyID }
func TopicReplies(questionID string) string   { return "replies:" + questionID }

// FetchFunc loads the full current snapshot of a topic's data.
type FetchFunc func(ctx context.Context) (interface{}, error)

// Snapshot is one delivery to a subscriber: the complete current data set,
// or the error the fetch produced. A failed fetch does not end the
// subscription; the next publish triggers a fresh attempt.
type Snapshot struct {
	Topic string
	Data  interface{}
	Err   error
}

// Subscription is one live feed of snapshots for a topic. Each publish on the
// topic re-runs the fetch and delivers the result; rapid publishes coalesce
// so a slow consumer only ever sees the latest state.
type Subscription struct {
	hub    *Hub
	topic  string
	fetch  FetchFunc
	ch     chan Snapshot
	kick   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// Updates is the stream of snapshots. It is closed after Close.
func (s *Subscription) Updates() <-chan Snapshot {
	return s.ch
}

// Close tears the subscription down. Snapshots already in flight are dropped.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
		s.cancel()
	})
}

// refresh requests a re-fetch. Multiple pending requests collapse into one.
func (s *Subscription) refresh() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// run serializes fetches for this subscription so snapshots are delivered in
// the order the fetches completed.
func (s *Subscription) run() {
	defer close(s.ch)
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.kick:
			data, err := s.fetch(s.ctx)
			if s.ctx.Err() != nil {
				return
			}
			s.deliver(Snapshot{Topic: s.topic, Data: data, Err: err})
		}
	}
}

// deliver hands a snapshot to the consumer, displacing an unread older one.
func (s *Subscription) deliver(snap Snapshot) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case s.ch <- snap:
			return
		default:
			select {
			case <-s.ch:
			default:
			}
		}
	}
}

// Hub fans data-change notifications out to topic subscribers. With a Redis
// client bound it also relays publishes across API instances; without one it
// is purely in-process, which is what the tests use.
type Hub struct {
	mu    sync.RWMutex
	subs  map[string]map[*Subscription]struct{}
	redis *redis.Client
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*Subscription]struct{})}
}

// BindRedis wires the hub to cross-instance change notifications. Incoming
// messages, including our own echoes, drive the local refreshes; the listener
// stops when ctx is cancelled.
func (h *Hub) BindRedis(ctx context.Context, client *redis.Client) {
	h.redis = client
	cache.SubscribeChanges(ctx, client, h.publishLocal)
}

// Subscribe attaches a new subscription to a topic and schedules the initial
// snapshot fetch.
func (h *Hub) Subscribe(ctx context.Context, topic string, fetch FetchFunc) *Subscription {
	subCtx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		hub:    h,
		topic:  topic,
		fetch:  fetch,
		ch:     make(chan Snapshot, 1),
		kick:   make(chan struct{}, 1),
		ctx:    subCtx,
		cancel: cancel,
	}

	h.mu.Lock()
	if h.subs[topic] == nil {
		h.subs[topic] = make(map[*Subscription]struct{})
	}
	h.subs[topic][s] = struct{}{}
	h.mu.Unlock()

	go s.run()
	s.refresh()
	return s
}

// Publish signals that the data behind a topic changed. Every subscriber of
// the topic re-fetches and receives a fresh snapshot.
func (h *Hub) Publish(ctx context.Context, topic string) {
	if h.redis != nil {
		// The pub/sub echo triggers the local refresh on this instance too.
		if err := cache.PublishChange(ctx, h.redis, topic); err == nil {
			return
		}
		log.Printf("Redis publish for topic %s failed, refreshing locally", topic)
	}
	h.publishLocal(topic)
}

func (h *Hub) publishLocal(topic string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs[topic] {
		s.refresh()
	}
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[s.topic]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.subs, s.topic)
		}
	}
}
