package handlers

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/draggle/rate-my-rez-waterloo/internal/live"
	"github.com/draggle/rate-my-rez-waterloo/internal/models"
	"github.com/draggle/rate-my-rez-waterloo/internal/services"
)

const writeWait = 10 * time.Second

// LiveHandler serves the websocket endpoint that streams full data snapshots.
// A client subscribes to the lists it renders; every change re-delivers the
// complete current list, so the client never patches state incrementally.
type LiveHandler struct {
	hub             *live.Hub
	reviewService   services.IReviewService
	questionService services.IQuestionService
	upgrader        websocket.Upgrader
}

// NewLiveHandler creates a new LiveHandler.
func NewLiveHandler(hub *live.Hub, reviewService services.IReviewService, questionService services.IQuestionService) *LiveHandler {
	return &LiveHandler{
		hub:             hub,
		reviewService:   reviewService,
		questionService: questionService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The SPA runs on a different origin; access control happens
			// at the session level, not per origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// clientFrame is a subscribe/unsubscribe request from the client.
type clientFrame struct {
	Action     string `json:"action"` // "subscribe" or "unsubscribe"
	Kind       string `json:"kind"`   // "feed", "reviews", "questions", "replies"
	PropertyID string `json:"propertyId,omitempty"`
	QuestionID string `json:"questionId,omitempty"`
	Sort       string `json:"sort,omitempty"` // reviews only
}

// serverFrame is a snapshot or error delivery to the client.
type serverFrame struct {
	Type  string      `json:"type"` // "snapshot" or "error"
	Topic string      `json:"topic"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// subscriptionKey identifies a subscription slot on a connection. A client
// holds at most one subscription per list kind; reply threads are the
// exception, since several can be expanded at once.
func subscriptionKey(frame clientFrame) string {
	if frame.Kind == "replies" {
		return "replies:" + frame.QuestionID
	}
	return frame.Kind
}

// topicAndFetch resolves a client frame to a hub topic and the snapshot
// loader behind it.
func (h *LiveHandler) topicAndFetch(frame clientFrame) (string, live.FetchFunc, bool) {
	switch frame.Kind {
	case "feed":
		return live.TopicFeed, func(ctx context.Context) (interface{}, error) {
			reviews, err := h.reviewService.HomeFeed(ctx)
			if err != nil {
				return nil, err
			}
			return gin.H{"reviews": reviews}, nil
		}, true
	case "reviews":
		if frame.PropertyID == "" {
			return "", nil, false
		}
		mode := models.ParseSortMode(frame.Sort)
		propertyID := frame.PropertyID
		return live.TopicReviews(propertyID), func(ctx context.Context) (interface{}, error) {
			reviews, summary, err := h.reviewService.ListByProperty(ctx, propertyID, mode)
			if err != nil {
				return nil, err
			}
			return gin.H{"reviews": reviews, "stats": summary}, nil
		}, true
	case "questions":
		if frame.PropertyID == "" {
			return "", nil, false
		}
		propertyID := frame.PropertyID
		return live.TopicQuestions(propertyID), func(ctx context.Context) (interface{}, error) {
			questions, err := h.questionService.ListByProperty(ctx, propertyID)
			if err != nil {
				return nil, err
			}
			return gin.H{"questions": questions}, nil
		}, true
	case "replies":
		questionID, err := primitive.ObjectIDFromHex(frame.QuestionID)
		if err != nil {
			return "", nil, false
		}
		return live.TopicReplies(frame.QuestionID), func(ctx context.Context) (interface{}, error) {
			replies, err := h.questionService.ListByQuestion(ctx, questionID)
			if err != nil {
				return nil, err
			}
			return gin.H{"replies": replies}, nil
		}, true
	default:
		return "", nil, false
	}
}

// Serve handles GET /v1/live.
func (h *LiveHandler) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// One subscription per list kind per connection; re-subscribing a kind
	// replaces the old subscription, e.g. when the client navigates to a
	// different property or changes the sort mode.
	subs := make(map[string]*live.Subscription)
	var subsMu sync.Mutex

	out := make(chan serverFrame, 16)
	var writeWG sync.WaitGroup

	// Single writer goroutine; gorilla connections do not allow concurrent writes.
	writeWG.Add(1)
	go func() {
		defer writeWG.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case frame := <-out:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(frame); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	pump := func(sub *live.Subscription) {
		for snap := range sub.Updates() {
			frame := serverFrame{Type: "snapshot", Topic: snap.Topic, Data: snap.Data}
			if snap.Err != nil {
				frame = serverFrame{Type: "error", Topic: snap.Topic, Error: "Failed to load data"}
			}
			select {
			case <-ctx.Done():
				return
			case out <- frame:
			}
		}
	}

	for {
		var frame clientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			break
		}

		topic, fetch, ok := h.topicAndFetch(frame)
		if !ok {
			select {
			case out <- serverFrame{Type: "error", Topic: frame.Kind, Error: "Unknown subscription"}:
			case <-ctx.Done():
			}
			continue
		}

		key := subscriptionKey(frame)
		subsMu.Lock()
		switch frame.Action {
		case "subscribe":
			if old, exists := subs[key]; exists {
				old.Close()
			}
			sub := h.hub.Subscribe(ctx, topic, fetch)
			subs[key] = sub
			go pump(sub)
		case "unsubscribe":
			if sub, exists := subs[key]; exists {
				sub.Close()
				delete(subs, key)
			}
		}
		subsMu.Unlock()
	}

	cancel()
	subsMu.Lock()
	for _, sub := range subs {
		sub.Close()
	}
	subsMu.Unlock()
	writeWG.Wait()
}
