package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/draggle/rate-my-rez-waterloo/internal/config"
	"github.com/draggle/rate-my-rez-waterloo/internal/db"
	"github.com/draggle/rate-my-rez-waterloo/internal/live"
	"github.com/draggle/rate-my-rez-waterloo/internal/models"
)

// ErrEmptyQuestion is returned when a question has no text after trimming.
var ErrEmptyQuestion = errors.New("question text is empty")

// IQuestionService defines the interface for the community Q&A.
type IQuestionService interface {
	CreateQuestion(ctx context.Context, property models.Property, uid, text string) (*models.Question, error)
	ListByProperty(ctx context.Context, propertyID string) ([]models.Question, error)
	// CreateReply posts an answer in a question's thread. Blank text is a
	// silent no-op and returns (nil, nil).
	CreateReply(ctx context.Context, questionID primitive.ObjectID, uid, text string) (*models.Reply, error)
	ListByQuestion(ctx context.Context, questionID primitive.ObjectID) ([]models.Reply, error)
	FindQuestionByID(ctx context.Context, questionID primitive.ObjectID) (*models.Question, error)
}

const (
	questionsCollection = "questions"
	repliesCollection   = "replies"
)

// questionService implements IQuestionService.
type questionService struct {
	db  *mongo.Database
	cfg *config.Config
	hub *live.Hub
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(database *mongo.Database, cfg *config.Config, hub *live.Hub) IQuestionService {
	return &questionService{db: database, cfg: cfg, hub: hub}
}

func (s *questionService) questions() *mongo.Collection {
	return db.ScopedCollection(s.db, s.cfg.AppID, questionsCollection)
}

func (s *questionService) replies() *mongo.Collection {
	return db.ScopedCollection(s.db, s.cfg.AppID, repliesCollection)
}

// CreateQuestion posts a new question about a property. Questions are
// immutable once posted.
func (s *questionService) CreateQuestion(ctx context.Context, property models.Property, uid, text string) (*models.Question, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyQuestion
	}

	question := &models.Question{
		ID:           primitive.NewObjectID(),
		PropertyID:   property.ID,
		PropertyName: property.Name,
		UserID:       uid,
		Text:         text,
		ReplyCount:   0,
		Timestamp:    time.Now().UTC(),
	}

	err := db.Try(func() error {
		_, insertErr := s.questions().InsertOne(ctx, question)
		return insertErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert question for property %s by %s: %w", property.ID, uid, err)
	}

	if s.hub != nil {
		s.hub.Publish(ctx, live.TopicQuestions(property.ID))
	}
	return question, nil
}

// ListByProperty returns a property's questions, newest first.
func (s *questionService) ListByProperty(ctx context.Context, propertyID string) ([]models.Question, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	cursor, err := s.questions().Find(ctx, bson.M{"property_id": propertyID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query questions for property %s: %w", propertyID, err)
	}
	defer cursor.Close(ctx)

	questions := []models.Question{}
	if err = cursor.All(ctx, &questions); err != nil {
		return nil, fmt.Errorf("failed to decode questions for property %s: %w", propertyID, err)
	}
	return questions, nil
}

// CreateReply posts an answer in a question's thread.
func (s *questionService) CreateReply(ctx context.Context, questionID primitive.ObjectID, uid, text string) (*models.Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	question, err := s.FindQuestionByID(ctx, questionID)
	if err != nil {
		return nil, err
	}

	reply := &models.Reply{
		ID:         primitive.NewObjectID(),
		QuestionID: questionID,
		UserID:     uid,
		Text:       text,
		Timestamp:  time.Now().UTC(),
	}

	err = db.Try(func() error {
		_, insertErr := s.replies().InsertOne(ctx, reply)
		return insertErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert reply to question %s by %s: %w", questionID.Hex(), uid, err)
	}

	if s.hub != nil {
		s.hub.Publish(ctx, live.TopicReplies(questionID.Hex()))
		// The question list shows reply activity, so nudge it too.
		s.hub.Publish(ctx, live.TopicQuestions(question.PropertyID))
	}
	return reply, nil
}

// ListByQuestion returns a question's thread, oldest first.
func (s *questionService) ListByQuestion(ctx context.Context, questionID primitive.ObjectID) ([]models.Reply, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	cursor, err := s.replies().Find(ctx, bson.M{"question_id": questionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query replies for question %s: %w", questionID.Hex(), err)
	}
	defer cursor.Close(ctx)

	replies := []models.Reply{}
	if err = cursor.All(ctx, &replies); err != nil {
		return nil, fmt.Errorf("failed to decode replies for question %s: %w", questionID.Hex(), err)
	}
	return replies, nil
}

// FindQuestionByID fetches a single question.
func (s *questionService) FindQuestionByID(ctx context.Context, questionID primitive.ObjectID) (*models.Question, error) {
	var question models.Question
	err := s.questions().FindOne(ctx, bson.M{"_id": questionID}).Decode(&question)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding question %s: %w", questionID.Hex(), err)
	}
	return &question, nil
}
