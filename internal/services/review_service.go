package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/draggle/rate-my-rez-waterloo/internal/config"
	"github.com/draggle/rate-my-rez-waterloo/internal/db"
	"github.com/draggle/rate-my-rez-waterloo/internal/live"
	"github.com/draggle/rate-my-rez-waterloo/internal/models"
	"github.com/draggle/rate-my-rez-waterloo/internal/stats"
)

// ErrNotReviewAuthor is returned when someone edits a review they did not write.
var ErrNotReviewAuthor = errors.New("review does not belong to this user")

// ReviewInput carries the author-editable fields of a review.
type ReviewInput struct {
	Rating         int
	LocationRating int
	Rent           int
	Distance       int
	Comment        string
	Tags           []string
	Image          string
	StudentLevel   models.StudentLevel
}

// IReviewService defines the interface for review operations.
type IReviewService interface {
	Create(ctx context.Context, property models.Property, uid, userEmail string, input ReviewInput) (*models.Review, error)
	Update(ctx context.Context, reviewID primitive.ObjectID, uid string, input ReviewInput) (*models.Review, error)
	// CastHelpfulVote adds one helpful vote from uid. A repeat vote from the
	// same uid is a silent no-op.
	CastHelpfulVote(ctx context.Context, reviewID primitive.ObjectID, uid string) error
	FindByID(ctx context.Context, reviewID primitive.ObjectID) (*models.Review, error)
	ListByProperty(ctx context.Context, propertyID string, mode models.SortMode) ([]models.Review, stats.Summary, error)
	HomeFeed(ctx context.Context) ([]models.Review, error)
	SetImage(ctx context.Context, reviewID primitive.ObjectID, imageURL string) error
}

const reviewsCollection = "reviews"

// reviewService implements IReviewService.
type reviewService struct {
	db  *mongo.Database
	cfg *config.Config
	hub *live.Hub
}

// NewReviewService creates a new ReviewService.
func NewReviewService(database *mongo.Database, cfg *config.Config, hub *live.Hub) IReviewService {
	return &reviewService{db: database, cfg: cfg, hub: hub}
}

func (s *reviewService) collection() *mongo.Collection {
	return db.ScopedCollection(s.db, s.cfg.AppID, reviewsCollection)
}

func (s *reviewService) notifyChanged(ctx context.Context, propertyID string) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(ctx, live.TopicReviews(propertyID))
	s.hub.Publish(ctx, live.TopicFeed)
}

// Create inserts a new review. The property's name and category are
// denormalized onto the document so lists render without any join.
func (s *reviewService) Create(ctx context.Context, property models.Property, uid, userEmail string, input ReviewInput) (*models.Review, error) {
	collection := s.collection()
	now := time.Now().UTC()

	review := &models.Review{
		ID:             primitive.NewObjectID(),
		PropertyID:     property.ID,
		PropertyName:   property.Name,
		Category:       property.Category,
		UserID:         uid,
		UserEmail:      userEmail,
		Rating:         input.Rating,
		LocationRating: input.LocationRating,
		Rent:           input.Rent,
		Distance:       input.Distance,
		Comment:        input.Comment,
		Tags:           input.Tags,
		Image:          input.Image,
		StudentLevel:   input.StudentLevel,
		HelpfulCount:   0,
		VotedUIDs:      []string{},
		Timestamp:      now,
	}

	err := db.Try(func() error {
		_, insertErr := collection.InsertOne(ctx, review)
		return insertErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert review for property %s by %s: %w", property.ID, uid, err)
	}

	s.notifyChanged(ctx, property.ID)
	return review, nil
}

// Update replaces the author-editable fields of a review and stamps
// last_edited. Author, property and creation time never change; the vote
// tally survives edits untouched.
func (s *reviewService) Update(ctx context.Context, reviewID primitive.ObjectID, uid string, input ReviewInput) (*models.Review, error) {
	collection := s.collection()

	filter := bson.M{"_id": reviewID, "user_id": uid}
	update := bson.M{"$set": bson.M{
		"rating":          input.Rating,
		"location_rating": input.LocationRating,
		"rent":            input.Rent,
		"distance":        input.Distance,
		"comment":         input.Comment,
		"tags":            input.Tags,
		"image":           input.Image,
		"student_level":   input.StudentLevel,
		"last_edited":     time.Now().UTC(),
	}}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Review
	err := collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Either the review is gone or it belongs to someone else.
			count, countErr := collection.CountDocuments(ctx, bson.M{"_id": reviewID})
			if countErr == nil && count > 0 {
				return nil, ErrNotReviewAuthor
			}
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error updating review %s: %w", reviewID.Hex(), err)
	}

	s.notifyChanged(ctx, updated.PropertyID)
	return &updated, nil
}

// CastHelpfulVote bumps the helpful counter and records the voter in one
// atomic update. The filter excludes documents already carrying the uid, so
// the counter and the voter list can never drift apart, even under
// concurrent votes.
func (s *reviewService) CastHelpfulVote(ctx context.Context, reviewID primitive.ObjectID, uid string) error {
	collection := s.collection()

	filter := bson.M{"_id": reviewID, "voted_uids": bson.M{"$ne": uid}}
	update := bson.M{
		"$inc":      bson.M{"helpful_count": 1},
		"$addToSet": bson.M{"voted_uids": uid},
	}

	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("error casting helpful vote on review %s: %w", reviewID.Hex(), err)
	}

	if result.MatchedCount == 0 {
		count, countErr := collection.CountDocuments(ctx, bson.M{"_id": reviewID})
		if countErr != nil {
			return fmt.Errorf("error checking review %s after vote: %w", reviewID.Hex(), countErr)
		}
		if count == 0 {
			return mongo.ErrNoDocuments
		}
		return nil // already voted
	}

	review, err := s.FindByID(ctx, reviewID)
	if err == nil {
		s.notifyChanged(ctx, review.PropertyID)
	}
	return nil
}

// FindByID fetches a single review.
func (s *reviewService) FindByID(ctx context.Context, reviewID primitive.ObjectID) (*models.Review, error) {
	var review models.Review
	err := s.collection().FindOne(ctx, bson.M{"_id": reviewID}).Decode(&review)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding review %s: %w", reviewID.Hex(), err)
	}
	return &review, nil
}

// ListByProperty returns every review of a property in the requested order,
// together with the aggregate summary. Ordering happens in memory: per
// property the review count stays small, and it keeps the four sort modes in
// one tested place.
func (s *reviewService) ListByProperty(ctx context.Context, propertyID string, mode models.SortMode) ([]models.Review, stats.Summary, error) {
	cursor, err := s.collection().Find(ctx, bson.M{"property_id": propertyID})
	if err != nil {
		return nil, stats.Summary{}, fmt.Errorf("failed to query reviews for property %s: %w", propertyID, err)
	}
	defer cursor.Close(ctx)

	reviews := []models.Review{}
	if err = cursor.All(ctx, &reviews); err != nil {
		return nil, stats.Summary{}, fmt.Errorf("failed to decode reviews for property %s: %w", propertyID, err)
	}

	return stats.SortReviews(reviews, mode), stats.Compute(reviews), nil
}

// HomeFeed returns the newest reviews across all properties.
func (s *reviewService) HomeFeed(ctx context.Context) ([]models.Review, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(s.cfg.HomeFeedLimit))

	cursor, err := s.collection().Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query home feed: %w", err)
	}
	defer cursor.Close(ctx)

	reviews := []models.Review{}
	if err = cursor.All(ctx, &reviews); err != nil {
		return nil, fmt.Errorf("failed to decode home feed: %w", err)
	}
	return reviews, nil
}

// SetImage points a review at its processed image URL. Used by the image
// worker after the original upload has been normalized.
func (s *reviewService) SetImage(ctx context.Context, reviewID primitive.ObjectID, imageURL string) error {
	update := bson.M{"$set": bson.M{"image": imageURL}}
	result, err := s.collection().UpdateOne(ctx, bson.M{"_id": reviewID}, update)
	if err != nil {
		return fmt.Errorf("error setting image on review %s: %w", reviewID.Hex(), err)
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}

	review, err := s.FindByID(ctx, reviewID)
	if err == nil {
		s.notifyChanged(ctx, review.PropertyID)
	}
	return nil
}
