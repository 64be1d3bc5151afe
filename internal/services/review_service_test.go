package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/draggle/rate-my-rez-waterloo/internal/live"
	"github.com/draggle/rate-my-rez-waterloo/internal/models"
)

// --- Test Setup Helper ---
func setupReviewServiceTest(t *testing.T) (IReviewService, *live.Hub, func()) {
	dbName := fmt.Sprintf("testdb_review_service_%d", time.Now().UnixNano())
	db, cleanup := setupTestDB(t, dbName)
	hub := live.NewHub()
	svc := NewReviewService(db, testConfig(), hub)
	return svc, hub, cleanup
}

func cmhProperty() models.Property {
	p, _ := models.PropertyByID("cmh")
	return p
}

// --- Tests ---
func TestReviewService_CreateAndList(t *testing.T) {
	svc, _, cleanup := setupReviewServiceTest(t)
	defer cleanup()

	review, err := svc.Create(context.Background(), cmhProperty(), "uid-1", "jsmith@uwaterloo.ca", ReviewInput{
		Rating:         4,
		LocationRating: 5,
		Rent:           850,
		Distance:       5,
		Comment:        "Great first-year experience",
		Tags:           []string{"ac", "social"},
	})
	require.NoError(t, err)
	assert.Equal(t, "cmh", review.PropertyID)
	assert.Equal(t, "Claudette Millar Hall (CMH)", review.PropertyName)
	assert.Equal(t, models.CategoryOnCampus, review.Category)
	assert.Equal(t, 0, review.HelpfulCount)
	assert.NotNil(t, review.VotedUIDs)
	assert.Empty(t, review.VotedUIDs)
	assert.Nil(t, review.LastEdited)

	reviews, summary, err := svc.ListByProperty(context.Background(), "cmh", models.SortNewest)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, review.ID, reviews[0].ID)
	assert.Equal(t, 4.0, summary.AvgRating)
	assert.Equal(t, 850, summary.AvgRent)
}

func TestReviewService_UpdateByAuthorOnly(t *testing.T) {
	svc, _, cleanup := setupReviewServiceTest(t)
	defer cleanup()

	review, err := svc.Create(context.Background(), cmhProperty(), "uid-author", "a@uwaterloo.ca", ReviewInput{
		Rating: 2, Comment: "meh",
	})
	require.NoError(t, err)

	// Someone else cannot edit it
	_, err = svc.Update(context.Background(), review.ID, "uid-intruder", ReviewInput{Rating: 5, Comment: "hijacked"})
	assert.ErrorIs(t, err, ErrNotReviewAuthor)

	updated, err := svc.Update(context.Background(), review.ID, "uid-author", ReviewInput{Rating: 3, Comment: "better on reflection"})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Rating)
	assert.Equal(t, "better on reflection", updated.Comment)
	require.NotNil(t, updated.LastEdited)
	// Immutable fields survive the edit
	assert.Equal(t, review.UserID, updated.UserID)
	assert.Equal(t, review.PropertyID, updated.PropertyID)
	assert.Equal(t, review.Timestamp.Unix(), updated.Timestamp.Unix())

	_, err = svc.Update(context.Background(), primitive.NewObjectID(), "uid-author", ReviewInput{Rating: 1})
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)
}

func TestReviewService_UpdateRecomputesStats(t *testing.T) {
	svc, _, cleanup := setupReviewServiceTest(t)
	defer cleanup()

	review, err := svc.Create(context.Background(), cmhProperty(), "uid-author", "a@uwaterloo.ca", ReviewInput{
		Rating: 3, Rent: 800, Comment: "pricey",
	})
	require.NoError(t, err)

	_, summary, err := svc.ListByProperty(context.Background(), "cmh", models.SortNewest)
	require.NoError(t, err)
	assert.Equal(t, 3.0, summary.AvgRating)
	assert.Equal(t, 800, summary.AvgRent)

	// Editing away the rent leaves no priced reviews, so the average drops
	// to zero rather than averaging over a phantom value.
	updated, err := svc.Update(context.Background(), review.ID, "uid-author", ReviewInput{Rating: 5, Rent: 0, Comment: "rent went away"})
	require.NoError(t, err)
	require.NotNil(t, updated.LastEdited)

	reviews, summary, err := svc.ListByProperty(context.Background(), "cmh", models.SortNewest)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, 5.0, summary.AvgRating)
	assert.Equal(t, 0, summary.AvgRent)
}

func TestReviewService_UpdateKeepsVoteTally(t *testing.T) {
	svc, _, cleanup := setupReviewServiceTest(t)
	defer cleanup()

	review, err := svc.Create(context.Background(), cmhProperty(), "uid-author", "a@uwaterloo.ca", ReviewInput{Rating: 4})
	require.NoError(t, err)
	require.NoError(t, svc.CastHelpfulVote(context.Background(), review.ID, "uid-voter"))

	updated, err := svc.Update(context.Background(), review.ID, "uid-author", ReviewInput{Rating: 5})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.HelpfulCount)
	assert.Equal(t, []string{"uid-voter"}, updated.VotedUIDs)
}

func TestReviewService_HelpfulVoteDedup(t *testing.T) {
	svc, _, cleanup := setupReviewServiceTest(t)
	defer cleanup()

	review, err := svc.Create(context.Background(), cmhProperty(), "uid-author", "a@uwaterloo.ca", ReviewInput{Rating: 4})
	require.NoError(t, err)

	require.NoError(t, svc.CastHelpfulVote(context.Background(), review.ID, "uid-voter"))
	// Second vote from the same uid is a silent no-op
	require.NoError(t, svc.CastHelpfulVote(context.Background(), review.ID, "uid-voter"))

	fetched, err := svc.FindByID(context.Background(), review.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, fetched.HelpfulCount)
	assert.Equal(t, []string{"uid-voter"}, fetched.VotedUIDs)

	// Vote on a missing review is an actual error
	err = svc.CastHelpfulVote(context.Background(), primitive.NewObjectID(), "uid-voter")
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)
}

func TestReviewService_ConcurrentVotesStayConsistent(t *testing.T) {
	svc, _, cleanup := setupReviewServiceTest(t)
	defer cleanup()

	review, err := svc.Create(context.Background(), cmhProperty(), "uid-author", "a@uwaterloo.ca", ReviewInput{Rating: 4})
	require.NoError(t, err)

	const voters = 20
	var wg sync.WaitGroup
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			// Every voter fires twice; the duplicate must never count
			uid := fmt.Sprintf("uid-voter-%d", n)
			_ = svc.CastHelpfulVote(context.Background(), review.ID, uid)
			_ = svc.CastHelpfulVote(context.Background(), review.ID, uid)
		}(i)
	}
	wg.Wait()

	fetched, err := svc.FindByID(context.Background(), review.ID)
	require.NoError(t, err)
	assert.Equal(t, voters, fetched.HelpfulCount)
	assert.Len(t, fetched.VotedUIDs, voters)
	assert.Equal(t, fetched.HelpfulCount, len(fetched.VotedUIDs))
}

func TestReviewService_SortModes(t *testing.T) {
	svc, _, cleanup := setupReviewServiceTest(t)
	defer cleanup()

	ctx := context.Background()
	property := cmhProperty()
	cheap, err := svc.Create(ctx, property, "u1", "a@uwaterloo.ca", ReviewInput{Rating: 3, Rent: 600})
	require.NoError(t, err)
	unpriced, err := svc.Create(ctx, property, "u2", "b@uwaterloo.ca", ReviewInput{Rating: 4})
	require.NoError(t, err)
	pricey, err := svc.Create(ctx, property, "u3", "c@uwaterloo.ca", ReviewInput{Rating: 5, Rent: 1200})
	require.NoError(t, err)

	require.NoError(t, svc.CastHelpfulVote(ctx, cheap.ID, "voter-a"))

	byRent, _, err := svc.ListByProperty(ctx, property.ID, models.SortRentLow)
	require.NoError(t, err)
	require.Len(t, byRent, 3)
	assert.Equal(t, cheap.ID, byRent[0].ID)
	assert.Equal(t, pricey.ID, byRent[1].ID)
	assert.Equal(t, unpriced.ID, byRent[2].ID)

	byHelpful, _, err := svc.ListByProperty(ctx, property.ID, models.SortMostHelpful)
	require.NoError(t, err)
	assert.Equal(t, cheap.ID, byHelpful[0].ID)
}

func TestReviewService_HomeFeedLimitAndOrder(t *testing.T) {
	svc, _, cleanup := setupReviewServiceTest(t)
	defer cleanup()

	ctx := context.Background()
	property := cmhProperty()
	for i := 0; i < 25; i++ {
		_, err := svc.Create(ctx, property, fmt.Sprintf("u%d", i), "a@uwaterloo.ca", ReviewInput{
			Rating:  3,
			Comment: fmt.Sprintf("review %d", i),
		})
		require.NoError(t, err)
	}

	feed, err := svc.HomeFeed(ctx)
	require.NoError(t, err)
	require.Len(t, feed, 20)
	// Newest first
	for i := 1; i < len(feed); i++ {
		assert.False(t, feed[i].Timestamp.After(feed[i-1].Timestamp))
	}
	assert.Equal(t, "review 24", feed[0].Comment)
}

func TestReviewService_CreatePublishesLiveSnapshots(t *testing.T) {
	svc, hub, cleanup := setupReviewServiceTest(t)
	defer cleanup()

	ctx := context.Background()
	sub := hub.Subscribe(ctx, live.TopicReviews("cmh"), func(ctx context.Context) (interface{}, error) {
		reviews, _, err := svc.ListByProperty(ctx, "cmh", models.SortNewest)
		if err != nil {
			return nil, err
		}
		return reviews, nil
	})
	defer sub.Close()

	// Initial snapshot: empty
	initial := <-sub.Updates()
	require.NoError(t, initial.Err)
	assert.Empty(t, initial.Data)

	_, err := svc.Create(ctx, cmhProperty(), "uid-1", "a@uwaterloo.ca", ReviewInput{Rating: 5, Comment: "live"})
	require.NoError(t, err)

	select {
	case snap := <-sub.Updates():
		require.NoError(t, snap.Err)
		reviews := snap.Data.([]models.Review)
		require.Len(t, reviews, 1)
		assert.Equal(t, "live", reviews[0].Comment)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for live snapshot after create")
	}
}

func TestReviewService_SetImage(t *testing.T) {
	svc, _, cleanup := setupReviewServiceTest(t)
	defer cleanup()

	review, err := svc.Create(context.Background(), cmhProperty(), "uid-1", "a@uwaterloo.ca", ReviewInput{
		Rating: 4,
		Image:  "data:image/jpeg;base64,AAAA",
	})
	require.NoError(t, err)

	url := "https://img.example.com/reviews/cmh/" + review.ID.Hex() + ".jpg"
	require.NoError(t, svc.SetImage(context.Background(), review.ID, url))

	fetched, err := svc.FindByID(context.Background(), review.ID)
	require.NoError(t, err)
	assert.Equal(t, url, fetched.Image)

	err = svc.SetImage(context.Background(), primitive.NewObjectID(), url)
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)
}
