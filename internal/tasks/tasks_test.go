package tasks_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/draggle/rate-my-rez-waterloo/internal/config"
	"github.com/draggle/rate-my-rez-waterloo/internal/models"
	"github.com/draggle/rate-my-rez-waterloo/internal/services"
	"github.com/draggle/rate-my-rez-waterloo/internal/stats"
	"github.com/draggle/rate-my-rez-waterloo/internal/tasks"
)

// --- Mocks ---

type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	args := m.Called(ctx, to, subject, rawMessage)
	return args.Error(0)
}

type MockS3Storage struct {
	mock.Mock
}

func (m *MockS3Storage) UploadReviewImage(ctx context.Context, propertyID, reviewID string, data []byte, contentType string) (string, error) {
	args := m.Called(ctx, propertyID, reviewID, data, contentType)
	return args.String(0), args.Error(1)
}

type MockReviewService struct {
	mock.Mock
}

func (m *MockReviewService) Create(ctx context.Context, property models.Property, uid, userEmail string, input services.ReviewInput) (*models.Review, error) {
	args := m.Called(ctx, property, uid, userEmail, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Review), args.Error(1)
}

func (m *MockReviewService) Update(ctx context.Context, reviewID primitive.ObjectID, uid string, input services.ReviewInput) (*models.Review, error) {
	args := m.Called(ctx, reviewID, uid, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Review), args.Error(1)
}

func (m *MockReviewService) CastHelpfulVote(ctx context.Context, reviewID primitive.ObjectID, uid string) error {
	args := m.Called(ctx, reviewID, uid)
	return args.Error(0)
}

func (m *MockReviewService) FindByID(ctx context.Context, reviewID primitive.ObjectID) (*models.Review, error) {
	args := m.Called(ctx, reviewID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Review), args.Error(1)
}

func (m *MockReviewService) ListByProperty(ctx context.Context, propertyID string, mode models.SortMode) ([]models.Review, stats.Summary, error) {
	args := m.Called(ctx, propertyID, mode)
	var reviews []models.Review
	if args.Get(0) != nil {
		reviews = args.Get(0).([]models.Review)
	}
	return reviews, args.Get(1).(stats.Summary), args.Error(2)
}

func (m *MockReviewService) HomeFeed(ctx context.Context) ([]models.Review, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Review), args.Error(1)
}

func (m *MockReviewService) SetImage(ctx context.Context, reviewID primitive.ObjectID, imageURL string) error {
	args := m.Called(ctx, reviewID, imageURL)
	return args.Error(0)
}

// jpegDataURL encodes a blank image of the given size as a base64 data URL.
func jpegDataURL(t *testing.T, width, height int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

// --- Tests ---

func TestHandleEmailDeliveryTask_Success(t *testing.T) {
	mockEmailSender := new(MockEmailSender)
	cfg := &config.Config{SmtpFromAddress: "noreply@ratemyrez.example.com"}
	p := tasks.NewTaskProcessor(cfg, mockEmailSender, nil, nil)

	task, err := tasks.NewEmailDeliveryTask("jsmith@uwaterloo.ca", "Reset your password", "Use this link: http://example.com/reset/abc")
	require.NoError(t, err)

	mockEmailSender.On("Send",
		mock.Anything,
		[]string{"jsmith@uwaterloo.ca"},
		"Reset your password",
		mock.MatchedBy(func(rawMsg []byte) bool {
			msgStr := string(rawMsg)
			assert.Contains(t, msgStr, "To: jsmith@uwaterloo.ca")
			assert.Contains(t, msgStr, fmt.Sprintf("From: %s", cfg.SmtpFromAddress))
			assert.Contains(t, msgStr, "Subject: Reset your password")
			assert.Contains(t, msgStr, "http://example.com/reset/abc")
			return true
		}),
	).Return(nil)

	err = p.HandleEmailDeliveryTask(context.Background(), task)
	assert.NoError(t, err)
	mockEmailSender.AssertExpectations(t)
}

func TestHandleEmailDeliveryTask_BadPayload(t *testing.T) {
	p := tasks.NewTaskProcessor(&config.Config{}, new(MockEmailSender), nil, nil)
	task := asynq.NewTask(tasks.TypeEmailDelivery, []byte("{not json"))

	err := p.HandleEmailDeliveryTask(context.Background(), task)
	assert.True(t, errors.Is(err, asynq.SkipRetry), "Malformed payload must not be retried")
}

func TestHandleImageProcessTask_ResizesAndUploads(t *testing.T) {
	mockStorage := new(MockS3Storage)
	mockReviews := new(MockReviewService)
	cfg := &config.Config{ImageMaxWidth: 800, ImageMaxSizeMB: 10, ImageBaseS3URL: "https://img.example.com"}
	p := tasks.NewTaskProcessor(cfg, nil, mockStorage, mockReviews)

	reviewID := primitive.NewObjectID()
	review := &models.Review{
		ID:         reviewID,
		PropertyID: "cmh",
		Image:      jpegDataURL(t, 1600, 900),
	}
	mockReviews.On("FindByID", mock.Anything, reviewID).Return(review, nil)

	uploadedURL := "https://img.example.com/reviews/cmh/" + reviewID.Hex() + ".jpg"
	mockStorage.On("UploadReviewImage",
		mock.Anything, "cmh", reviewID.Hex(),
		mock.MatchedBy(func(data []byte) bool {
			img, _, err := image.Decode(bytes.NewReader(data))
			require.NoError(t, err)
			// Downscaled to the configured width, aspect ratio preserved
			assert.Equal(t, 800, img.Bounds().Dx())
			assert.Equal(t, 450, img.Bounds().Dy())
			return true
		}),
		"image/jpeg",
	).Return(uploadedURL, nil)
	mockReviews.On("SetImage", mock.Anything, reviewID, uploadedURL).Return(nil)

	task, err := tasks.NewImageProcessTask(reviewID.Hex())
	require.NoError(t, err)

	err = p.HandleImageProcessTask(context.Background(), task)
	assert.NoError(t, err)
	mockStorage.AssertExpectations(t)
	mockReviews.AssertExpectations(t)
}

func TestHandleImageProcessTask_SmallImageKeptAtSize(t *testing.T) {
	mockStorage := new(MockS3Storage)
	mockReviews := new(MockReviewService)
	cfg := &config.Config{ImageMaxWidth: 800, ImageMaxSizeMB: 10, ImageBaseS3URL: "https://img.example.com"}
	p := tasks.NewTaskProcessor(cfg, nil, mockStorage, mockReviews)

	reviewID := primitive.NewObjectID()
	review := &models.Review{ID: reviewID, PropertyID: "rev", Image: jpegDataURL(t, 400, 300)}
	mockReviews.On("FindByID", mock.Anything, reviewID).Return(review, nil)

	mockStorage.On("UploadReviewImage",
		mock.Anything, "rev", reviewID.Hex(),
		mock.MatchedBy(func(data []byte) bool {
			img, _, err := image.Decode(bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, 400, img.Bounds().Dx())
			return true
		}),
		"image/jpeg",
	).Return("https://img.example.com/reviews/rev/x.jpg", nil)
	mockReviews.On("SetImage", mock.Anything, reviewID, mock.Anything).Return(nil)

	task, err := tasks.NewImageProcessTask(reviewID.Hex())
	require.NoError(t, err)
	assert.NoError(t, p.HandleImageProcessTask(context.Background(), task))
	mockStorage.AssertExpectations(t)
}

func TestHandleImageProcessTask_AlreadyProcessedIsNoOp(t *testing.T) {
	mockStorage := new(MockS3Storage)
	mockReviews := new(MockReviewService)
	p := tasks.NewTaskProcessor(&config.Config{ImageMaxWidth: 800, ImageMaxSizeMB: 10}, nil, mockStorage, mockReviews)

	reviewID := primitive.NewObjectID()
	review := &models.Review{ID: reviewID, PropertyID: "cmh", Image: "https://img.example.com/reviews/cmh/done.jpg"}
	mockReviews.On("FindByID", mock.Anything, reviewID).Return(review, nil)

	task, err := tasks.NewImageProcessTask(reviewID.Hex())
	require.NoError(t, err)

	assert.NoError(t, p.HandleImageProcessTask(context.Background(), task))
	mockStorage.AssertNotCalled(t, "UploadReviewImage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	mockReviews.AssertNotCalled(t, "SetImage", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleImageProcessTask_MissingReviewSkipsRetry(t *testing.T) {
	mockReviews := new(MockReviewService)
	p := tasks.NewTaskProcessor(&config.Config{}, nil, new(MockS3Storage), mockReviews)

	reviewID := primitive.NewObjectID()
	mockReviews.On("FindByID", mock.Anything, reviewID).Return(nil, assert.AnError)

	task, err := tasks.NewImageProcessTask(reviewID.Hex())
	require.NoError(t, err)

	err = p.HandleImageProcessTask(context.Background(), task)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}
