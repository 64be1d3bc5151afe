package handlers

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/draggle/rate-my-rez-waterloo/internal/models"
	"github.com/draggle/rate-my-rez-waterloo/internal/services"
	"github.com/draggle/rate-my-rez-waterloo/internal/stats"
)

// --- Mock IUserService ---

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) SignUp(ctx context.Context, email, password string) (*models.User, error) {
	args := m.Called(ctx, email, password)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *MockUserService) LogIn(ctx context.Context, email, password string) (*models.User, error) {
	args := m.Called(ctx, email, password)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *MockUserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *MockUserService) FindByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *MockUserService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	args := m.Called(ctx, email)
	return args.String(0), args.Error(1)
}

func (m *MockUserService) ResetPassword(ctx context.Context, token, newPassword string) (*models.User, error) {
	args := m.Called(ctx, token, newPassword)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

// --- Mock IReviewService ---

type MockReviewService struct {
	mock.Mock
}

func (m *MockReviewService) Create(ctx context.Context, property models.Property, uid, userEmail string, input services.ReviewInput) (*models.Review, error) {
	args := m.Called(ctx, property, uid, userEmail, input)
	review, _ := args.Get(0).(*models.Review)
	return review, args.Error(1)
}

func (m *MockReviewService) Update(ctx context.Context, reviewID primitive.ObjectID, uid string, input services.ReviewInput) (*models.Review, error) {
	args := m.Called(ctx, reviewID, uid, input)
	review, _ := args.Get(0).(*models.Review)
	return review, args.Error(1)
}

func (m *MockReviewService) CastHelpfulVote(ctx context.Context, reviewID primitive.ObjectID, uid string) error {
	args := m.Called(ctx, reviewID, uid)
	return args.Error(0)
}

func (m *MockReviewService) FindByID(ctx context.Context, reviewID primitive.ObjectID) (*models.Review, error) {
	args := m.Called(ctx, reviewID)
	review, _ := args.Get(0).(*models.Review)
	return review, args.Error(1)
}

func (m *MockReviewService) ListByProperty(ctx context.Context, propertyID string, mode models.SortMode) ([]models.Review, stats.Summary, error) {
	args := m.Called(ctx, propertyID, mode)
	reviews, _ := args.Get(0).([]models.Review)
	summary, _ := args.Get(1).(stats.Summary)
	return reviews, summary, args.Error(2)
}

func (m *MockReviewService) HomeFeed(ctx context.Context) ([]models.Review, error) {
	args := m.Called(ctx)
	reviews, _ := args.Get(0).([]models.Review)
	return reviews, args.Error(1)
}

func (m *MockReviewService) SetImage(ctx context.Context, reviewID primitive.ObjectID, imageURL string) error {
	args := m.Called(ctx, reviewID, imageURL)
	return args.Error(0)
}

// --- Mock IQuestionService ---

type MockQuestionService struct {
	mock.Mock
}

func (m *MockQuestionService) CreateQuestion(ctx context.Context, property models.Property, uid, text string) (*models.Question, error) {
	args := m.Called(ctx, property, uid, text)
	question, _ := args.Get(0).(*models.Question)
	return question, args.Error(1)
}

func (m *MockQuestionService) ListByProperty(ctx context.Context, propertyID string) ([]models.Question, error) {
	args := m.Called(ctx, propertyID)
	questions, _ := args.Get(0).([]models.Question)
	return questions, args.Error(1)
}

func (m *MockQuestionService) CreateReply(ctx context.Context, questionID primitive.ObjectID, uid, text string) (*models.Reply, error) {
	args := m.Called(ctx, questionID, uid, text)
	reply, _ := args.Get(0).(*models.Reply)
	return reply, args.Error(1)
}

func (m *MockQuestionService) ListByQuestion(ctx context.Context, questionID primitive.ObjectID) ([]models.Reply, error) {
	args := m.Called(ctx, questionID)
	replies, _ := args.Get(0).([]models.Reply)
	return replies, args.Error(1)
}

func (m *MockQuestionService) FindQuestionByID(ctx context.Context, questionID primitive.ObjectID) (*models.Question, error) {
	args := m.Called(ctx, questionID)
	question, _ := args.Get(0).(*models.Question)
	return question, args.Error(1)
}

// --- Mock IAsynqClient ---

type MockAsynqClient struct {
	mock.Mock
}

func (m *MockAsynqClient) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task, opts)
	info, _ := args.Get(0).(*asynq.TaskInfo)
	return info, args.Error(1)
}
