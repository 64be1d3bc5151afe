package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/draggle/rate-my-rez-waterloo/internal/auth"
	"github.com/draggle/rate-my-rez-waterloo/internal/config"
	"github.com/draggle/rate-my-rez-waterloo/internal/db"
	"github.com/draggle/rate-my-rez-waterloo/internal/models"
)

// ErrEmailExists is returned when an attempt is made to use an email that already exists.
var ErrEmailExists = errors.New("email already in use by another account")

// ErrDomainRejected is returned when the email is not from the allowed institution.
var ErrDomainRejected = errors.New("email domain not allowed")

// ErrInvalidCredential is returned on a failed login.
var ErrInvalidCredential = errors.New("invalid email or password")

// ErrPasswordTooShort is returned when a password does not meet the minimum length.
var ErrPasswordTooShort = errors.New("password too short")

// ErrResetTokenInvalid is returned when a password reset token is unknown or expired.
var ErrResetTokenInvalid = errors.New("reset token invalid or expired")

// IUserService defines the interface for account operations.
// This allows for easier mocking in tests.
type IUserService interface {
	SignUp(ctx context.Context, email, password string) (*models.User, error)
	LogIn(ctx context.Context, email, password string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	// RequestPasswordReset issues a reset token for the account. It returns an
	// empty token without error when no account matches, so callers cannot
	// probe which emails are registered.
	RequestPasswordReset(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, token, newPassword string) (*models.User, error)
}

const usersCollection = "users"

// resetTokenKeyPrefix namespaces reset tokens in Redis.
const resetTokenKeyPrefix = "ratemyrez:reset:"

// userService implements IUserService.
type userService struct {
	db  *mongo.Database
	cfg *config.Config
	rdb *redis.Client // holds password reset tokens; nil disables resets
}

// NewUserService creates a new UserService.
func NewUserService(database *mongo.Database, cfg *config.Config, rdb *redis.Client) IUserService {
	return &userService{db: database, cfg: cfg, rdb: rdb}
}

func (s *userService) collection() *mongo.Collection {
	return db.ScopedCollection(s.db, s.cfg.AppID, usersCollection)
}

// checkEmailAllowed enforces the institutional domain gate. The suffix match
// is the whole check: mail deliverability is never verified, so this is a
// soft gate against drive-by signups, not proof of enrollment.
func (s *userService) checkEmailAllowed(email string) error {
	if !strings.HasSuffix(strings.ToLower(email), s.cfg.AllowedEmailSuffix) {
		return ErrDomainRejected
	}
	return nil
}

// SignUp registers a new account for an institutional email address.
func (s *userService) SignUp(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.TrimSpace(email)
	if err := s.checkEmailAllowed(email); err != nil {
		return nil, err
	}
	if len(password) < s.cfg.MinPasswordLength {
		return nil, ErrPasswordTooShort
	}

	collection := s.collection()

	count, err := collection.CountDocuments(ctx, bson.M{"email": email, "deleted": false})
	if err != nil {
		return nil, fmt.Errorf("error checking email uniqueness for %s: %w", email, err)
	}
	if count > 0 {
		return nil, ErrEmailExists
	}

	hashed, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password for %s: %w", email, err)
	}

	now := time.Now().UTC()
	newUser := &models.User{
		ID:           primitive.NewObjectID(),
		Email:        email,
		PasswordHash: hashed,
		Deleted:      false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = db.Try(func() error {
		_, insertErr := collection.InsertOne(ctx, newUser)
		return insertErr
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("error inserting new user for %s: %w", email, err)
	}

	log.Printf("Registered new account %s (%s)", newUser.UID(), email)
	return newUser, nil
}

// LogIn verifies credentials and returns the account. The domain gate applies
// here too so pre-existing out-of-domain accounts cannot slip through.
func (s *userService) LogIn(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.TrimSpace(email)
	if err := s.checkEmailAllowed(email); err != nil {
		return nil, err
	}

	user, err := s.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrInvalidCredential
		}
		return nil, err
	}

	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredential
	}
	return user, nil
}

// FindByEmail finds a non-deleted user by their email address.
// Returns nil and mongo.ErrNoDocuments if not found.
func (s *userService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	filter := bson.M{"email": email, "deleted": false}

	err := s.collection().FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding user by email %s: %w", email, err)
	}
	return &user, nil
}

// FindByID finds a non-deleted user by the hex form of their ID.
func (s *userService) FindByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, mongo.ErrNoDocuments
	}

	var user models.User
	filter := bson.M{"_id": oid, "deleted": false}

	err = s.collection().FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding user by ID %s: %w", id, err)
	}
	return &user, nil
}

// RequestPasswordReset issues a single-use reset token kept in Redis for the
// configured TTL.
func (s *userService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	if err := s.checkEmailAllowed(email); err != nil {
		return "", err
	}

	user, err := s.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			log.Printf("Password reset requested for unknown email %s", email)
			return "", nil
		}
		return "", err
	}

	if s.rdb == nil {
		return "", fmt.Errorf("password resets unavailable: no token store configured")
	}

	token := uuid.NewString()
	key := resetTokenKeyPrefix + token
	if err := s.rdb.Set(ctx, key, user.UID(), s.cfg.ResetLinkTTL).Err(); err != nil {
		return "", fmt.Errorf("failed to store reset token for %s: %w", email, err)
	}
	return token, nil
}

// ResetPassword consumes a reset token and sets the new password.
func (s *userService) ResetPassword(ctx context.Context, token, newPassword string) (*models.User, error) {
	if len(newPassword) < s.cfg.MinPasswordLength {
		return nil, ErrPasswordTooShort
	}
	if s.rdb == nil {
		return nil, fmt.Errorf("password resets unavailable: no token store configured")
	}

	key := resetTokenKeyPrefix + token
	uid, err := s.rdb.GetDel(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrResetTokenInvalid
		}
		return nil, fmt.Errorf("failed to look up reset token: %w", err)
	}

	oid, err := primitive.ObjectIDFromHex(uid)
	if err != nil {
		return nil, ErrResetTokenInvalid
	}

	hashed, err := auth.HashPassword(newPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to hash new password: %w", err)
	}

	update := bson.M{"$set": bson.M{"password": hashed, "updated_at": time.Now().UTC()}}
	result, err := s.collection().UpdateOne(ctx, bson.M{"_id": oid, "deleted": false}, update)
	if err != nil {
		return nil, fmt.Errorf("error updating password for user %s: %w", uid, err)
	}
	if result.MatchedCount == 0 {
		return nil, ErrResetTokenInvalid
	}

	return s.FindByID(ctx, uid)
}
