package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
)

// --- Test Setup Helper ---
func setupUserServiceTest(t *testing.T) (IUserService, func()) {
	// Use a unique DB name per test to avoid parallel test interference
	dbName := fmt.Sprintf("testdb_user_service_%d", time.Now().UnixNano())
	db, cleanup := setupTestDB(t, dbName)
	svc := NewUserService(db, testConfig(), nil)
	return svc, cleanup
}

// --- Tests ---
func TestUserService_SignUpAndLogIn(t *testing.T) {
	svc, cleanup := setupUserServiceTest(t)
	defer cleanup()

	email := "jsmith@uwaterloo.ca"
	user, err := svc.SignUp(context.Background(), email, "hunter22")
	require.NoError(t, err)
	assert.Equal(t, email, user.Email)
	assert.NotEmpty(t, user.UID())
	// The stored hash must never equal the plaintext
	assert.NotEqual(t, "hunter22", user.PasswordHash)

	loggedIn, err := svc.LogIn(context.Background(), email, "hunter22")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)

	fetched, err := svc.FindByEmail(context.Background(), email)
	require.NoError(t, err)
	assert.Equal(t, user.ID, fetched.ID)

	fetchedByID, err := svc.FindByID(context.Background(), user.UID())
	require.NoError(t, err)
	assert.Equal(t, email, fetchedByID.Email)
}

func TestUserService_SignUpRejectsOutsideDomain(t *testing.T) {
	svc, cleanup := setupUserServiceTest(t)
	defer cleanup()

	_, err := svc.SignUp(context.Background(), "someone@gmail.com", "hunter22")
	assert.ErrorIs(t, err, ErrDomainRejected)

	// Suffix must match the whole domain, not just a substring
	_, err = svc.SignUp(context.Background(), "someone@uwaterloo.ca.evil.com", "hunter22")
	assert.ErrorIs(t, err, ErrDomainRejected)
}

func TestUserService_SignUpDuplicateEmail(t *testing.T) {
	svc, cleanup := setupUserServiceTest(t)
	defer cleanup()

	email := "dup@uwaterloo.ca"
	_, err := svc.SignUp(context.Background(), email, "hunter22")
	require.NoError(t, err)

	_, err = svc.SignUp(context.Background(), email, "other-password")
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestUserService_SignUpShortPassword(t *testing.T) {
	svc, cleanup := setupUserServiceTest(t)
	defer cleanup()

	_, err := svc.SignUp(context.Background(), "short@uwaterloo.ca", "abc")
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestUserService_LogInWrongPassword(t *testing.T) {
	svc, cleanup := setupUserServiceTest(t)
	defer cleanup()

	email := "login@uwaterloo.ca"
	_, err := svc.SignUp(context.Background(), email, "hunter22")
	require.NoError(t, err)

	_, err = svc.LogIn(context.Background(), email, "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredential)

	// Unknown account looks exactly like a bad password
	_, err = svc.LogIn(context.Background(), "nobody@uwaterloo.ca", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredential)

	// Out-of-domain email is rejected before any lookup
	_, err = svc.LogIn(context.Background(), "login@gmail.com", "hunter22")
	assert.ErrorIs(t, err, ErrDomainRejected)
}

func TestUserService_FindByIDRejectsGarbage(t *testing.T) {
	svc, cleanup := setupUserServiceTest(t)
	defer cleanup()

	_, err := svc.FindByID(context.Background(), "not-a-hex-id")
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)
}

func TestUserService_PasswordResetUnknownEmailIsSilent(t *testing.T) {
	svc, cleanup := setupUserServiceTest(t)
	defer cleanup()

	// No account: no token, no error, nothing leaked to the caller
	token, err := svc.RequestPasswordReset(context.Background(), "ghost@uwaterloo.ca")
	assert.NoError(t, err)
	assert.Empty(t, token)

	// Out-of-domain is still rejected outright
	_, err = svc.RequestPasswordReset(context.Background(), "ghost@gmail.com")
	assert.ErrorIs(t, err, ErrDomainRejected)
}
