package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/vasapolrittideah/chatdesk/services/chat-service/internal/model"
)

func newUserRepositoryTest(t *testing.T) UserRepository {
	t.Helper()

	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db := client.Database("chatdesk_test_" + uuid.NewString()[:8])
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})

	logger := zerolog.Nop()

	return NewUserMongoRepository(ctx, &logger, db)
}

func TestUserMongoRepository(t *testing.T) {
	repo := newUserRepositoryTest(t)
	ctx := context.Background()

	user, err := repo.CreateUser(ctx, &model.User{
		FirstName:    "Ada",
		LastName:     "Lovelace",
		Email:        "ada@example.com",
		PasswordHash: "hash",
	})
	require.NoError(t, err)
	require.False(t, user.ID.IsZero())

	_, err = repo.CreateUser(ctx, &model.User{Email: "ada@example.com"})
	assert.ErrorIs(t, err, ErrUserAlreadyExists)

	byEmail, err := repo.GetUserByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)
	assert.False(t, byEmail.HasSession())

	session := &model.RefreshSession{
		Token:       "refresh-1",
		DeviceID:    "device-1",
		AccessToken: "access-1",
		IPAddress:   "127.0.0.1",
		CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, repo.SetRefreshSession(ctx, user.ID.Hex(), session))

	require.NoError(t, repo.UpdateSessionAccessToken(ctx, user.ID.Hex(), "refresh-1", "access-2"))
	assert.ErrorIs(t, repo.UpdateSessionAccessToken(ctx, user.ID.Hex(), "stale", "access-3"), ErrUserNotFound)

	got, err := repo.GetUser(ctx, user.ID.Hex())
	require.NoError(t, err)
	require.True(t, got.HasSession())
	assert.Equal(t, "refresh-1", got.RefreshSession.Token)
	assert.Equal(t, "access-2", got.RefreshSession.AccessToken)

	require.NoError(t, repo.SetRefreshSession(ctx, user.ID.Hex(), nil))
	got, err = repo.GetUser(ctx, user.ID.Hex())
	require.NoError(t, err)
	assert.Nil(t, got.RefreshSession)
}

func TestUserMongoRepositoryNotFound(t *testing.T) {
	repo := newUserRepositoryTest(t)
	ctx := context.Background()

	_, err := repo.GetUser(ctx, "not-an-object-id")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = repo.GetUser(ctx, "64b7f0c2a1b2c3d4e5f60718")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = repo.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)

	assert.ErrorIs(t, repo.SetRefreshSession(ctx, "64b7f0c2a1b2c3d4e5f60718", nil), ErrUserNotFound)
}
