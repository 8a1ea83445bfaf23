package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"marketchat/internal/chat/repository"
	"marketchat/internal/chat/repository/mocks"
	"marketchat/internal/config"
	"marketchat/internal/dbmysql"
)

func testManager(t *testing.T) (*Manager, *mocks.MockUserRepository) {
	t.Helper()
	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserRepository(ctrl)
	cfg := &config.Config{
		Session: config.SessionConfig{
			Secret:   "test-secret",
			Issuer:   "marketchat-test",
			TTLHours: 1,
		},
	}
	return NewManager(cfg, users), users
}

func TestManager_IssueAndVerifyToken(t *testing.T) {
	m, _ := testManager(t)

	token, err := m.IssueToken("user-1", "alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := m.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "alice", claims.Handle)
	assert.Equal(t, "marketchat-test", claims.Issuer)
}

func TestManager_VerifyToken_RejectsGarbage(t *testing.T) {
	m, _ := testManager(t)

	_, err := m.VerifyToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestManager_VerifyToken_RejectsWrongSecret(t *testing.T) {
	m, _ := testManager(t)

	other := NewManager(&config.Config{
		Session: config.SessionConfig{Secret: "another-secret", Issuer: "x", TTLHours: 1},
	}, nil)
	token, err := other.IssueToken("user-1", "alice")
	require.NoError(t, err)

	_, err = m.VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestManager_Login(t *testing.T) {
	m, users := testManager(t)

	hash, err := HashPassword("Sup3rSecret!")
	require.NoError(t, err)
	stored := &dbmysql.User{ID: "user-1", Handle: "alice", PasswordHash: hash}

	t.Run("valid credentials", func(t *testing.T) {
		users.EXPECT().ByHandle(gomock.Any(), "alice").Return(stored, nil)

		user, token, err := m.Login(context.Background(), "alice", "Sup3rSecret!")
		require.NoError(t, err)
		assert.Equal(t, "user-1", user.ID)

		claims, err := m.VerifyToken(token)
		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.UserID)
	})

	t.Run("wrong password", func(t *testing.T) {
		users.EXPECT().ByHandle(gomock.Any(), "alice").Return(stored, nil)

		_, _, err := m.Login(context.Background(), "alice", "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown handle", func(t *testing.T) {
		users.EXPECT().ByHandle(gomock.Any(), "nobody").Return(nil, repository.ErrNotFound)

		_, _, err := m.Login(context.Background(), "nobody", "whatever")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("repository failure", func(t *testing.T) {
		users.EXPECT().ByHandle(gomock.Any(), "alice").Return(nil, errors.New("connection lost"))

		_, _, err := m.Login(context.Background(), "alice", "Sup3rSecret!")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestManager_Register(t *testing.T) {
	m, users := testManager(t)

	t.Run("creates user and issues token", func(t *testing.T) {
		users.EXPECT().ByHandle(gomock.Any(), "bob_77").Return(nil, repository.ErrNotFound)
		users.EXPECT().
			Create(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, user *dbmysql.User) error {
				assert.NotEmpty(t, user.ID)
				assert.Equal(t, "bob_77", user.Handle)
				assert.NoError(t, CheckPassword("S3cretPass", user.PasswordHash))
				return nil
			})

		user, token, err := m.Register(context.Background(), "bob_77", "Bob", "S3cretPass")
		require.NoError(t, err)
		assert.Equal(t, "bob_77", user.Handle)

		claims, err := m.VerifyToken(token)
		require.NoError(t, err)
		assert.Equal(t, user.ID, claims.UserID)
	})

	t.Run("rejects taken handle", func(t *testing.T) {
		users.EXPECT().ByHandle(gomock.Any(), "alice").Return(&dbmysql.User{ID: "user-1"}, nil)

		_, _, err := m.Register(context.Background(), "alice", "Alice", "S3cretPass")
		assert.Error(t, err)
	})

	t.Run("rejects invalid handle", func(t *testing.T) {
		_, _, err := m.Register(context.Background(), "a!", "A", "S3cretPass")
		assert.Error(t, err)
	})

	t.Run("rejects short password", func(t *testing.T) {
		_, _, err := m.Register(context.Background(), "carol_9", "Carol", "abc")
		assert.Error(t, err)
	})
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter2!")
	require.NoError(t, err)
	assert.NoError(t, CheckPassword("hunter2!", hash))
	assert.Error(t, CheckPassword("hunter3!", hash))
}
