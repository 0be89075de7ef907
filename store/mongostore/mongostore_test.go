package mongostore

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	eduAuth "github.com/MrEthical07/eduAuth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestDocumentRoundTripKeepsFieldNames(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	doc := newDoc(eduAuth.NewUser{
		Name:         "Asha",
		Email:        "asha@example.com",
		PasswordHash: "$argon2id$hash",
		Role:         eduAuth.RoleAdmin,
		IsVerified:   true,
		IsActive:     true,
	}, now)

	raw, err := bson.Marshal(doc)
	require.NoError(t, err)

	var fields bson.M
	require.NoError(t, bson.Unmarshal(raw, &fields))
	for _, key := range []string{"_id", "name", "email", "password", "role", "isVerified", "isActive", "createdAt", "updatedAt"} {
		assert.Contains(t, fields, key)
	}
	assert.NotContains(t, fields, "refreshTokenHash")
	assert.NotContains(t, fields, "lastLogin")

	u := doc.toUser()
	assert.Equal(t, doc.ID.Hex(), u.ID)
	assert.Equal(t, "$argon2id$hash", u.PasswordHash)
	assert.Equal(t, eduAuth.RoleAdmin, u.Role)
	assert.Equal(t, now, u.CreatedAt)
}

func TestBadObjectIDIsNotFound(t *testing.T) {
	s := &Store{now: time.Now}
	_, err := s.FindByID(context.Background(), "not-an-object-id")
	assert.ErrorIs(t, err, eduAuth.ErrUserNotFound)

	_, err = s.FindByRefreshTokenHash(context.Background(), "")
	assert.ErrorIs(t, err, eduAuth.ErrUserNotFound)

	assert.ErrorIs(t, s.UpdatePassword(context.Background(), "zzz", "h"), eduAuth.ErrUserNotFound)
	assert.ErrorIs(t, s.RotateRefreshToken(context.Background(), "zzz", "", "n", time.Now()), eduAuth.ErrRefreshTokenStale)
}

// newLiveStore connects to EDUAUTH_TEST_MONGO_URI and gives each test its own
// database.
func newLiveStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("EDUAUTH_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("EDUAUTH_TEST_MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := Connect(ctx, uri)
	require.NoError(t, err)
	db := client.Database("eduauth_test_" + uuid.NewString()[:8])
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})

	s := New(db)
	require.NoError(t, s.EnsureIndexes(ctx))
	return s
}

func TestLiveUserLifecycle(t *testing.T) {
	s := newLiveStore(t)
	ctx := context.Background()

	u, err := s.Create(ctx, eduAuth.NewUser{Name: "Live", Email: "live@example.com", PasswordHash: "h", Role: eduAuth.RoleUser, IsVerified: true, IsActive: true})
	require.NoError(t, err)

	_, err = s.Create(ctx, eduAuth.NewUser{Email: "live@example.com"})
	assert.ErrorIs(t, err, eduAuth.ErrUserExists)

	got, err := s.FindByEmail(ctx, "live@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	require.NoError(t, s.UpdatePassword(ctx, u.ID, "h2"))
	require.NoError(t, s.TouchLogin(ctx, u.ID, time.Now()))
	got, err = s.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "h2", got.PasswordHash)
	assert.NotNil(t, got.LastLogin)

	ok, err := s.HasRole(ctx, eduAuth.RoleAdmin)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLiveRotateIsCompareAndSwap(t *testing.T) {
	s := newLiveStore(t)
	ctx := context.Background()
	u, err := s.Create(ctx, eduAuth.NewUser{Name: "Cas", Email: "cas@example.com", PasswordHash: "h", Role: eduAuth.RoleUser})
	require.NoError(t, err)
	exp := time.Now().Add(time.Hour)
	require.NoError(t, s.SetRefreshToken(ctx, u.ID, "seed", exp))

	const n = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.RotateRefreshToken(ctx, u.ID, "seed", "next", exp) == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)

	require.NoError(t, s.ClearRefreshToken(ctx, u.ID))
	_, err = s.FindByRefreshTokenHash(ctx, "next")
	assert.ErrorIs(t, err, eduAuth.ErrUserNotFound)
}
