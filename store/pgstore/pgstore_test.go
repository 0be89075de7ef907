package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	eduAuth "github.com/MrEthical07/eduAuth"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testID = "0f8fad5b-d9cb-469f-a165-70867728950e"

var fixedNow = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func newStoreWithMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})

	s := New(db)
	s.now = func() time.Time { return fixedNow }
	s.newID = func() string { return testID }
	return s, mock
}

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "email", "password_hash", "role", "is_verified", "is_active",
		"last_login", "refresh_token_hash", "refresh_token_expires_at", "created_at", "updated_at",
	})
}

func TestFindByEmailScansNullableColumns(t *testing.T) {
	s, mock := newStoreWithMock(t)
	q := `(?s)^SELECT\s+id,.*FROM\s+users\s+WHERE\s+email\s*=\s*\$1$`

	mock.ExpectQuery(q).
		WithArgs("a@example.com").
		WillReturnRows(userRows().AddRow(testID, "A", "a@example.com", "hash", "admin", true, true,
			nil, nil, nil, fixedNow, fixedNow))

	u, err := s.FindByEmail(context.Background(), "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, testID, u.ID)
	assert.Equal(t, eduAuth.RoleAdmin, u.Role)
	assert.Nil(t, u.LastLogin)
	assert.Nil(t, u.RefreshTokenExpiresAt)
	assert.Empty(t, u.RefreshTokenHash)
}

func TestFindByRefreshTokenHash(t *testing.T) {
	s, mock := newStoreWithMock(t)
	q := `(?s)^SELECT\s+id,.*FROM\s+users\s+WHERE\s+refresh_token_hash\s*=\s*\$1$`
	exp := fixedNow.Add(time.Hour)

	mock.ExpectQuery(q).
		WithArgs("rt-hash").
		WillReturnRows(userRows().AddRow(testID, "A", "a@example.com", "hash", "user", true, true,
			fixedNow, "rt-hash", exp, fixedNow, fixedNow))

	u, err := s.FindByRefreshTokenHash(context.Background(), "rt-hash")
	require.NoError(t, err)
	assert.Equal(t, "rt-hash", u.RefreshTokenHash)
	require.NotNil(t, u.RefreshTokenExpiresAt)
	assert.True(t, exp.Equal(*u.RefreshTokenExpiresAt))
	require.NotNil(t, u.LastLogin)

	_, err = s.FindByRefreshTokenHash(context.Background(), "")
	assert.ErrorIs(t, err, eduAuth.ErrUserNotFound)
}

func TestFindNotFoundAndDBError(t *testing.T) {
	s, mock := newStoreWithMock(t)
	q := `(?s)^SELECT\s+id,.*WHERE\s+id\s*=\s*\$1$`

	mock.ExpectQuery(q).WithArgs(testID).WillReturnError(sql.ErrNoRows)
	_, err := s.FindByID(context.Background(), testID)
	assert.ErrorIs(t, err, eduAuth.ErrUserNotFound)

	mock.ExpectQuery(q).WithArgs(testID).WillReturnError(errors.New("db down"))
	_, err = s.FindByID(context.Background(), testID)
	require.Error(t, err)
	assert.Regexp(t, regexp.MustCompile(`db error: .*db down`), err.Error())

	_, err = s.FindByID(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, eduAuth.ErrUserNotFound)
}

func TestCreate(t *testing.T) {
	s, mock := newStoreWithMock(t)
	q := `(?s)^INSERT\s+INTO\s+users\s*\(id,\s*name,\s*email,.*\)\s*VALUES\s*\(\$1,.*\$8\)$`

	mock.ExpectExec(q).
		WithArgs(testID, "B", "b@example.com", "hash", "user", false, false, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	u, err := s.Create(context.Background(), eduAuth.NewUser{Name: "B", Email: "b@example.com", PasswordHash: "hash", Role: eduAuth.RoleUser})
	require.NoError(t, err)
	assert.Equal(t, testID, u.ID)
	assert.Equal(t, fixedNow, u.CreatedAt)
}

func TestCreateDuplicateEmail(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectExec(`INSERT\s+INTO\s+users`).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value"})

	_, err := s.Create(context.Background(), eduAuth.NewUser{Name: "B", Email: "b@example.com", PasswordHash: "hash", Role: eduAuth.RoleUser})
	assert.ErrorIs(t, err, eduAuth.ErrUserExists)
}

func TestRotateRefreshTokenIsConditional(t *testing.T) {
	s, mock := newStoreWithMock(t)
	q := `(?s)^UPDATE\s+users\s+SET\s+refresh_token_hash\s*=\s*\$3.*WHERE\s+id\s*=\s*\$1\s+AND\s+refresh_token_hash\s*=\s*\$2$`
	exp := fixedNow.Add(24 * time.Hour)

	mock.ExpectExec(q).
		WithArgs(testID, "old", "new", exp, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.RotateRefreshToken(context.Background(), testID, "old", "new", exp))

	mock.ExpectExec(q).
		WithArgs(testID, "old", "newer", exp, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := s.RotateRefreshToken(context.Background(), testID, "old", "newer", exp)
	assert.ErrorIs(t, err, eduAuth.ErrRefreshTokenStale)

	assert.ErrorIs(t, s.RotateRefreshToken(context.Background(), testID, "", "x", exp), eduAuth.ErrRefreshTokenStale)
}

func TestUpdatesReportMissingUser(t *testing.T) {
	s, mock := newStoreWithMock(t)
	ctx := context.Background()

	mock.ExpectExec(`(?s)^UPDATE\s+users\s+SET\s+password_hash`).
		WithArgs(testID, "h2", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, s.UpdatePassword(ctx, testID, "h2"), eduAuth.ErrUserNotFound)

	mock.ExpectExec(`(?s)^UPDATE\s+users\s+SET\s+refresh_token_hash\s*=\s*NULL`).
		WithArgs(testID, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, s.ClearRefreshToken(ctx, testID))

	mock.ExpectExec(`(?s)^UPDATE\s+users\s+SET\s+last_login`).
		WithArgs(testID, fixedNow, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, s.TouchLogin(ctx, testID, fixedNow))

	mock.ExpectExec(`(?s)^UPDATE\s+users\s+SET\s+refresh_token_hash\s*=\s*\$2`).
		WithArgs(testID, "h", fixedNow, fixedNow).
		WillReturnError(errors.New("conn reset"))
	err := s.SetRefreshToken(ctx, testID, "h", fixedNow)
	require.Error(t, err)
	assert.NotErrorIs(t, err, eduAuth.ErrUserNotFound)
}

func TestHasRole(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(`SELECT\s+EXISTS`).
		WithArgs("admin").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := s.HasRole(context.Background(), eduAuth.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, ok)
}
