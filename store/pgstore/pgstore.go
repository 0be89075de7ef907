// Package pgstore persists users in PostgreSQL through database/sql and the
// pgx stdlib driver. Schema changes live in the embedded goose migrations.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	eduAuth "github.com/MrEthical07/eduAuth"
	"github.com/MrEthical07/eduAuth/store/pgstore/migrations"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const uniqueViolation = "23505"

const userColumns = `id, name, email, password_hash, role, is_verified, is_active,
		 last_login, refresh_token_hash, refresh_token_expires_at, created_at, updated_at`

// DBTX is the subset of database/sql the store uses. *sql.DB and *sql.Tx
// both satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements eduAuth.UserStore.
type Store struct {
	db    DBTX
	now   func() time.Time
	newID func() string
}

var _ eduAuth.UserStore = (*Store)(nil)

func New(db DBTX) *Store {
	return &Store{db: db, now: time.Now, newID: uuid.NewString}
}

// Open connects with the pgx driver and pings the server.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return db, nil
}

// Migrate applies every pending embedded migration.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}
	return nil
}

func scanUser(row interface{ Scan(dest ...any) error }) (*eduAuth.User, error) {
	var (
		u         eduAuth.User
		role      string
		lastLogin sql.NullTime
		rtHash    sql.NullString
		rtExpires sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.IsVerified, &u.IsActive,
		&lastLogin, &rtHash, &rtExpires, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Role = eduAuth.Role(role)
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	u.RefreshTokenHash = rtHash.String
	if rtExpires.Valid {
		t := rtExpires.Time
		u.RefreshTokenExpiresAt = &t
	}
	return &u, nil
}

func (s *Store) findOne(ctx context.Context, where string, arg any) (*eduAuth.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		 WHERE ` + where + ` = $1`

	u, err := scanUser(s.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eduAuth.ErrUserNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*eduAuth.User, error) {
	return s.findOne(ctx, "email", email)
}

func (s *Store) FindByID(ctx context.Context, id string) (*eduAuth.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, eduAuth.ErrUserNotFound
	}
	return s.findOne(ctx, "id", id)
}

func (s *Store) FindByRefreshTokenHash(ctx context.Context, hash string) (*eduAuth.User, error) {
	if hash == "" {
		return nil, eduAuth.ErrUserNotFound
	}
	return s.findOne(ctx, "refresh_token_hash", hash)
}

func (s *Store) Create(ctx context.Context, in eduAuth.NewUser) (*eduAuth.User, error) {
	query :=
		`INSERT INTO users (id, name, email, password_hash, role, is_verified, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`

	now := s.now().UTC()
	u := &eduAuth.User{
		ID:           s.newID(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		IsVerified:   in.IsVerified,
		IsActive:     in.IsActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := s.db.ExecContext(ctx, query,
		u.ID, u.Name, u.Email, u.PasswordHash, string(u.Role), u.IsVerified, u.IsActive, now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, eduAuth.ErrUserExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

// exec runs an UPDATE and reports whether any row matched.
func (s *Store) exec(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func mustMatch(matched bool, err error) error {
	if err != nil {
		return err
	}
	if !matched {
		return eduAuth.ErrUserNotFound
	}
	return nil
}

func (s *Store) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query :=
		`UPDATE users SET password_hash = $2, updated_at = $3
		 WHERE id = $1`

	return mustMatch(s.exec(ctx, query, id, passwordHash, s.now().UTC()))
}

func (s *Store) SetRefreshToken(ctx context.Context, id, hash string, expiresAt time.Time) error {
	query :=
		`UPDATE users SET refresh_token_hash = $2, refresh_token_expires_at = $3, updated_at = $4
		 WHERE id = $1`

	return mustMatch(s.exec(ctx, query, id, hash, expiresAt.UTC(), s.now().UTC()))
}

// RotateRefreshToken matches on the old hash, so concurrent rotations of the
// same token serialize on the row lock and only the first one updates it.
func (s *Store) RotateRefreshToken(ctx context.Context, id, oldHash, newHash string, expiresAt time.Time) error {
	if oldHash == "" {
		return eduAuth.ErrRefreshTokenStale
	}
	query :=
		`UPDATE users SET refresh_token_hash = $3, refresh_token_expires_at = $4, updated_at = $5
		 WHERE id = $1 AND refresh_token_hash = $2`

	matched, err := s.exec(ctx, query, id, oldHash, newHash, expiresAt.UTC(), s.now().UTC())
	if err != nil {
		return err
	}
	if !matched {
		return eduAuth.ErrRefreshTokenStale
	}
	return nil
}

func (s *Store) ClearRefreshToken(ctx context.Context, id string) error {
	query :=
		`UPDATE users SET refresh_token_hash = NULL, refresh_token_expires_at = NULL, updated_at = $2
		 WHERE id = $1`

	return mustMatch(s.exec(ctx, query, id, s.now().UTC()))
}

func (s *Store) TouchLogin(ctx context.Context, id string, at time.Time) error {
	query :=
		`UPDATE users SET last_login = $2, updated_at = $3
		 WHERE id = $1`

	return mustMatch(s.exec(ctx, query, id, at.UTC(), s.now().UTC()))
}

func (s *Store) HasRole(ctx context.Context, role eduAuth.Role) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE role = $1)`

	var ok bool
	if err := s.db.QueryRowContext(ctx, query, string(role)).Scan(&ok); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}
