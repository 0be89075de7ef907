package flows

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/eduAuth/internal/stores"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errNotFound = errors.New("not found")
	errExists   = errors.New("exists")
	errStale    = errors.New("stale")

	errConflict  = errors.New("conflict")
	errFailed    = errors.New("failed")
	errInvalid   = errors.New("invalid")
	errMissing   = errors.New("missing")
	errNoSession = errors.New("no session")
)

type fakeUsers struct {
	mu     sync.Mutex
	byID   map[string]*User
	nextID int
	failOn string
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: map[string]*User{}}
}

func (f *fakeUsers) fail(op string) error {
	if f.failOn == op {
		return errors.New("store down")
	}
	return nil
}

func (f *fakeUsers) copyOf(u *User) *User {
	c := *u
	return &c
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail("FindByEmail"); err != nil {
		return nil, err
	}
	for _, u := range f.byID {
		if u.Email == email {
			return f.copyOf(u), nil
		}
	}
	return nil, errNotFound
}

func (f *fakeUsers) FindByID(_ context.Context, id string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, errNotFound
	}
	return f.copyOf(u), nil
}

func (f *fakeUsers) FindByRefreshTokenHash(_ context.Context, hash string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if hash != "" && u.RefreshTokenHash == hash {
			return f.copyOf(u), nil
		}
	}
	return nil, errNotFound
}

func (f *fakeUsers) Create(_ context.Context, in NewUser) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == in.Email {
			return nil, errExists
		}
	}
	f.nextID++
	u := &User{
		ID:           "u" + strconv.Itoa(f.nextID),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		IsVerified:   in.IsVerified,
		IsActive:     in.IsActive,
	}
	f.byID[u.ID] = u
	return f.copyOf(u), nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[id].PasswordHash = hash
	return nil
}

func (f *fakeUsers) SetRefreshToken(_ context.Context, id, hash string, exp time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[id].RefreshTokenHash = hash
	f.byID[id].RefreshTokenExpiresAt = &exp
	return nil
}

func (f *fakeUsers) RotateRefreshToken(_ context.Context, id, oldHash, newHash string, exp time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.byID[id]
	if u.RefreshTokenHash != oldHash {
		return errStale
	}
	u.RefreshTokenHash = newHash
	u.RefreshTokenExpiresAt = &exp
	return nil
}

func (f *fakeUsers) ClearRefreshToken(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return errNotFound
	}
	u.RefreshTokenHash = ""
	u.RefreshTokenExpiresAt = nil
	return nil
}

func (f *fakeUsers) TouchLogin(context.Context, string, time.Time) error { return nil }

func (f *fakeUsers) HasRole(_ context.Context, role string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Role == role {
			return true, nil
		}
	}
	return false, nil
}

type plainHasher struct{}

func (plainHasher) Hash(pw string) (string, error) { return "h:" + pw, nil }

func (plainHasher) Verify(pw, hash string) (bool, error) { return hash == "h:"+pw, nil }

func (plainHasher) NeedsUpgrade(hash string) (bool, error) { return !strings.HasPrefix(hash, "h:"), nil }

type captureMailer struct {
	mu   sync.Mutex
	last map[string]string
	err  error
}

func (m *captureMailer) SendOTP(_ context.Context, _, email, otp string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.last == nil {
		m.last = map[string]string{}
	}
	m.last[email] = otp
	return nil
}

func (m *captureMailer) otp(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last[email]
}

type fixture struct {
	mr     *miniredis.Miniredis
	kv     *stores.KV
	users  *fakeUsers
	mailer *captureMailer
	env    Env
	tokens Tokens
	seq    atomic.Int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := &fixture{
		mr:     mr,
		kv:     stores.NewKV(rdb),
		users:  newFakeUsers(),
		mailer: &captureMailer{},
	}
	f.env = Env{
		Wrap:    func(sentinel, cause error) error { return errors.Join(sentinel, cause) },
		Invalid: func(msg string) error { return errors.New(msg) },
		Store:   StoreErrors{NotFound: errNotFound, Exists: errExists, Stale: errStale},
	}
	f.tokens = Tokens{
		IssueAccess: func(userID, role string) (string, time.Time, error) {
			return "access-" + userID + "-" + role, time.Now().Add(15 * time.Minute), nil
		},
		NewRefresh: func() (string, error) {
			return "refresh-" + strconv.FormatInt(f.seq.Add(1), 10), nil
		},
		HashRefresh: func(s string) string { return "sha:" + s },
		RefreshTTL:  time.Hour,
	}
	return f
}

func (f *fixture) signupDeps() SignupDeps {
	return SignupDeps{
		Env:     f.env,
		Users:   f.users,
		Pending: stores.NewSignupStore(f.kv, 600*time.Second),
		OTPs:    stores.NewOTPStore(f.kv, 60*time.Second, 60*time.Second),
		Hasher:  plainHasher{},
		Mailer:  f.mailer,
		Tokens:  f.tokens,
		Policy:  PasswordPolicy{MinLength: 6, RequireComplexity: true},
		NewOTP:  func() (string, error) { return "123456", nil },
		Errors: SignupErrors{
			PendingVerification: errConflict,
			AlreadyRegistered:   errConflict,
			OTPAlreadySent:      errConflict,
			Failed:              errFailed,
			SessionExpired:      errNoSession,
			InvalidOTP:          errInvalid,
			VerificationFailed:  errFailed,
			ResendCooldown:      errConflict,
			OTPOutstanding:      errConflict,
			NoAccount:           errNotFound,
			SendFailed:          errFailed,
		},
	}
}

func (f *fixture) refreshDeps() RefreshDeps {
	return RefreshDeps{
		Env:    f.env,
		Users:  f.users,
		Tokens: f.tokens,
		Errors: RefreshErrors{Missing: errMissing, Invalid: errInvalid, Deactivated: errInvalid, RateLimited: errConflict, Failed: errFailed},
	}
}

func TestValidateSignupJoinsEveryProblem(t *testing.T) {
	policy := PasswordPolicy{MinLength: 6, RequireComplexity: true}

	problems := validateSignup("A", "not-an-email", "abc", policy)
	assert.Equal(t, []string{
		msgNameLength,
		msgInvalidEmail,
		"Password must be at least 6 characters long",
		msgComplexity,
	}, problems)

	assert.Empty(t, validateSignup("Ada", "ada@example.com", "Passw0rd", policy))
	assert.Equal(t, []string{msgComplexity}, validateSignup("Ada", "ada@example.com", "password1", policy))
	assert.Equal(t, []string{msgNameLength}, validateSignup(strings.Repeat("x", 51), "ada@example.com", "Passw0rd", policy))
}

func TestPasswordPolicyWithoutComplexity(t *testing.T) {
	policy := PasswordPolicy{MinLength: 8}
	assert.Empty(t, policy.Check("aaaaaaaa"))
	assert.Len(t, policy.Check("short"), 1)
}

func TestSignupThenVerifyCreatesVerifiedUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	deps := f.signupDeps()

	require.NoError(t, RunSignup(ctx, SignupInput{Name: " Ada ", Email: " Ada@Example.com ", Password: "Passw0rd"}, deps))
	require.Equal(t, "123456", f.mailer.otp("ada@example.com"))

	err := RunSignup(ctx, SignupInput{Name: "Ada", Email: "ada@example.com", Password: "Passw0rd"}, deps)
	require.ErrorIs(t, err, errConflict)

	_, err = RunVerifySignupOTP(ctx, "ada@example.com", "000000", deps)
	require.ErrorIs(t, err, errInvalid)

	pair, err := RunVerifySignupOTP(ctx, "ada@example.com", "123456", deps)
	require.NoError(t, err)
	assert.Equal(t, RoleUser, pair.User.Role)
	assert.True(t, pair.User.IsVerified)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	stored, err := f.users.FindByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "h:Passw0rd", stored.PasswordHash)
	assert.Equal(t, "sha:"+pair.RefreshToken, stored.RefreshTokenHash)

	_, err = RunVerifySignupOTP(ctx, "ada@example.com", "123456", deps)
	require.ErrorIs(t, err, errNoSession)
}

func TestSignupKeepsPendingEntryWhenMailFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	deps := f.signupDeps()
	f.mailer.err = errors.New("smtp down")

	err := RunSignup(ctx, SignupInput{Name: "Ada", Email: "ada@example.com", Password: "Passw0rd"}, deps)
	require.ErrorIs(t, err, errFailed)

	exists, err := deps.Pending.Exists(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestResendOTPCooldownAndGenericPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	deps := f.signupDeps()

	require.ErrorIs(t, RunResendOTP(ctx, "ghost@example.com", deps), errNotFound)

	require.NoError(t, RunSignup(ctx, SignupInput{Name: "Ada", Email: "ada@example.com", Password: "Passw0rd"}, deps))
	require.NoError(t, RunResendOTP(ctx, "ada@example.com", deps))
	require.ErrorIs(t, RunResendOTP(ctx, "ada@example.com", deps), errConflict)

	f.mr.FastForward(61 * time.Second)
	require.NoError(t, RunResendOTP(ctx, "ada@example.com", deps))

	_, err := f.users.Create(ctx, NewUser{Name: "Bob", Email: "bob@example.com", PasswordHash: "h:Passw0rd", Role: RoleUser, IsVerified: true, IsActive: true})
	require.NoError(t, err)
	require.NoError(t, RunResendOTP(ctx, "bob@example.com", deps))
	require.ErrorIs(t, RunResendOTP(ctx, "bob@example.com", deps), errConflict)
}

func TestRefreshRotatesOnceUnderContention(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.users.Create(ctx, NewUser{Email: "a@example.com", Role: RoleUser, IsVerified: true, IsActive: true})
	require.NoError(t, err)
	require.NoError(t, f.users.SetRefreshToken(ctx, u.ID, "sha:seed", time.Now().Add(time.Hour)))

	deps := f.refreshDeps()

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := RunRefresh(ctx, "seed", deps); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, errInvalid)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, successes)
}

func TestRefreshRejectsExpiredAndMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	deps := f.refreshDeps()

	_, err := RunRefresh(ctx, "  ", deps)
	require.ErrorIs(t, err, errMissing)

	u, err := f.users.Create(ctx, NewUser{Email: "a@example.com", Role: RoleUser, IsVerified: true, IsActive: true})
	require.NoError(t, err)
	require.NoError(t, f.users.SetRefreshToken(ctx, u.ID, "sha:old", time.Now().Add(-time.Second)))

	_, err = RunRefresh(ctx, "old", deps)
	require.ErrorIs(t, err, errInvalid)
}

func TestLogoutBlacklistsForRemainingLifetime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	f.env.Now = func() time.Time { return now }

	u, err := f.users.Create(ctx, NewUser{Email: "a@example.com", Role: RoleUser, IsVerified: true, IsActive: true})
	require.NoError(t, err)
	require.NoError(t, f.users.SetRefreshToken(ctx, u.ID, "sha:x", now.Add(time.Hour)))

	bl := stores.NewBlacklist(f.kv)
	deps := LogoutDeps{Env: f.env, Users: f.users, Blacklist: bl, Errors: LogoutErrors{AuthRequired: errMissing, Failed: errFailed}}

	require.ErrorIs(t, RunLogout(ctx, LogoutInput{}, deps), errMissing)
	require.NoError(t, RunLogout(ctx, LogoutInput{UserID: u.ID, AccessToken: "tok", AccessExpiresAt: now.Add(90 * time.Second)}, deps))

	assert.Equal(t, 90*time.Second, f.mr.TTL("blacklist:tok"))
	stored, err := f.users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.RefreshTokenHash)
	assert.Nil(t, stored.RefreshTokenExpiresAt)

	require.NoError(t, RunLogout(ctx, LogoutInput{UserID: u.ID, AccessToken: "gone", AccessExpiresAt: now.Add(-time.Minute)}, deps))
	assert.False(t, f.mr.Exists("blacklist:gone"))
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	deps := SeedDeps{
		Env:    f.env,
		Users:  f.users,
		Hasher: plainHasher{},
		Policy: PasswordPolicy{MinLength: 6, RequireComplexity: true},
		Errors: SeedErrors{Failed: errFailed},
	}

	adminID, err := RunEnsureAdmin(ctx, SeedInput{Email: "root@example.com", Password: "Adm1nPass"}, deps)
	require.NoError(t, err)
	require.NotEmpty(t, adminID)

	admin, err := f.users.FindByEmail(ctx, "root@example.com")
	require.NoError(t, err)
	assert.Equal(t, "System Administrator", admin.Name)
	assert.Equal(t, RoleAdmin, admin.Role)
	assert.Equal(t, adminID, admin.ID)

	adminID, err = RunEnsureAdmin(ctx, SeedInput{Email: "other@example.com", Password: "Adm1nPass"}, deps)
	require.NoError(t, err)
	assert.Empty(t, adminID)
}
