package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	eduAuth "github.com/MrEthical07/eduAuth"
	promexport "github.com/MrEthical07/eduAuth/metrics/export/prometheus"
	"github.com/MrEthical07/eduAuth/store/memstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type captureMailer struct {
	mu   sync.Mutex
	otps map[string]string
}

func (m *captureMailer) SendOTP(_ context.Context, _, email, otp string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.otps[email] = otp
	return nil
}

func (m *captureMailer) otp(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.otps[email]
}

type testServer struct {
	router *gin.Engine
	engine *eduAuth.Engine
	users  *memstore.Store
	mailer *captureMailer
}

func newServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := eduAuth.DefaultConfig()
	cfg.JWT.Secret = []byte("httpapi-test-secret-0123456789abcd")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	users := memstore.New()
	mailer := &captureMailer{otps: make(map[string]string)}
	engine, err := eduAuth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(users).
		WithMailer(mailer).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	opts.Engine = engine
	return &testServer{router: NewRouter(opts), engine: engine, users: users, mailer: mailer}
}

type response struct {
	Success bool            `json:"success"`
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (s *testServer) do(t *testing.T, method, path string, body any, header map[string]string) (*httptest.ResponseRecorder, response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var out response
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func refreshCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == "refreshToken" {
			return c
		}
	}
	return nil
}

func (s *testServer) signupAndVerify(t *testing.T, email string) (*httptest.ResponseRecorder, tokenData) {
	t.Helper()
	rec, body := s.do(t, http.MethodPost, "/api/auth/signup", gin.H{"name": "Asha", "email": email, "password": "Passw0rd"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, body.Message)
	assert.Equal(t, "OTP sent to your email. Please verify.", body.Message)

	rec, body = s.do(t, http.MethodPost, "/api/auth/verify-otp", gin.H{"email": email, "otp": s.mailer.otp(email)}, nil)
	require.Equal(t, http.StatusOK, rec.Code, body.Message)

	var data tokenData
	require.NoError(t, json.Unmarshal(body.Data, &data))
	return rec, data
}

func TestSignupVerifySetsHeadersAndCookie(t *testing.T) {
	s := newServer(t, Options{SecureCookies: true})
	rec, data := s.signupAndVerify(t, "asha@example.com")

	assert.NotEmpty(t, data.AccessToken)
	assert.Empty(t, data.RefreshToken)
	assert.Equal(t, eduAuth.RoleUser, data.User.Role)
	assert.Equal(t, data.AccessToken, rec.Header().Get("x-access-token"))
	assert.Equal(t, data.User.ID, rec.Header().Get("x-user-id"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	c := refreshCookie(rec)
	require.NotNil(t, c)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
	assert.Len(t, c.Value, 64)
}

func TestErrorEnvelopeAndStatuses(t *testing.T) {
	s := newServer(t, Options{})
	s.signupAndVerify(t, "dup@example.com")

	rec, body := s.do(t, http.MethodPost, "/api/auth/signup", gin.H{"name": "Asha", "email": "dup@example.com", "password": "Passw0rd"}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, body.Success)
	assert.Equal(t, "fail", body.Status)
	assert.Equal(t, "Account already registered. Please login.", body.Message)

	rec, body = s.do(t, http.MethodPost, "/api/auth/login", gin.H{"email": "dup@example.com", "password": "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid email or password", body.Message)

	rec, body = s.do(t, http.MethodPost, "/api/auth/login", gin.H{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Please provide an email and password", body.Message)

	rec, body = s.do(t, http.MethodPost, "/api/auth/login", gin.H{"email": strings.Repeat("a", 300), "password": "x"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "email must be at most 254 characters", body.Message)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	raw := httptest.NewRecorder()
	s.router.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)

	rec, body = s.do(t, http.MethodGet, "/api/auth/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Route not found", body.Message)
}

func TestRefreshWithCookieAndHeader(t *testing.T) {
	s := newServer(t, Options{})
	rec, _ := s.signupAndVerify(t, "rt@example.com")
	first := refreshCookie(rec)
	require.NotNil(t, first)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/refresh-token", nil)
	req.AddCookie(first)
	out := httptest.NewRecorder()
	s.router.ServeHTTP(out, req)
	require.Equal(t, http.StatusOK, out.Code)
	second := refreshCookie(out)
	require.NotNil(t, second)
	assert.NotEqual(t, first.Value, second.Value)

	// the rotated-out token is dead
	rec, body := s.do(t, http.MethodPost, "/api/auth/refresh-token", nil, map[string]string{"X-Refresh-Token": first.Value})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid or expired refresh token. Please log in again.", body.Message)

	rec, _ = s.do(t, http.MethodPost, "/api/auth/refresh-token", nil, map[string]string{"X-Refresh-Token": second.Value})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body = s.do(t, http.MethodGet, "/api/auth/refresh-token", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, eduAuth.ErrRefreshMissing.Message, body.Message)
}

func TestHeaderTransportReturnsRefreshTokenInBody(t *testing.T) {
	s := newServer(t, Options{RefreshTransport: RefreshTransportHeader})
	rec, data := s.signupAndVerify(t, "mobile@example.com")

	assert.Nil(t, refreshCookie(rec))
	require.NotEmpty(t, data.RefreshToken)
	assert.Equal(t, data.RefreshToken, rec.Header().Get("X-Refresh-Token"))

	rec, body := s.do(t, http.MethodPost, "/api/auth/refresh-token", gin.H{"refreshToken": data.RefreshToken}, nil)
	require.Equal(t, http.StatusOK, rec.Code, body.Message)
}

func TestLogoutBlacklistsAndClearsCookie(t *testing.T) {
	s := newServer(t, Options{})
	_, data := s.signupAndVerify(t, "out@example.com")
	bearer := map[string]string{"Authorization": "Bearer " + data.AccessToken}

	rec, body := s.do(t, http.MethodGet, "/api/auth/me", nil, bearer)
	require.Equal(t, http.StatusOK, rec.Code)
	var me userData
	require.NoError(t, json.Unmarshal(body.Data, &me))
	assert.Equal(t, "out@example.com", me.User.Email)
	assert.NotContains(t, string(body.Data), "password")

	rec, body = s.do(t, http.MethodPost, "/api/auth/logout", nil, bearer)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Logout successful", body.Message)
	c := refreshCookie(rec)
	require.NotNil(t, c)
	assert.Empty(t, c.Value)
	assert.Less(t, c.MaxAge, 0)

	rec, body = s.do(t, http.MethodGet, "/api/auth/me", nil, bearer)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, eduAuth.ErrTokenBlacklisted.Message, body.Message)

	rec, _ = s.do(t, http.MethodPost, "/api/auth/logout", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPasswordFlowsOverHTTP(t *testing.T) {
	s := newServer(t, Options{})
	_, data := s.signupAndVerify(t, "pw@example.com")
	bearer := map[string]string{"Authorization": "Bearer " + data.AccessToken}

	rec, body := s.do(t, http.MethodPost, "/api/auth/change-password", gin.H{
		"currentPassword": "Wrong1pass", "newPassword": "Newpass1", "confirmPassword": "Newpass1",
	}, bearer)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Current password is incorrect", body.Message)

	rec, _ = s.do(t, http.MethodPost, "/api/auth/change-password", gin.H{
		"currentPassword": "Passw0rd", "newPassword": "Newpass1", "confirmPassword": "Newpass1",
	}, bearer)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body = s.do(t, http.MethodPost, "/api/auth/reset-password", gin.H{
		"email": "pw@example.com", "newPassword": "Other1pass", "confirmPassword": "Other1pass",
	}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, body.Message)

	rec, _ = s.do(t, http.MethodPost, "/api/auth/forgot-password", gin.H{"email": "pw@example.com"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, body = s.do(t, http.MethodPost, "/api/auth/forgot-password", gin.H{"email": "pw@example.com"}, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "fail", body.Status)

	rec, _ = s.do(t, http.MethodPost, "/api/auth/verify-forgot-otp", gin.H{"email": "pw@example.com", "otp": s.mailer.otp("pw@example.com")}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = s.do(t, http.MethodPost, "/api/auth/reset-password", gin.H{
		"email": "pw@example.com", "newPassword": "Other1pass", "confirmPassword": "Other1pass",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/api/auth/login", gin.H{"email": "pw@example.com", "password": "Other1pass"}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminPingRequiresAdmin(t *testing.T) {
	s := newServer(t, Options{})
	_, data := s.signupAndVerify(t, "plain@example.com")

	rec, body := s.do(t, http.MethodGet, "/api/auth/admin/ping", nil, map[string]string{"Authorization": "Bearer " + data.AccessToken})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Admin privileges required.", body.Message)

	_, err := s.engine.EnsureAdmin(context.Background(), eduAuth.AdminSeed{Email: "root@example.com", Password: "Adm1nPass"})
	require.NoError(t, err)
	rec, body = s.do(t, http.MethodPost, "/api/auth/login", gin.H{"email": "root@example.com", "password": "Adm1nPass"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var admin tokenData
	require.NoError(t, json.Unmarshal(body.Data, &admin))

	rec, _ = s.do(t, http.MethodGet, "/api/auth/admin/ping", nil, map[string]string{"Authorization": "Bearer " + admin.AccessToken})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	healthy := true
	s := newServer(t, Options{})
	s.router = NewRouter(Options{
		Engine: s.engine,
		Health: func(*gin.Context) error {
			if !healthy {
				return errors.New("redis down")
			}
			return nil
		},
		Metrics: promexport.NewPrometheusExporter(s.engine).Handler(),
	})

	rec, body := s.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, body.Success)

	healthy = false
	rec, body = s.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "error", body.Status)

	s.do(t, http.MethodPost, "/api/auth/login", gin.H{"email": "ghost@example.com", "password": "x"}, nil)
	rec, _ = s.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "eduauth_login_failure_total 1")
}

func TestRecoveryRendersEnvelope(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(zap.NewNop()), RequestContext(zap.NewNop()))
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "error", body.Status)
	assert.Equal(t, "Internal server error", body.Message)
}
