package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	eduAuth "github.com/MrEthical07/eduAuth"
)

type authContextKey struct{}

// AuthFromContext returns the caller resolved by Guard.
func AuthFromContext(ctx context.Context) (eduAuth.AuthContext, bool) {
	auth, ok := ctx.Value(authContextKey{}).(eduAuth.AuthContext)
	return auth, ok
}

// WithAuth stores auth in ctx the way Guard does.
func WithAuth(ctx context.Context, auth eduAuth.AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, auth)
}

// Guard authenticates the bearer token on every request and stores the
// resulting AuthContext in the request context.
func Guard(engine *eduAuth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				WriteError(w, eduAuth.ErrAuthFailed)
				return
			}

			auth, err := engine.Authenticate(r.Context(), BearerToken(r.Header.Get("Authorization")))
			if err != nil {
				WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAuth(r.Context(), auth)))
		})
	}
}

// RequireRole must run behind Guard. The role is re-read from the store.
func RequireRole(engine *eduAuth.Engine, role eduAuth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth, ok := AuthFromContext(r.Context())
			if !ok {
				WriteError(w, eduAuth.ErrAuthRequired)
				return
			}
			if err := engine.RequireRole(r.Context(), auth, role); err != nil {
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer" value. It
// returns "" when the scheme is missing.
func BearerToken(header string) string {
	const bearer = "Bearer "
	if !strings.HasPrefix(header, bearer) {
		return ""
	}
	return strings.TrimSpace(header[len(bearer):])
}

type errorBody struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// WriteError renders err in the API's failure envelope.
func WriteError(w http.ResponseWriter, err error) {
	code := eduAuth.StatusCode(err)
	status := "fail"
	if code >= http.StatusInternalServerError {
		status = "error"
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorBody{
		Success: false,
		Status:  status,
		Message: eduAuth.PublicMessage(err),
	})
}
