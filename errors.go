package eduAuth

import (
	"errors"
	"net/http"
)

// ErrorKind classifies an auth failure and fixes its HTTP status.
type ErrorKind uint8

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConflict
	KindRateLimited
)

// Status returns the HTTP status code for k.
func (k ErrorKind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

// Error is the only error type an Engine operation returns to callers.
// Message is safe to show to end users; Err is the cause and is never
// rendered.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same Kind and Message, so a wrapped
// internal failure still satisfies errors.Is against its sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

func newError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// wrap returns a copy of sentinel carrying cause.
func wrap(sentinel *Error, cause error) *Error {
	return &Error{Kind: sentinel.Kind, Message: sentinel.Message, Err: cause}
}

// StatusCode maps err to an HTTP status. Anything that is not an *Error is
// a 500.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind.Status()
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the text a client may see for err.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return ErrInternal.Message
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Programmer and configuration faults.
var (
	ErrInvalidConfig  = errors.New("invalid config")
	ErrEngineNotReady = errors.New("engine not initialized")
)

// Store contract errors. UserStore implementations return these so the
// engine can tell a miss from an outage.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
	// ErrRefreshTokenStale is returned by RotateRefreshToken when the stored
	// hash no longer matches the one being replaced.
	ErrRefreshTokenStale = errors.New("refresh token already rotated")
)

var ErrInternal = newError(KindInternal, "Internal server error")

// Signup and OTP verification.
var (
	ErrSignupPendingVerification = newError(KindConflict, "Please verify your email to activate your account.")
	ErrAccountAlreadyRegistered  = newError(KindConflict, "Account already registered. Please login.")
	ErrSignupOTPAlreadySent      = newError(KindConflict, "OTP already sent. Please check your email.")
	ErrSignupFailed              = newError(KindInternal, "Internal server error during signup")
	ErrSignupSessionExpired      = newError(KindNotFound, "Signup session expired or invalid. Please try signing up again.")
	ErrInvalidOTP                = newError(KindValidation, "Invalid OTP")
	ErrOTPVerificationFailed     = newError(KindInternal, "Internal server error during OTP verification")
	ErrResendCooldown            = newError(KindRateLimited, "OTP already sent. Please wait before resending.")
	ErrOTPAlreadySent            = newError(KindRateLimited, "OTP already sent. Please wait for 10 minutes before resending.")
	ErrNoAccountForEmail         = newError(KindNotFound, "No account found with this email")
	ErrSendOTPFailed             = newError(KindInternal, "Internal server error during sending OTP")
)

// Login and token lifecycle.
var (
	ErrMissingCredentials = newError(KindValidation, "Please provide an email and password")
	ErrLoginRateLimited   = newError(KindRateLimited, "Too many login attempts. Please try again later.")
	ErrInvalidCredentials = newError(KindAuthentication, "Invalid email or password")
	ErrAccountDeactivated = newError(KindAuthentication, "Your account is deactivated. Please contact support.")
	ErrEmailNotVerified   = newError(KindAuthorization, "Please verify your email to login.")
	ErrLoginFailed        = newError(KindInternal, "Internal server error during login")

	ErrRefreshMissing     = newError(KindAuthentication, "No refresh token provided. Please log in again.")
	ErrRefreshInvalid     = newError(KindAuthentication, "Invalid or expired refresh token. Please log in again.")
	ErrRefreshDeactivated = newError(KindAuthentication, "Account deactivated. Please contact support.")
	ErrRefreshRateLimited = newError(KindRateLimited, "Too many refresh attempts. Please try again later.")
	ErrRefreshFailed      = newError(KindInternal, "Token refresh failed due to a server error.")

	ErrLogoutFailed = newError(KindInternal, "Logout failed due to a server error.")
)

// Password reset and change.
var (
	ErrResetOTPExpired          = newError(KindValidation, "OTP expired or invalid")
	ErrResetUserNotFound        = newError(KindNotFound, "User not found")
	ErrPasswordsMismatch        = newError(KindValidation, "Passwords do not match")
	ErrResetNotVerified         = newError(KindAuthorization, "OTP not verified or session expired. Please go through forgot password flow again.")
	ErrForgotPasswordFailed     = newError(KindInternal, "Internal server error during forgot password")
	ErrPasswordResetFailed      = newError(KindInternal, "Internal server error during password reset")
	ErrCurrentPasswordIncorrect = newError(KindAuthentication, "Current password is incorrect")
	ErrNewPasswordsMismatch     = newError(KindValidation, "New passwords do not match")
	ErrPasswordChangeFailed     = newError(KindInternal, "Internal server error during password change")
)

// Request guard and role checks.
var (
	ErrNoToken           = newError(KindAuthentication, "Access denied. No token provided.")
	ErrTokenInvalid      = newError(KindAuthentication, "Invalid token. Please log in again.")
	ErrTokenExpired      = newError(KindAuthentication, "Access token expired. Please refresh your token or log in again.")
	ErrTokenBlacklisted  = newError(KindAuthentication, "Access token is blacklisted. Please log in again.")
	ErrTokenUserGone     = newError(KindAuthentication, "User belonging to this token no longer exists.")
	ErrTokenUserInactive = newError(KindAuthentication, "Your account has been deactivated.")
	ErrAuthFailed        = newError(KindAuthentication, "Authentication failed. Please try again.")
	ErrAuthRequired      = newError(KindAuthentication, "Authentication required.")

	ErrMeUserNotFound   = newError(KindNotFound, "User not found. Token might be for a deleted user.")
	ErrRoleUserNotFound = newError(KindNotFound, "User not found.")
	ErrRoleUserInactive = newError(KindAuthentication, "Account deactivated.")
	ErrAdminRequired    = newError(KindAuthorization, "Admin privileges required.")
	ErrUserRequired     = newError(KindAuthorization, "User privileges required.")
	ErrAuthorization    = newError(KindInternal, "Authorization error")
)

func accountNotFoundForEmail(email string) *Error {
	return newError(KindNotFound, "Account doesn't exist with this email: "+email)
}

func validationError(message string) *Error {
	return newError(KindValidation, message)
}
