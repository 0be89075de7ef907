package httpapi

import (
	"net/http"
	"time"

	eduAuth "github.com/MrEthical07/eduAuth"
	"github.com/gin-gonic/gin"
)

const (
	cookieRefreshToken = "refreshToken"
	headerRefreshToken = "X-Refresh-Token"
	headerAccessToken  = "x-access-token"
	headerUserID       = "x-user-id"
)

// RefreshTransport selects how refresh tokens reach the client.
type RefreshTransport string

const (
	// RefreshTransportCookie sets the httpOnly refreshToken cookie and keeps
	// the token out of the body.
	RefreshTransportCookie RefreshTransport = "cookie"
	// RefreshTransportHeader returns the token in the body and X-Refresh-Token
	// response header for clients without a cookie jar.
	RefreshTransportHeader RefreshTransport = "header"
)

type handler struct {
	engine    *eduAuth.Engine
	secure    bool
	transport RefreshTransport
}

func (h *handler) signup(c *gin.Context) {
	var req signupRequest
	if !bind(c, &req) {
		return
	}
	ack, err := h.engine.Signup(c.Request.Context(), eduAuth.SignupRequest{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, ack.Message, nil)
}

func (h *handler) verifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.engine.VerifySignupOTP(c.Request.Context(), eduAuth.VerifyOTPRequest{Email: req.Email, OTP: req.OTP})
	if err != nil {
		respondError(c, err)
		return
	}
	h.sendTokens(c, "Email verified successfully", res)
}

func (h *handler) resendOTP(c *gin.Context) {
	var req emailRequest
	if !bind(c, &req) {
		return
	}
	h.ack(c)(h.engine.ResendOTP(c.Request.Context(), req.Email))
}

func (h *handler) login(c *gin.Context) {
	var req loginRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.engine.Login(c.Request.Context(), eduAuth.LoginRequest{Email: req.Email, Password: req.Password})
	if err != nil {
		respondError(c, err)
		return
	}
	h.sendTokens(c, "Login successful", res)
}

func (h *handler) refresh(c *gin.Context) {
	res, err := h.engine.Refresh(c.Request.Context(), presentedRefreshToken(c))
	if err != nil {
		respondError(c, err)
		return
	}
	h.sendTokens(c, "Token refreshed successfully", res)
}

func (h *handler) logout(c *gin.Context) {
	auth, _ := authFrom(c)
	ack, err := h.engine.Logout(c.Request.Context(), auth, presentedRefreshToken(c))
	if err != nil {
		respondError(c, err)
		return
	}
	h.clearRefreshCookie(c)
	respondSuccess(c, http.StatusOK, ack.Message, nil)
}

func (h *handler) forgotPassword(c *gin.Context) {
	var req emailRequest
	if !bind(c, &req) {
		return
	}
	h.ack(c)(h.engine.ForgotPassword(c.Request.Context(), req.Email))
}

func (h *handler) verifyForgotOTP(c *gin.Context) {
	var req verifyOTPRequest
	if !bind(c, &req) {
		return
	}
	h.ack(c)(h.engine.VerifyForgotOTP(c.Request.Context(), eduAuth.VerifyOTPRequest{Email: req.Email, OTP: req.OTP}))
}

func (h *handler) resetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bind(c, &req) {
		return
	}
	h.ack(c)(h.engine.ResetPassword(c.Request.Context(), eduAuth.ResetPasswordRequest{
		Email:           req.Email,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	}))
}

func (h *handler) changePassword(c *gin.Context) {
	var req changePasswordRequest
	if !bind(c, &req) {
		return
	}
	auth, _ := authFrom(c)
	h.ack(c)(h.engine.ChangePassword(c.Request.Context(), auth, eduAuth.ChangePasswordRequest{
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	}))
}

func (h *handler) me(c *gin.Context) {
	auth, _ := authFrom(c)
	user, err := h.engine.Me(c.Request.Context(), auth)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, "User data retrieved successfully", userData{User: user})
}

func (h *handler) adminPing(c *gin.Context) {
	auth, _ := authFrom(c)
	respondSuccess(c, http.StatusOK, "Admin access granted", gin.H{"userId": auth.UserID})
}

// ack renders an Ack-returning engine call.
func (h *handler) ack(c *gin.Context) func(eduAuth.Ack, error) {
	return func(ack eduAuth.Ack, err error) {
		if err != nil {
			respondError(c, err)
			return
		}
		respondSuccess(c, http.StatusOK, ack.Message, nil)
	}
}

func (h *handler) sendTokens(c *gin.Context, message string, res eduAuth.LoginResult) {
	c.Header(headerAccessToken, res.AccessToken)
	c.Header(headerUserID, res.User.ID)

	data := tokenData{AccessToken: res.AccessToken, User: res.User}
	if h.transport == RefreshTransportHeader {
		c.Header(headerRefreshToken, res.RefreshToken)
		data.RefreshToken = res.RefreshToken
	} else {
		h.setRefreshCookie(c, res.RefreshToken, res.RefreshExpiresAt)
	}
	respondSuccess(c, http.StatusOK, message, data)
}

func (h *handler) setRefreshCookie(c *gin.Context, token string, expires time.Time) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     cookieRefreshToken,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *handler) clearRefreshCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     cookieRefreshToken,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// presentedRefreshToken reads the cookie, then the header, then a JSON body.
func presentedRefreshToken(c *gin.Context) string {
	if v, err := c.Cookie(cookieRefreshToken); err == nil && v != "" {
		return v
	}
	if v := c.GetHeader(headerRefreshToken); v != "" {
		return v
	}
	if c.Request.Method == http.MethodPost && c.Request.ContentLength > 0 {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			return req.RefreshToken
		}
	}
	return ""
}
