package httpapi

import (
	"errors"
	"fmt"
	"strings"

	eduAuth "github.com/MrEthical07/eduAuth"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// Request DTOs only bound sizes; field rules live in the engine so every
// transport gets the same messages.

type signupRequest struct {
	Name     string `json:"name" binding:"max=100"`
	Email    string `json:"email" binding:"max=254"`
	Password string `json:"password" binding:"max=128"`
}

type verifyOTPRequest struct {
	Email string `json:"email" binding:"max=254"`
	OTP   string `json:"otp" binding:"max=16"`
}

type emailRequest struct {
	Email string `json:"email" binding:"max=254"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"max=254"`
	Password string `json:"password" binding:"max=128"`
}

type resetPasswordRequest struct {
	Email           string `json:"email" binding:"max=254"`
	NewPassword     string `json:"newPassword" binding:"max=128"`
	ConfirmPassword string `json:"confirmPassword" binding:"max=128"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"max=128"`
	NewPassword     string `json:"newPassword" binding:"max=128"`
	ConfirmPassword string `json:"confirmPassword" binding:"max=128"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"max=512"`
}

type tokenData struct {
	AccessToken  string             `json:"accessToken"`
	RefreshToken string             `json:"refreshToken,omitempty"`
	User         eduAuth.PublicUser `json:"user"`
}

type userData struct {
	User eduAuth.PublicUser `json:"user"`
}

// bind decodes the JSON body into dst and writes a 400 on failure.
func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondFail(c, 400, bindMessage(err))
		return false
	}
	return true
}

func bindMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid request body"
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	return strings.Join(msgs, ", ")
}
