package httpapi

import (
	"net/http"
	"reflect"
	"strings"
	"sync"

	eduAuth "github.com/MrEthical07/eduAuth"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Options configures NewRouter.
type Options struct {
	Engine *eduAuth.Engine
	Logger *zap.Logger
	// SecureCookies marks the refresh cookie Secure. Enable in production.
	SecureCookies    bool
	RefreshTransport RefreshTransport
	// Metrics is mounted at GET /metrics when set.
	Metrics http.Handler
	// Health is called by GET /health. A nil func always reports healthy.
	Health func(*gin.Context) error
}

var registerTagNames sync.Once

// NewRouter builds the gin engine with the /api/auth routes.
func NewRouter(opts Options) *gin.Engine {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	transport := opts.RefreshTransport
	if transport == "" {
		transport = RefreshTransportCookie
	}

	registerTagNames.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			v.RegisterTagNameFunc(jsonFieldName)
		}
	})

	r := gin.New()
	r.Use(Recovery(log), RequestContext(log))
	r.NoRoute(func(c *gin.Context) {
		respondFail(c, http.StatusNotFound, "Route not found")
	})

	r.GET("/health", func(c *gin.Context) {
		if opts.Health != nil {
			if err := opts.Health(c); err != nil {
				log.Warn("health check failed", zap.Error(err))
				respondFail(c, http.StatusServiceUnavailable, "Service unavailable")
				return
			}
		}
		respondSuccess(c, http.StatusOK, "OK", nil)
	})
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	h := &handler{engine: opts.Engine, secure: opts.SecureCookies, transport: transport}
	guard := Guard(opts.Engine)

	auth := r.Group("/api/auth")
	auth.POST("/signup", h.signup)
	auth.POST("/verify-otp", h.verifyOTP)
	auth.POST("/resend-otp", h.resendOTP)
	auth.POST("/login", h.login)
	auth.GET("/refresh-token", h.refresh)
	auth.POST("/refresh-token", h.refresh)
	auth.POST("/logout", guard, h.logout)
	auth.POST("/forgot-password", h.forgotPassword)
	auth.POST("/verify-forgot-otp", h.verifyForgotOTP)
	auth.POST("/reset-password", h.resetPassword)
	auth.POST("/change-password", guard, h.changePassword)
	auth.GET("/me", guard, h.me)
	auth.GET("/admin/ping", guard, RequireRole(opts.Engine, eduAuth.RoleAdmin), h.adminPing)

	return r
}

func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return f.Name
	}
	return name
}
