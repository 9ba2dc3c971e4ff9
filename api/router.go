// Package api contains all endpoints available
package api

import (
	"fmt"
	"time"

	"bitwise74/account-api/aws"
	"bitwise74/account-api/config"
	"bitwise74/account-api/db"
	"bitwise74/account-api/middleware"
	"bitwise74/account-api/security"
	"bitwise74/account-api/service"

	cache "github.com/chenyahui/gin-cache"
	"github.com/chenyahui/gin-cache/persist"
	ginzap "github.com/gin-contrib/zap"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
)

const (
	gray  = "\x1b[90m"
	reset = "\x1b[0m"
)

var store = persist.NewMemoryStore(time.Minute)

type API struct {
	DB       *gorm.DB
	Router   *gin.Engine
	Config   *config.Config
	Users    *db.Users
	Hash     *security.BcryptHash
	OTP      *security.OTPVerifier
	Tokens   *security.TokenIssuer
	Notifier *service.Notifier
	Avatars  *service.AvatarStore
}

func NewRouter(cfg *config.Config) (*API, error) {
	a := &API{
		Config:   cfg,
		Hash:     security.NewBcrypt(),
		OTP:      security.NewOTPVerifier(cfg.OTP.ExpiryMinutes),
		Tokens:   security.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.ExpiryDays),
		Notifier: service.NewNotifier(cfg),
	}

	gdb, err := db.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database, %w", err)
	}
	a.DB = gdb
	a.Users = db.NewUsers(gdb, a.Hash)

	var s3 *aws.S3Client
	if cfg.Storage.Type == "s3" {
		s3, err = aws.NewS3(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 client, %w", err)
		}
	}
	a.Avatars = service.NewAvatarStore(cfg, s3)

	makeLogger()

	router := gin.New()
	a.Router = router

	router.Use(
		cors.New(cors.Config{
			AllowOrigins:     []string{"http://localhost:5173"},
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		gin.Recovery(),
		middleware.NewRequestIDMiddleware(),
		ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
			TimeFormat: "15:04:05.000",
			UTC:        true,
			Skipper: func(c *gin.Context) bool {
				return c.Request.Method == "HEAD"
			},
			Context: func(c *gin.Context) []zapcore.Field {
				fields := []zapcore.Field{}

				if v := c.GetString("requestID"); v != "" {
					fields = append(fields, zap.String("request_id", v))
				}

				if v := c.GetString("userID"); v != "" {
					fields = append(fields, zap.String("userID", v))
				}

				return fields
			},
		}),
	)

	router.HandleMethodNotAllowed = true
	router.RedirectFixedPath = true
	a.Router.MaxMultipartMemory = 5 << 20

	jwt := middleware.NewJWTMiddleware(a.Users, a.Tokens)
	limited := middleware.RateLimiterMiddleware(middleware.RateLimiterConfig{
		RequestsPerSecond: 5,
		Burst:             10,
	})

	main := router.Group("/api")
	{
		// HEAD /api/heartbeat 		-> Used to check if the server is alive
		main.HEAD("/heartbeat", a.Heartbeat)

		// HEAD /api/validate		-> Validates a JWT token
		main.HEAD("/validate", jwt, a.Validate)

		// POST /api/register		-> Registers a new account (multipart, one image)
		main.POST("/register", middleware.BodySizeLimiter(cfg.Upload.MaxSize+1<<20), a.UserRegister)

		// POST /api/login		-> Logs in with email + password, returns a JWT token
		main.POST("/login", limited, middleware.BodySizeLimiter(1<<20), a.UserLogin)

		// POST /api/generateOTP	-> Issues a fresh OTP into the email or mobile slot
		main.POST("/generateOTP", limited, middleware.BodySizeLimiter(1<<20), a.OTPGenerate)

		// POST /api/verifyOTP		-> Verifies an OTP and logs the user in
		main.POST("/verifyOTP", limited, middleware.BodySizeLimiter(1<<20), a.OTPVerify)

		// POST /api/change-password	-> Changes the password of the authenticated user
		main.POST("/change-password", jwt, middleware.BodySizeLimiter(1<<20), a.PasswordChange)

		// POST /api/verify-password	-> Stateless password check, never discloses existence
		main.POST("/verify-password", limited, middleware.BodySizeLimiter(1<<20), a.PasswordVerify)
	}

	users := main.Group("/users")
	{
		// GET /api/users		-> Returns the profile of the authenticated user
		users.GET("", jwt, a.UserFetch)

		// GET /api/users/:id/avatar	-> Serves a profile image directly
		users.GET("/:id/avatar", cacheFor(60), a.AvatarServe)
	}

	service.OTPCleanup(time.Minute, cfg.OTP.ExpiryMinutes, gdb)

	return a, nil
}

func makeLogger() {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.EncodeTime = func(t time.Time, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(gray + t.Format("15:04:05.000") + reset)
	}
	cfg.EncoderConfig.EncodeCaller = func(ec zapcore.EntryCaller, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(gray + ec.TrimmedPath() + reset)
	}

	cfg.DisableStacktrace = true

	log, _ := cfg.Build()
	zap.ReplaceGlobals(log)
}

func cacheFor(sec int) gin.HandlerFunc {
	return cache.CacheByRequestURI(store, time.Second*time.Duration(sec))
}
