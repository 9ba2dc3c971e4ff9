package api

import (
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"bitwise74/account-api/model"
	"bitwise74/account-api/security"
	"bitwise74/account-api/validators"

	"github.com/gin-gonic/gin"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
)

const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

func (a *API) UserRegister(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	email := validators.NormalizeEmail(c.PostForm("email"))
	mobile := c.PostForm("mobile_number")
	password := c.PostForm("password")
	username := c.PostForm("username")

	if email == "" || mobile == "" || password == "" || username == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Email, mobile number, password, and username are required",
			"requestID": requestID,
		})
		return
	}

	if err := validators.EmailValidator(email); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     err.Error(),
			"requestID": requestID,
		})
		return
	}

	if err := validators.MobileValidator(mobile); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     err.Error(),
			"requestID": requestID,
		})
		return
	}

	if err := validators.PasswordValidator(password); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     err.Error(),
			"requestID": requestID,
		})
		return
	}

	plan := model.PlanFree
	if v := c.PostForm("subscription_plan"); v != "" {
		plan = model.SubscriptionPlan(v)
		if !model.ValidPlan(plan) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":     "Invalid subscription plan provided",
				"requestID": requestID,
			})
			return
		}
	}

	newsletter, _ := strconv.ParseBool(c.PostForm("newsletter"))

	fh, err := c.FormFile("file")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Profile image is required",
			"requestID": requestID,
		})
		return
	}

	code, f, err := validators.ImageValidator(fh, a.Config.Upload.MaxSize)
	if err != nil {
		if code == http.StatusInternalServerError {
			zap.L().Error("Failed to validate image", zap.Error(err), zap.String("requestID", requestID))

			c.AbortWithStatusJSON(code, gin.H{
				"error":     "Internal server error",
				"requestID": requestID,
			})
			return
		}

		c.AbortWithStatusJSON(code, gin.H{
			"error":     err.Error(),
			"requestID": requestID,
		})
		return
	}
	defer f.Close()

	collision, err := a.Users.FindCollision(c.Request.Context(), email, mobile)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to check if user is registered", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	if collision != nil {
		msg := "Mobile number already registered"
		if collision.Email == email {
			msg = "Email already registered"
		}

		c.AbortWithStatusJSON(http.StatusConflict, gin.H{
			"error":     msg,
			"requestID": requestID,
		})
		return
	}

	// The upload artifact is scoped to this request. The deferred
	// remove covers every exit path below, success included
	temp, err := os.CreateTemp("", "avatar-*")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to create temporary file", zap.Error(err), zap.String("requestID", requestID))
		return
	}
	defer os.Remove(temp.Name())

	_, err = io.Copy(temp, f)
	temp.Close()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to copy data to temporary file", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	userID, err := gonanoid.Generate(charset, 16)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to generate user ID", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	avatar, err := a.Avatars.Store(temp.Name(), userID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to store profile image", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	emailOTP, err := security.GenerateOTP()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to generate OTP", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	mobileOTP, err := security.GenerateOTP()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to generate OTP", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	now := time.Now()

	user := &model.User{
		ID:               userID,
		Email:            email,
		MobileNumber:     mobile,
		Username:         username,
		Profession:       c.PostForm("profession"),
		CompanyName:      c.PostForm("company_name"),
		AddressLine1:     c.PostForm("address_line_1"),
		Country:          c.PostForm("country"),
		State:            c.PostForm("state"),
		City:             c.PostForm("city"),
		SubscriptionPlan: plan,
		Newsletter:       newsletter,
		ProfileImage:     avatar,
		EmailOTP:         &emailOTP,
		MobileOTP:        &mobileOTP,
		OTPGeneratedAt:   &now,
	}
	user.SetPassword(password)

	if err := a.Users.Create(c.Request.Context(), user); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to create user", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	// Delivery is best-effort, a lost code can be reissued
	if err := a.Notifier.SendEmailOTP(user.Email, emailOTP); err != nil {
		zap.L().Warn("Failed to send email OTP", zap.Error(err), zap.String("requestID", requestID))
	}
	if err := a.Notifier.SendMobileOTP(user.MobileNumber, mobileOTP); err != nil {
		zap.L().Warn("Failed to send mobile OTP", zap.Error(err), zap.String("requestID", requestID))
	}

	c.JSON(http.StatusCreated, gin.H{
		"user_id":       user.ID,
		"email":         user.Email,
		"mobile_number": user.MobileNumber,
	})
}
