package api

import (
	"net/http"
	"time"

	"bitwise74/account-api/model"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type otpVerifyBody struct {
	Email        string `json:"email"`
	MobileNumber string `json:"mobile_number"`
	OTP          string `json:"otp"`
}

// OTPVerify is the OTP login path. A valid code is consumed (the slot
// reads null afterwards), the login counters get updated and a token
// is issued.
func (a *API) OTPVerify(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	var data otpVerifyBody
	if err := c.ShouldBind(&data); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request body",
			"requestID": requestID,
		})
		return
	}

	if (data.Email == "" && data.MobileNumber == "") || data.OTP == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Email/mobile and OTP are required",
			"requestID": requestID,
		})
		return
	}

	user, err := a.Users.ByIdentifier(c.Request.Context(), data.Email, data.MobileNumber)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"error":     "User not found",
				"requestID": requestID,
			})
			return
		}

		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to look up user", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	slot := model.SlotMobile
	if data.Email != "" {
		slot = model.SlotEmail
	}

	res := a.OTP.Verify(user.OTP(slot), user.OTPGeneratedAt, data.OTP, time.Now())
	if !res.Valid {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":     res.Reason.String(),
			"requestID": requestID,
		})
		return
	}

	// Consume the code, the verifier itself never mutates state
	user.SetOTP(slot, nil)

	now := time.Now()
	user.LoginAttempts++
	user.LastLoginAt = &now

	if err := a.Users.Save(c.Request.Context(), user); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to consume OTP", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	token, err := a.Tokens.Issue(user)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to generate JWT auth token", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":       user.ID,
		"email":         user.Email,
		"mobile_number": user.MobileNumber,
		"token":         token,
	})
}
