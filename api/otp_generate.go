package api

import (
	"net/http"
	"time"

	"bitwise74/account-api/model"
	"bitwise74/account-api/security"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type otpGenerateBody struct {
	Email        string `json:"email"`
	MobileNumber string `json:"mobile_number"`
}

// OTPGenerate issues a fresh OTP into the slot matching the supplied
// identifier and hands it to the out-of-band channel. The code is
// never part of the response.
func (a *API) OTPGenerate(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	var data otpGenerateBody
	if err := c.ShouldBind(&data); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request body",
			"requestID": requestID,
		})
		return
	}

	if data.Email == "" && data.MobileNumber == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Email or mobile number is required",
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

	code, err := security.GenerateOTP()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to generate OTP", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	slot := model.SlotMobile
	target := data.MobileNumber
	if data.Email != "" {
		slot = model.SlotEmail
		target = data.Email
	}

	now := time.Now()
	user.SetOTP(slot, &code)
	// Shared across both slots, reissuing here resets the expiry
	// clock of a pending code in the other slot as well
	user.OTPGeneratedAt = &now

	if err := a.Users.Save(c.Request.Context(), user); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to store OTP", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	if slot == model.SlotEmail {
		err = a.Notifier.SendEmailOTP(user.Email, code)
	} else {
		err = a.Notifier.SendMobileOTP(user.MobileNumber, code)
	}
	if err != nil {
		zap.L().Warn("Failed to send OTP", zap.Error(err), zap.String("requestID", requestID))
	}

	c.JSON(http.StatusOK, gin.H{
		"type":  slot.String(),
		"value": target,
	})
}
