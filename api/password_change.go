package api

import (
	"net/http"

	"bitwise74/account-api/model"
	"bitwise74/account-api/validators"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type passwordChangeBody struct {
	OldPassword     string `json:"oldPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (a *API) PasswordChange(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)
	user := c.MustGet("user").(*model.User)

	var data passwordChangeBody
	if err := c.ShouldBind(&data); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request body",
			"requestID": requestID,
		})
		return
	}

	if data.OldPassword == "" || data.NewPassword == "" || data.ConfirmPassword == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "All fields are required",
			"requestID": requestID,
		})
		return
	}

	if data.NewPassword != data.ConfirmPassword {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "New passwords do not match",
			"requestID": requestID,
		})
		return
	}

	if err := validators.PasswordValidator(data.NewPassword); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     err.Error(),
			"requestID": requestID,
		})
		return
	}

	ok, err := a.Hash.VerifyPasswd(data.OldPassword, user.PasswordHash)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to verify password", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":     "Old password is incorrect",
			"requestID": requestID,
		})
		return
	}

	// Depth-1 reuse check, the new password can't be the current one
	same, err := a.Hash.VerifyPasswd(data.NewPassword, user.PasswordHash)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to verify password", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	if same {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "Old password not allowed",
			"requestID": requestID,
		})
		return
	}

	user.SetPassword(data.NewPassword)

	if err := a.Users.Save(c.Request.Context(), user); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":     "Internal server error",
			"requestID": requestID,
		})

		zap.L().Error("Failed to save new password", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Password changed successfully",
	})
}
