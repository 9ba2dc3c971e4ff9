package api

import (
	"net/http"
	"strings"

	"bitwise74/account-api/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AvatarServe serves a profile image for viewing on a website or in a
// browser. Inlined images are decoded and written out, S3-backed ones
// redirect to the CDN.
func (a *API) AvatarServe(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	userID := c.Param("id")
	if userID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "No user ID provided",
			"requestID": requestID,
		})
		return
	}

	user, err := a.Users.ByID(c.Request.Context(), userID)
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

	img := user.ProfileImage
	if img == "" {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
			"error":     "No profile image",
			"requestID": requestID,
		})
		return
	}

	if strings.HasPrefix(img, "data:") {
		ct, raw, err := service.ParseDataURI(img)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":     "Internal server error",
				"requestID": requestID,
			})

			zap.L().Error("Failed to decode stored profile image", zap.Error(err), zap.String("requestID", requestID))
			return
		}

		c.Data(http.StatusOK, ct, raw)
		return
	}

	c.Redirect(http.StatusFound, a.Avatars.RedirectURL(img))
}
