package api

import (
	"net/http"

	"bitwise74/account-api/model"

	"github.com/gin-gonic/gin"
)

// UserFetch returns the profile of the authenticated user. The
// password hash and OTP state never leave the server.
func (a *API) UserFetch(c *gin.Context) {
	user := c.MustGet("user").(*model.User)

	c.JSON(http.StatusOK, gin.H{
		"user_id":           user.ID,
		"email":             user.Email,
		"mobile_number":     user.MobileNumber,
		"username":          user.Username,
		"profession":        user.Profession,
		"company_name":      user.CompanyName,
		"address_line_1":    user.AddressLine1,
		"country":           user.Country,
		"state":             user.State,
		"city":              user.City,
		"subscription_plan": user.SubscriptionPlan,
		"newsletter":        user.Newsletter,
		"login_attempts":    user.LoginAttempts,
		"last_login_at":     user.LastLoginAt,
		"created_at":        user.CreatedAt,
	})
}
