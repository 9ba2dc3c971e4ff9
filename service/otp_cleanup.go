package service

import (
	"time"

	"bitwise74/account-api/model"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OTPCleanup defines a function used to periodically null out expired
// OTP slots so stale codes don't linger in the database. Verification
// already rejects expired codes on its own, this only keeps the table
// tidy.
func OTPCleanup(t time.Duration, expiryMinutes int, db *gorm.DB) {
	ticker := time.NewTicker(t)

	zap.L().Debug("OTP cleanup attached", zap.Duration("tick_every", t))

	go func() {
		for range ticker.C {
			cutoff := time.Now().Add(-time.Duration(expiryMinutes+1) * time.Minute)

			err := db.
				Model(model.User{}).
				Where("otp_generated_at < ?", cutoff).
				Where("email_otp IS NOT NULL OR mobile_otp IS NOT NULL").
				Updates(map[string]any{
					"email_otp":  nil,
					"mobile_otp": nil,
				}).
				Error
			if err != nil {
				zap.L().Error("Failed to cleanup expired OTPs", zap.Error(err))
			}
		}
	}()
}
