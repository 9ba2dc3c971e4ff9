// Package model defines database models
package model

import "time"

// SubscriptionPlan is the tier an account is on. New accounts start
// on PlanFree unless the registration says otherwise.
type SubscriptionPlan string

const (
	PlanFree    SubscriptionPlan = "free"
	PlanBasic   SubscriptionPlan = "basic"
	PlanPremium SubscriptionPlan = "premium"
)

func ValidPlan(p SubscriptionPlan) bool {
	switch p {
	case PlanFree, PlanBasic, PlanPremium:
		return true
	}
	return false
}

type User struct {
	ID           string `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	MobileNumber string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`

	Username     string
	Profession   string
	CompanyName  string
	AddressLine1 string
	Country      string
	State        string
	City         string

	SubscriptionPlan SubscriptionPlan `gorm:"default:free"`
	Newsletter       bool

	// Either a base64 data URI or an S3 object key, depending on the
	// configured storage backend
	ProfileImage string

	EmailOTP  *string
	MobileOTP *string
	// Shared between both OTP slots. Issuing an OTP into either slot
	// resets the expiry clock for both. Known product quirk, keep it
	// until the owners say otherwise.
	OTPGeneratedAt *time.Time

	LoginAttempts int `gorm:"default:0"`
	LastLoginAt   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	// Plaintext password waiting to be hashed by the store on the next
	// write. Unexported so gorm never persists it.
	pendingPassword string
}

// SetPassword records a new plaintext password. The credential store
// hashes it into PasswordHash on the next write. Calling SetPassword
// is the only way to change a stored password, so a hash can never be
// hashed twice.
func (u *User) SetPassword(raw string) {
	u.pendingPassword = raw
}

// PendingPassword returns the not yet hashed password, or "" if the
// password didn't change since the last write.
func (u *User) PendingPassword() string {
	return u.pendingPassword
}

// ClearPendingPassword is called by the store once the pending
// password was hashed.
func (u *User) ClearPendingPassword() {
	u.pendingPassword = ""
}
