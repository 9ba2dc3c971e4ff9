package model

// OTPSlot selects which one-time passcode of a user an operation
// targets. Using an enum instead of a field name keeps the mapping to
// storage columns in one place.
type OTPSlot int

const (
	SlotEmail OTPSlot = iota
	SlotMobile
)

func (s OTPSlot) String() string {
	if s == SlotMobile {
		return "mobile"
	}
	return "email"
}

// OTP returns the stored code for the slot, nil when nothing is
// pending.
func (u *User) OTP(s OTPSlot) *string {
	if s == SlotMobile {
		return u.MobileOTP
	}
	return u.EmailOTP
}

// SetOTP stores a code into the slot. Pass nil to clear it after a
// successful verification, which is what makes codes single-use.
func (u *User) SetOTP(s OTPSlot, code *string) {
	if s == SlotMobile {
		u.MobileOTP = code
		return
	}
	u.EmailOTP = code
}
