package security

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"time"
)

// OTP verification outcomes. The zero value means the check passed.
type OTPReason int

const (
	OTPValid OTPReason = iota
	OTPNotGenerated
	OTPExpired
	OTPMismatch
)

func (r OTPReason) String() string {
	switch r {
	case OTPNotGenerated:
		return "OTP not generated"
	case OTPExpired:
		return "OTP expired"
	case OTPMismatch:
		return "Invalid OTP"
	}
	return "OTP verified successfully"
}

type VerifyResult struct {
	Valid  bool
	Reason OTPReason
}

const otpMin = 100000
const otpSpan = 900000

// GenerateOTP returns a uniformly random 6 digit code between 100000
// and 999999 inclusive.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpSpan))
	if err != nil {
		return "", err
	}

	return strconv.FormatInt(otpMin+n.Int64(), 10), nil
}

// OTPVerifier checks candidate codes against a stored slot. It's a
// pure check: consuming a code (clearing the slot) is the caller's
// job.
type OTPVerifier struct {
	ExpiryMinutes int
}

func NewOTPVerifier(expiryMinutes int) *OTPVerifier {
	return &OTPVerifier{ExpiryMinutes: expiryMinutes}
}

// Verify checks a candidate code against the stored one. Expiry is
// measured in whole minutes since issuance, so a code issued at T is
// still good during minute T+expiry. Codes are short-lived, low-value
// secrets, the comparison doesn't need to be constant-time.
func (v *OTPVerifier) Verify(stored *string, generatedAt *time.Time, candidate string, now time.Time) VerifyResult {
	// A consumed slot reads nil while the shared timestamp may still be
	// set for the other slot, so the slot itself decides ABSENT
	if stored == nil || generatedAt == nil {
		return VerifyResult{Reason: OTPNotGenerated}
	}

	if int(now.Sub(*generatedAt).Minutes()) > v.ExpiryMinutes {
		return VerifyResult{Reason: OTPExpired}
	}

	if *stored != candidate {
		return VerifyResult{Reason: OTPMismatch}
	}

	return VerifyResult{Valid: true}
}
