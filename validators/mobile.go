package validators

import "errors"

var (
	ErrMobileEmpty   = errors.New("no mobile number provided")
	ErrMobileInvalid = errors.New("invalid mobile number provided")
)

// MobileValidator accepts digits with an optional leading + and
// common separators. Carrier-grade validation happens out-of-band
// when the first OTP is delivered.
func MobileValidator(m string) error {
	if m == "" {
		return ErrMobileEmpty
	}

	if len(m) < 3 || len(m) > 20 {
		return ErrMobileInvalid
	}

	for i, r := range m {
		if r >= '0' && r <= '9' {
			continue
		}

		switch r {
		case '+':
			if i != 0 {
				return ErrMobileInvalid
			}
		case ' ', '-':
		default:
			return ErrMobileInvalid
		}
	}

	return nil
}
