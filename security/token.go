package security

import (
	"errors"
	"fmt"
	"time"

	"bitwise74/account-api/model"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims identify the account a bearer token was issued for.
type Claims struct {
	UserID       string `json:"user_id"`
	Email        string `json:"email"`
	MobileNumber string `json:"mobile_number"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and checks the bearer tokens handed out after a
// successful login. Expiry is the only invalidation mechanism, there
// is no revocation list.
type TokenIssuer struct {
	Secret []byte
	Expiry time.Duration
}

func NewTokenIssuer(secret string, expiryDays int) *TokenIssuer {
	return &TokenIssuer{
		Secret: []byte(secret),
		Expiry: time.Hour * 24 * time.Duration(expiryDays),
	}
}

func (t *TokenIssuer) Issue(u *model.User) (string, error) {
	now := time.Now()

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID:       u.ID,
		Email:        u.Email,
		MobileNumber: u.MobileNumber,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.Expiry)),
		},
	})

	return tok.SignedString(t.Secret)
}

// Verify parses and validates a token string and returns its claims.
// Any failure (foreign signing method, bad signature, expired) comes
// back as ErrInvalidToken wrapping the cause.
func (t *TokenIssuer) Verify(tokenStr string) (*Claims, error) {
	claims := &Claims{}

	tok, err := jwt.ParseWithClaims(tokenStr, claims, func(tk *jwt.Token) (any, error) {
		if tk.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", tk.Method.Alg())
		}

		return t.Secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if !tok.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
