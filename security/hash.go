// Package security contains everything related to the security of user data
package security

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// DefaultHashCost matches what the rest of the platform uses for
// account passwords.
const DefaultHashCost = 10

type BcryptHash struct {
	Cost int
}

func NewBcrypt() *BcryptHash {
	return &BcryptHash{Cost: DefaultHashCost}
}

func (b *BcryptHash) GenerateFromPassword(p string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(p), b.Cost)
	if err != nil {
		return "", err
	}

	return string(h), nil
}

// VerifyPasswd compares a plaintext password p with the stored bcrypt
// hash e. A wrong password is a false result, not an error.
func (b *BcryptHash) VerifyPasswd(p, e string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(e), []byte(p))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}
