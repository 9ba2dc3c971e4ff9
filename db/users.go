package db

import (
	"context"
	"strings"
	"time"

	"bitwise74/account-api/model"
	"bitwise74/account-api/security"

	"gorm.io/gorm"
)

// Users is the credential store. All writes go through prepareForSave
// so a plaintext password can never reach the database and every
// record carries a fresh updated_at.
type Users struct {
	DB   *gorm.DB
	Hash *security.BcryptHash
}

func NewUsers(db *gorm.DB, h *security.BcryptHash) *Users {
	return &Users{DB: db, Hash: h}
}

func (s *Users) ByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User

	err := s.DB.WithContext(ctx).
		Where("id = ?", id).
		First(&u).
		Error
	if err != nil {
		return nil, err
	}

	return &u, nil
}

func (s *Users) ByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User

	err := s.DB.WithContext(ctx).
		Where("email = ?", strings.ToLower(email)).
		First(&u).
		Error
	if err != nil {
		return nil, err
	}

	return &u, nil
}

// ByIdentifier looks a user up by email or mobile number, whichever
// is non-empty. Email wins when both are given.
func (s *Users) ByIdentifier(ctx context.Context, email, mobile string) (*model.User, error) {
	if email != "" {
		return s.ByEmail(ctx, email)
	}

	var u model.User

	err := s.DB.WithContext(ctx).
		Where("mobile_number = ?", mobile).
		First(&u).
		Error
	if err != nil {
		return nil, err
	}

	return &u, nil
}

// ByClaims resolves the account a bearer token belongs to. Both claim
// fields have to match the same record.
func (s *Users) ByClaims(ctx context.Context, c *security.Claims) (*model.User, error) {
	var u model.User

	err := s.DB.WithContext(ctx).
		Where("email = ? AND mobile_number = ?", strings.ToLower(c.Email), c.MobileNumber).
		First(&u).
		Error
	if err != nil {
		return nil, err
	}

	return &u, nil
}

// FindCollision checks both unique keys at once and reports which one
// an existing account collides on.
func (s *Users) FindCollision(ctx context.Context, email, mobile string) (*model.User, error) {
	var u model.User

	err := s.DB.WithContext(ctx).
		Where("email = ? OR mobile_number = ?", strings.ToLower(email), mobile).
		First(&u).
		Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}

		return nil, err
	}

	return &u, nil
}

func (s *Users) Create(ctx context.Context, u *model.User) error {
	if err := s.prepareForSave(u); err != nil {
		return err
	}

	return s.DB.WithContext(ctx).Create(u).Error
}

func (s *Users) Save(ctx context.Context, u *model.User) error {
	if err := s.prepareForSave(u); err != nil {
		return err
	}

	return s.DB.WithContext(ctx).Save(u).Error
}

// prepareForSave runs before every write: hash the password if it
// changed, then stamp updated_at.
func (s *Users) prepareForSave(u *model.User) error {
	if err := s.hashPasswordIfChanged(u); err != nil {
		return err
	}

	s.stampUpdatedAt(u)
	return nil
}

// hashPasswordIfChanged only touches the hash when a new plaintext is
// pending. Re-hashing an already stored hash would lock the account
// out.
func (s *Users) hashPasswordIfChanged(u *model.User) error {
	raw := u.PendingPassword()
	if raw == "" {
		return nil
	}

	hash, err := s.Hash.GenerateFromPassword(raw)
	if err != nil {
		return err
	}

	u.PasswordHash = hash
	u.ClearPendingPassword()
	return nil
}

func (s *Users) stampUpdatedAt(u *model.User) {
	u.UpdatedAt = time.Now()
}
