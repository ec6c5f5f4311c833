package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrPasswordMismatch means the hash is fine but the password is wrong.
var ErrPasswordMismatch = errors.New("auth: invalid password")

// defaultCost is the bcrypt work factor for new hashes.
//
// Hashes written by earlier versions used cost 10. bcrypt stores the cost
// inside the hash, so those still verify; only new signups pay cost 12.
const defaultCost = 12

// PasswordService hashes and checks passwords with bcrypt.
//
// It's a struct so tests can drop the cost to 4 and run in milliseconds.
type PasswordService struct {
	cost int
}

// NewPasswordService uses the default cost.
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceWithCost is for tests in other packages. Never use a
// low cost in production.
func NewPasswordServiceWithCost(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash returns a self-contained bcrypt hash ("$2a$12$<salt><hash>").
//
// bcrypt silently truncates input past 72 bytes, so longer passwords are
// rejected instead.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > 72 {
		return "", fmt.Errorf("auth: password must be 72 bytes or fewer")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}
	return string(hashed), nil
}

// Verify returns nil when plaintext matches hash, ErrPasswordMismatch when
// it does not, and another error when the hash itself is unusable.
// The comparison is constant-time.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
