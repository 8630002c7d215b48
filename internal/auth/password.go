// Package auth: password hashing utilities.
//
// WHY BCRYPT?
// The dev provider stores real-looking accounts in SQLite, and those rows
// end up in backups and bug reports like any other database. bcrypt is
// slow on purpose, which makes guessing a leaked hash expensive.
//
// bcrypt takes care of the parts that are easy to get wrong:
//   - a random salt per hash, so equal passwords hash differently
//   - the salt lives inside the output, so users.password_hash is one column
//   - the work factor ("cost") travels with the hash, so raising it later
//     does not break old rows
//
// Fast hashes (MD5, SHA-256) are not an option here. A GPU walks through
// them in minutes; cost 12 bcrypt takes around 250ms per guess, which a
// signup never notices.
//
// Hash format (the full output of bcrypt.GenerateFromPassword):
//
//	$2a$12$<22-char salt><31-char hash>
//	 ^   ^
//	 |   cost (2^12 = 4096 rounds)
//	 version
//
// The errors below are sentinels. The HTTP layer decides what the user
// reads, the same way it does for every other domain error.
package auth

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor used outside tests.
//
// Pick the cost so one hash takes 200-300ms on the machine that serves
// logins. Lower is easy to crack; higher makes a burst of signups queue
// up behind bcrypt.
const defaultCost = 12

// MinPasswordLength is the shortest password signup accepts.
const MinPasswordLength = 6

var (
	// ErrInvalidPassword means the password does not match the stored hash.
	ErrInvalidPassword = errors.New("auth: invalid password")

	// ErrWeakPassword means the password is shorter than MinPasswordLength.
	ErrWeakPassword = errors.New("auth: password too short")

	// ErrPasswordTooLong means the password is over bcrypt's 72-byte limit.
	ErrPasswordTooLong = errors.New("auth: password longer than 72 bytes")
)

// PasswordService hashes and verifies passwords with bcrypt.
//
// The cost is a field so tests can drop it to bcrypt.MinCost.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the default cost (12).
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceForTest creates a PasswordService with the given cost.
// Use bcrypt.MinCost (4) in tests of other packages.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// CheckStrength rejects passwords signup would not accept.
func (p *PasswordService) CheckStrength(plaintext string) error {
	if utf8.RuneCountInString(plaintext) < MinPasswordLength {
		return ErrWeakPassword
	}
	return nil
}

// Hash hashes plaintext with bcrypt.
//
// bcrypt silently truncates input after 72 bytes, so longer passwords are
// rejected instead.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > 72 {
		return "", ErrPasswordTooLong
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify returns nil when plaintext matches hash, ErrInvalidPassword when
// it does not. The comparison is constant-time.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidPassword
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
