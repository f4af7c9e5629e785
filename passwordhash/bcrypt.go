// Package passwordhash implements the password hasher component: a
// self-describing, constant-time hash/verify pair over bcrypt.
package passwordhash

import "golang.org/x/crypto/bcrypt"

const cost = 10

// Hash returns a self-describing bcrypt hash of password, suitable for
// storage in User.PasswordHash.
func Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Result is the outcome of Verify.
type Result int

const (
	// Ok means the password matches the hash.
	Ok Result = iota
	// PasswordInvalid means the password does not match the hash, or no
	// hash was stored for the user at all.
	PasswordInvalid
)

// Verify compares password against hash in constant time. An empty hash
// (a user with no password login configured) always verifies
// PasswordInvalid and returns at once, without calling into bcrypt.
func Verify(hash, password string) Result {
	if hash == "" {
		return PasswordInvalid
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return PasswordInvalid
	}
	return Ok
}
