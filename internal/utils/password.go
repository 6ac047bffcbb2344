package utils

import "golang.org/x/crypto/bcrypt"

// minBcryptCost is the floor applied to the configured cost; account
// passwords must always use a slow hash.
const minBcryptCost = 10

// HashPassword returns a bcrypt hash using the given cost.  Costs below
// the platform floor are raised to it.
func HashPassword(plain string, cost int) (string, error) {
	if cost < minBcryptCost {
		cost = minBcryptCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword compares a bcrypt hash and a plain password in constant
// time.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
