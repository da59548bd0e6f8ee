package crypto

import "golang.org/x/crypto/bcrypt"

// DefaultCost matches the work factor used for stored accounts.
const DefaultCost = 10

// HashPassword hashes plaintext using bcrypt with a fresh salt.
// A cost outside bcrypt's accepted range falls back to DefaultCost.
func HashPassword(plain string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether plain matches the stored hash.
// Malformed hashes never match.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
