package model

// PasswordHasher hashes passwords and checks them against stored hashes.
// Compare returns ErrPasswordMismatch for a wrong password.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Compare(hash, plain string) error
}
