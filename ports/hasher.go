package ports

// PasswordHasher is the external password service. The user aggregate only
// checks the shape of already-hashed values; hashing and verification happen
// behind this port.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hashed string) bool
}
