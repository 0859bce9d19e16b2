package domain

import (
	"crypto/rand"
	"crypto/sha256"
	"regexp"
)

// Secrets are generated and hashed on the caller's side; the engine only
// ever sees the 32-byte hash. These helpers live here so the CLI and client
// agree on the format: kg_[a-zA-Z0-9]{32}.

var secretRegex = regexp.MustCompile(`^kg_[a-zA-Z0-9]{32}$`)

// ValidateSecretFormat checks if a secret matches the expected format.
func ValidateSecretFormat(secret string) bool {
	return secretRegex.MatchString(secret)
}

// HashSecret returns the SHA-256 hash of the secret.
func HashSecret(secret string) Hash {
	return Hash(sha256.Sum256([]byte(secret)))
}

// GenerateSecret creates a new random secret and its hash.
func GenerateSecret() (secret string, hash Hash) {
	const chars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, 32)
	rand.Read(b)
	for i := range b {
		b[i] = chars[int(b[i])%len(chars)]
	}
	secret = "kg_" + string(b)
	return secret, HashSecret(secret)
}

// GenerateNamespaceID creates a random 16-byte namespace ID.
func GenerateNamespaceID() NamespaceID {
	var n NamespaceID
	rand.Read(n[:])
	return n
}
