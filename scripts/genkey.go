//go:build ignore

package main

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

func main() {
	// Generate a secret/hash pair for manual testing.
	const chars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, 32)
	rand.Read(b)
	for i := range b {
		b[i] = chars[int(b[i])%len(chars)]
	}
	secret := "kg_" + string(b)
	h := sha256.Sum256([]byte(secret))

	fmt.Println("Secret:", secret)
	fmt.Println("Hash:  ", hex.EncodeToString(h[:]))
}
