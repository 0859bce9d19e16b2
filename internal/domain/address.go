package domain

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Record addresses are derived, never assigned: given the owner and namespace
// ID you can compute the project address, and from there every child address.
// Callers never need a lookup table, and back-references in child records are
// validated against the derived parent address instead of being trusted.

const (
	projectSeed    = "project"
	credentialSeed = "credential"
	usageSeed      = "usage"
)

// Identity is the 32-byte identity of a record owner. Signature verification
// happens upstream in the execution substrate; the engine only compares.
type Identity [32]byte

// Address is the 32-byte deterministic address of a stored record.
type Address [32]byte

// NamespaceID is the 16-byte random value that makes a project address
// unique per owner.
type NamespaceID [16]byte

// Hash is a 32-byte SHA-256 digest of a credential secret.
type Hash [32]byte

func (i Identity) String() string    { return hex.EncodeToString(i[:]) }
func (a Address) String() string     { return hex.EncodeToString(a[:]) }
func (n NamespaceID) String() string { return hex.EncodeToString(n[:]) }
func (h Hash) String() string        { return hex.EncodeToString(h[:]) }

func (i Identity) MarshalJSON() ([]byte, error)    { return hexJSON(i[:]) }
func (a Address) MarshalJSON() ([]byte, error)     { return hexJSON(a[:]) }
func (n NamespaceID) MarshalJSON() ([]byte, error) { return hexJSON(n[:]) }
func (h Hash) MarshalJSON() ([]byte, error)        { return hexJSON(h[:]) }

func hexJSON(b []byte) ([]byte, error) {
	return []byte(`"` + hex.EncodeToString(b) + `"`), nil
}

// ProjectAddress derives the address of a project record.
func ProjectAddress(owner Identity, namespaceID NamespaceID) Address {
	h := sha256.New()
	h.Write([]byte(projectSeed))
	h.Write(owner[:])
	h.Write(namespaceID[:])
	var a Address
	h.Sum(a[:0])
	return a
}

// CredentialAddress derives the address of the credential at the given
// sequential index within a project.
func CredentialAddress(project Address, index uint16) Address {
	var idx [2]byte
	binary.LittleEndian.PutUint16(idx[:], index)
	h := sha256.New()
	h.Write([]byte(credentialSeed))
	h.Write(project[:])
	h.Write(idx[:])
	var a Address
	h.Sum(a[:0])
	return a
}

// UsageAddress derives the address of the usage counter paired with a
// credential.
func UsageAddress(credential Address) Address {
	h := sha256.New()
	h.Write([]byte(usageSeed))
	h.Write(credential[:])
	var a Address
	h.Sum(a[:0])
	return a
}

// ParseIdentity decodes a 64-character hex identity.
func ParseIdentity(s string) (Identity, error) {
	var i Identity
	if err := parseHex32(s, i[:]); err != nil {
		return Identity{}, fmt.Errorf("parse identity: %w", err)
	}
	return i, nil
}

// ParseAddress decodes a 64-character hex address.
func ParseAddress(s string) (Address, error) {
	var a Address
	if err := parseHex32(s, a[:]); err != nil {
		return Address{}, fmt.Errorf("parse address: %w", err)
	}
	return a, nil
}

// ParseHash decodes a 64-character hex secret hash.
func ParseHash(s string) (Hash, error) {
	var h Hash
	if err := parseHex32(s, h[:]); err != nil {
		return Hash{}, fmt.Errorf("parse hash: %w", err)
	}
	return h, nil
}

// ParseNamespaceID decodes a 32-character hex namespace ID.
func ParseNamespaceID(s string) (NamespaceID, error) {
	var n NamespaceID
	b, err := hex.DecodeString(s)
	if err != nil {
		return NamespaceID{}, fmt.Errorf("parse namespace id: %w", err)
	}
	if len(b) != len(n) {
		return NamespaceID{}, fmt.Errorf("parse namespace id: want %d bytes, got %d", len(n), len(b))
	}
	copy(n[:], b)
	return n, nil
}

func parseHex32(s string, dst []byte) error {
	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	if len(b) != len(dst) {
		return fmt.Errorf("want %d bytes, got %d", len(dst), len(b))
	}
	copy(dst, b)
	return nil
}
