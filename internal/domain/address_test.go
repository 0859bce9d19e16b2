package domain

import (
	"strings"
	"testing"
)

func TestAddressDerivationDeterministic(t *testing.T) {
	owner := Identity{1, 2, 3}
	ns := NamespaceID{9, 8, 7}

	p1 := ProjectAddress(owner, ns)
	p2 := ProjectAddress(owner, ns)
	if p1 != p2 {
		t.Fatal("project address not deterministic")
	}

	c1 := CredentialAddress(p1, 0)
	c2 := CredentialAddress(p1, 0)
	if c1 != c2 {
		t.Fatal("credential address not deterministic")
	}
	if CredentialAddress(p1, 1) == c1 {
		t.Error("different indexes should give different addresses")
	}

	u1 := UsageAddress(c1)
	if u1 != UsageAddress(c1) {
		t.Fatal("usage address not deterministic")
	}
	if u1 == c1 || c1 == p1 {
		t.Error("seed domains should separate address spaces")
	}
}

func TestAddressDifferentOwners(t *testing.T) {
	ns := NamespaceID{1}
	a := ProjectAddress(Identity{1}, ns)
	b := ProjectAddress(Identity{2}, ns)
	if a == b {
		t.Error("different owners should give different project addresses")
	}
}

func TestParseRoundTrip(t *testing.T) {
	owner := Identity{0xaa, 0xbb}
	got, err := ParseIdentity(owner.String())
	if err != nil {
		t.Fatalf("parse identity: %v", err)
	}
	if got != owner {
		t.Error("identity round trip mismatch")
	}

	addr := ProjectAddress(owner, NamespaceID{1})
	gotAddr, err := ParseAddress(addr.String())
	if err != nil {
		t.Fatalf("parse address: %v", err)
	}
	if gotAddr != addr {
		t.Error("address round trip mismatch")
	}

	if _, err := ParseAddress("zz"); err == nil {
		t.Error("expected error for invalid hex")
	}
	if _, err := ParseAddress("aabb"); err == nil {
		t.Error("expected error for short input")
	}
}

func TestGenerateSecret(t *testing.T) {
	secret, hash := GenerateSecret()
	if !ValidateSecretFormat(secret) {
		t.Fatalf("generated secret %q does not match format", secret)
	}
	if !strings.HasPrefix(secret, "kg_") {
		t.Errorf("secret missing prefix: %q", secret)
	}
	if hash != HashSecret(secret) {
		t.Error("returned hash does not match HashSecret")
	}

	other, _ := GenerateSecret()
	if other == secret {
		t.Error("two generated secrets should differ")
	}
}
