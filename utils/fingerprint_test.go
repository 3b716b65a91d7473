package utils

import "testing"

func TestHashFingerprint_StableAndDistinct(t *testing.T) {
	t.Setenv("FINGERPRINT_SALT", "test-salt")

	a1 := HashFingerprint("visitor-a")
	a2 := HashFingerprint("visitor-a")
	b := HashFingerprint("visitor-b")

	if a1 != a2 {
		t.Fatalf("same input hashed to different values: %q vs %q", a1, a2)
	}
	if a1 == b {
		t.Fatalf("distinct inputs collided")
	}
	if len(a1) != 64 {
		t.Fatalf("hash length = %d, want 64 hex chars", len(a1))
	}
	if a1 == "visitor-a" {
		t.Fatalf("raw identifier leaked through")
	}
}

func TestHashFingerprint_SaltChangesDigest(t *testing.T) {
	t.Setenv("FINGERPRINT_SALT", "salt-one")
	first := HashFingerprint("visitor-a")

	t.Setenv("FINGERPRINT_SALT", "salt-two")
	second := HashFingerprint("visitor-a")

	if first == second {
		t.Fatalf("digest must depend on the server salt")
	}
}
