package utils

import (
	"encoding/hex"
	"os"

	"golang.org/x/crypto/blake2b"
)

// HashFingerprint derives the durable session key from the client-supplied
// visitor identifier. The digest is keyed with a server-side salt so the
// stored hash cannot be reversed or recomputed off-server; raw identifiers
// never touch storage.
func HashFingerprint(raw string) string {
	key := []byte(os.Getenv("FINGERPRINT_SALT"))
	if len(key) > 64 {
		key = key[:64]
	}
	h, err := blake2b.New256(key)
	if err != nil {
		// Only reachable with an oversized key, which the truncation above
		// prevents; fall back to an unkeyed digest rather than dropping data.
		h, _ = blake2b.New256(nil)
	}
	h.Write([]byte(raw))
	return hex.EncodeToString(h.Sum(nil))
}
