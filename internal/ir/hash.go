package ir

import (
	"crypto/sha256"
	"encoding/hex"
)

// Domain prefixes for fingerprints. The version suffix lets the encoding
// change without colliding with older fingerprints.
const (
	DomainStatement = "sooq/statement/v1"
)

// Fingerprint computes SHA-256 with domain separation and returns it hex
// encoded.
// Format: SHA256(domain + 0x00 + data)
// The null byte keeps the domain/data boundary unambiguous.
func Fingerprint(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
