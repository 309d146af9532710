package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint_Deterministic(t *testing.T) {
	data := []byte("SELECT t0.id FROM Contact t0 WHERE t0.id = {0:Int}")
	a := Fingerprint(DomainStatement, data)
	b := Fingerprint(DomainStatement, data)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestFingerprint_DomainSeparation(t *testing.T) {
	data := []byte("SELECT 1")
	assert.NotEqual(t, Fingerprint(DomainStatement, data), Fingerprint("other/v1", data))

	// the separator keeps "ab"+"c" apart from "a"+"bc"
	assert.NotEqual(t, Fingerprint("ab", []byte("c")), Fingerprint("a", []byte("bc")))
}

func TestFingerprint_KnownValue(t *testing.T) {
	sum := sha256.Sum256(append([]byte(DomainStatement+"\x00"), "SELECT 1"...))
	assert.Equal(t, hex.EncodeToString(sum[:]), Fingerprint(DomainStatement, []byte("SELECT 1")))
}
