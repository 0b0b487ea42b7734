package testutil

import (
	"crypto/sha256"
	"encoding/hex"
)

// SHA256Hex returns the SHA-256 checksum of data as a lowercase hex string.
func SHA256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// SHA256 returns the SHA-256 digest of data as stored on document versions.
func SHA256(data []byte) []byte {
	h := sha256.Sum256(data)
	return h[:]
}
