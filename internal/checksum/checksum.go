package checksum

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data. Used for snapshot
// checksums and optimistic concurrency tokens.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// MD5 returns the hex-encoded MD5 digest of data. Asset ids are
// content-addressed by MD5, matching the asset server convention.
func MD5(data []byte) string {
	h := md5.Sum(data)
	return hex.EncodeToString(h[:])
}
