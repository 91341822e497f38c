package checksum

import (
	"crypto/sha1" //nolint:gosec // cache filenames must match the host's sha1 naming
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Short returns the hex-encoded SHA-1 digest of data. LaTeX cache files are
// named after it so existing media folders keep their images.
func Short(data []byte) string {
	h := sha1.Sum(data) //nolint:gosec
	return hex.EncodeToString(h[:])
}
