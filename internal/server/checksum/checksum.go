// Package checksum streams object content through a SHA-256 digest.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// Stream consumes r exactly once and returns the lowercase hex SHA-256 of
// its content together with the number of bytes read. The content is never
// buffered whole; io.Copy feeds the digest in chunks.
func Stream(r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", 0, fmt.Errorf("checksum: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
