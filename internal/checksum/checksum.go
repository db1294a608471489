// Package checksum fingerprints Datajud payloads and inbox files.
package checksum

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// SumJSON digests data after stripping insignificant whitespace, so a
// re-indented payload keeps its fingerprint. Invalid JSON is digested as is.
func SumJSON(data []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return Sum(data)
	}
	return Sum(buf.Bytes())
}
