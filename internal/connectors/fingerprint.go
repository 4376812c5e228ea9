package connectors

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// Fingerprint derives the dedupe hash for an observation from its stable
// identifying parts (source name plus whatever uniquely names the underlying
// event). Re-fetching the same event must reproduce the same hash.
func Fingerprint(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "-")))
	return hex.EncodeToString(sum[:])
}

// itemFingerprint hashes an arbitrary decoded JSON item. encoding/json
// marshals map keys in sorted order, so equal items hash equally.
func itemFingerprint(item map[string]any) string {
	encoded, err := json.Marshal(item)
	if err != nil {
		// Values decoded from JSON always re-encode.
		encoded = []byte{}
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}
