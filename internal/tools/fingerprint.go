package tools

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Fingerprint derives the deterministic cache key for an invocation:
// SHA-256 over the tool name and the canonical JSON encoding of the
// normalized arguments. encoding/json emits map keys in sorted order,
// so value-equal argument sets hash identically regardless of the
// order the caller supplied them in.
func Fingerprint(tool string, args Args) string {
	payload, err := json.Marshal(args)
	if err != nil {
		// Normalized args are built from JSON-safe types only.
		payload = []byte(err.Error())
	}

	h := sha256.New()
	h.Write([]byte(tool))
	h.Write([]byte{0})
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
