package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Hash returns the hex SHA-256 digest of data. Every cache key bottoms
// out here, so keys are fixed-length and collision-safe.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// hashKey builds "class:digest" from a key class and its components. The
// components are JSON-encoded before hashing so mixed types key stably.
func hashKey(class string, parts ...any) string {
	data, _ := json.Marshal(parts)
	return class + ":" + Hash(data)
}
