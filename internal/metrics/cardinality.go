package metrics

import (
	"crypto/sha256"
	"fmt"
)

// HashLabel creates a short hash of a label value to reduce cardinality
// while maintaining uniqueness for monitoring purposes.
//
// Returns first 8 characters of SHA256 hash.
func HashLabel(value string) string {
	if value == "" {
		return "unknown"
	}

	hash := sha256.Sum256([]byte(value))
	// Use first 8 hex characters (4 bytes) for manageable cardinality
	return fmt.Sprintf("%x", hash[:4])
}

// HashHostname creates a hashed version of a hostname for metrics labels
func HashHostname(hostname string) string {
	return HashLabel(hostname)
}

// HashUsername creates a hashed version of a username for metrics labels
func HashUsername(username string) string {
	return HashLabel(username)
}
