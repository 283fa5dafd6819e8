package utils

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// HashParts hashes the parts joined by a unit separator so ("ab","c") and
// ("a","bc") never collide.
func HashParts(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return fmt.Sprintf("%x", hash[:16])
}
