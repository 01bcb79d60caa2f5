package store

import (
	"crypto/sha256"
	"fmt"
)

// hashValue fingerprints a stored value so the store can recognise the echo
// of its own writes when they come back through Watch.
func hashValue(key string, value []byte) string {
	h := sha256.New()
	h.Write([]byte(key))
	h.Write([]byte{0}) // separator
	h.Write(value)
	return fmt.Sprintf("%x", h.Sum(nil))
}
