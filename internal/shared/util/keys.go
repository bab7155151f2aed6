package util

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const ownerKeyBytes = 16

// OwnerKey maps a user id to a fixed-length hex directory name, so raw ids
// never appear in storage paths.
func OwnerKey(userID string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(userID)))
	return hex.EncodeToString(sum[:ownerKeyBytes])
}
