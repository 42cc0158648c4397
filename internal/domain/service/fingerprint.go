package service

import (
	"crypto/md5"
	"encoding/hex"
)

// Fingerprint returns the content hash used to detect config changes between passes.
// It is not used for authentication, so MD5 is sufficient.
func Fingerprint(content []byte) string {
	sum := md5.Sum(content)
	return hex.EncodeToString(sum[:])
}
