package cache

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

type KeyGenerator struct {
	Prefix string
}

// NewKeyGenerator creates a new key generator with the given prefix
func NewKeyGenerator(prefix string) *KeyGenerator {
	if prefix == "" {
		prefix = "sabanas"
	}
	return &KeyGenerator{Prefix: prefix}
}

// JobKey addresses the run journal of a single file.
func (kg *KeyGenerator) JobKey(fileID int64) string {
	return fmt.Sprintf("%s:job:%d", kg.Prefix, fileID)
}

// IdempotencyKey addresses a cached accept response. The caller-supplied
// value is hashed so hostile or oversized header values never become raw
// store keys.
func (kg *KeyGenerator) IdempotencyKey(value string) string {
	hash := md5.Sum([]byte(value))
	return fmt.Sprintf("%s:idem:%s", kg.Prefix, hex.EncodeToString(hash[:]))
}
