package queue

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

func qualifiedStructName(v any) string {
	s := fmt.Sprintf("%T", v)
	s = strings.TrimLeft(s, "*")

	return s
}

// Signature derives the deduplication key of a task from its name and
// serialized arguments. Identical name and payload bytes give identical keys.
func Signature(taskName string, payload []byte) string {
	h := sha256.New()
	h.Write([]byte(taskName))
	h.Write([]byte{0})
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
