// Package checksum derives content digests used for change detection.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Of streams the JSON encoding of v through SHA-256 and returns the hex
// digest. Slices keep their order, so callers sort them when order is not
// meaningful.
func Of(v any) (string, error) {
	h := sha256.New()
	if err := json.NewEncoder(h).Encode(v); err != nil {
		return "", fmt.Errorf("checksum: encode: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
