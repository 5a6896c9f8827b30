package config

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/zeebo/blake3"
)

// ComputeBlake3Hash computes the BLAKE3 hash of a file.
func ComputeBlake3Hash(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

// Fingerprint identifies a webhook list by content. Two lists with the same
// definitions in the same order share a fingerprint.
func Fingerprint(webhooks []Webhook) string {
	h := blake3.New()
	enc := json.NewEncoder(h)
	for _, hook := range webhooks {
		// Webhook has no fields json cannot encode.
		_ = enc.Encode(hook)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ShortHash trims a hex hash for log lines.
func ShortHash(hash string) string {
	if len(hash) <= 12 {
		return hash
	}
	return hash[:12]
}
