package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

const minSecretBytes = 32

// decodeSecret turns a configured secret into key material. Base64 input is
// decoded; anything else is used as is. Both forms need at least 32 bytes.
// An empty secret yields a random key that lives as long as the process.
func decodeSecret(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		key := make([]byte, minSecretBytes)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate key: %w", err)
		}
		return key, nil
	}
	if decoded, err := base64.StdEncoding.DecodeString(raw); err == nil {
		if len(decoded) < minSecretBytes {
			return nil, fmt.Errorf("base64 secret decodes to %d bytes, need %d", len(decoded), minSecretBytes)
		}
		return decoded, nil
	}
	if len(raw) < minSecretBytes {
		return nil, errors.New("secret must be at least 32 characters or base64 of 32 bytes")
	}
	return []byte(raw), nil
}

// deriveKey gives each use of a secret its own key.
func deriveKey(master []byte, label string) []byte {
	mac := hmac.New(sha256.New, master)
	mac.Write([]byte("viormart/" + label))
	return mac.Sum(nil)
}
