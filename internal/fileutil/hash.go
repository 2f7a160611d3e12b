package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

// hashLen is the number of hex digits kept from a SHA-256 digest.
const hashLen = 16

func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:hashLen]
}

func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil))[:hashLen], nil
}
