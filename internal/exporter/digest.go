package exporter

import (
	"encoding/hex"
	"io"
	"os"

	"golang.org/x/crypto/blake2b"

	apperrors "patentworld/internal/errors"
)

// Digest returns the hex BLAKE2b-256 digest of the file at path
func Digest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", apperrors.NewStorageError("failed to open file for digest", err).WithContext("path", path)
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", apperrors.NewStorageError("failed to read file for digest", err).WithContext("path", path)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// DigestBytes returns the hex BLAKE2b-256 digest of data
func DigestBytes(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
