package repository

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"

	drepo "QuantData/internal/domain/repository"
	"QuantData/pkg/util"
)

func writeFileAtomic(path string, data []byte) error {
	return util.WriteFileAtomic(path, data)
}

// Hash algorithms accepted by HashFile.
const (
	HashMD5    = drepo.HashMD5
	HashSHA256 = drepo.HashSHA256
)

// HashFile returns the hex digest of the file at path.
func HashFile(path, algo string) (string, error) {
	var h hash.Hash
	switch algo {
	case HashMD5:
		h = md5.New()
	case HashSHA256:
		h = sha256.New()
	default:
		return "", fmt.Errorf("unsupported hash %q", algo)
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
