package fileInfo

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
)

// SHA256Bytes returns the hex encoded SHA-256 of data.
func SHA256Bytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SHA256File returns the hex encoded SHA-256 of the file at path.
func SHA256File(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Error("fail to close file", "error", err.Error())
		}
	}()
	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// VerifySHA256 reports whether the file content hashes to expected.
func (n *FileNode) VerifySHA256(expected string) (bool, error) {
	actual, err := SHA256File(n.Path)
	if err != nil {
		return false, err
	}
	n.Checksum = actual
	return actual == expected, nil
}
