// Package digest computes the content digests and base64 transport
// encoding used by the backup protocol to compare and transfer files.
package digest

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"io"
	"os"

	"github.com/xatophi/remote-backup-pds-project/errors"
)

// chunkSize is the size of the buffer used to stream a file's content
// through the hash function.
const chunkSize = 2048

// Of computes the SHA-256 digest of the file at path, streaming its
// content in fixed-size chunks, and returns the lowercase hex
// representation (64 characters).
func Of(path string) (string, error) {
	const op = "digest.Of"

	f, err := os.Open(path)
	if err != nil {
		return "", errors.E(op, errors.Read, err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", errors.E(op, errors.Read, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Encode reads the whole file at path into memory and returns its
// standard base64 encoding (with padding, no line breaks). Callers must
// avoid calling Encode on files too large to fit in memory; there is no
// streaming variant.
func Encode(path string) (string, error) {
	const op = "digest.Encode"

	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.E(op, errors.Read, err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Decode is the server-side inverse of Encode: it decodes a standard
// base64 string back into raw bytes.
func Decode(encoded string) ([]byte, error) {
	const op = "digest.Decode"

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.E(op, errors.Protocol, err)
	}
	return data, nil
}

// OfBytes computes the SHA-256 digest of data directly, used by the
// server when it already holds the decoded content in memory.
func OfBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
