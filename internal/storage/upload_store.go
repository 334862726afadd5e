package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// ErrTooLarge is returned when an upload exceeds the configured limit.
	ErrTooLarge = errors.New("upload too large")
	// ErrBadType is returned for uploads that are not an allowed image type.
	ErrBadType = errors.New("unsupported upload type")
	// ErrPathMismatch is returned when a requested file does not match the
	// path recorded on the order.
	ErrPathMismatch = errors.New("upload path mismatch")
)

// fallbackFilename is used when sanitization leaves nothing of the original
// filename.
const fallbackFilename = "upload.bin"

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

var allowedTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
	"image/gif":  true,
}

// UploadStore writes and serves uploaded images under
// <root>/uploads/<token>/<filename>.
type UploadStore struct {
	root     string
	maxBytes int64
}

// NewUploadStore creates an UploadStore rooted at dataDir.
func NewUploadStore(dataDir string, maxUploadMB int) *UploadStore {
	return &UploadStore{
		root:     dataDir,
		maxBytes: int64(maxUploadMB) * 1024 * 1024,
	}
}

// MaxBytes returns the configured upload size limit.
func (s *UploadStore) MaxBytes() int64 {
	return s.maxBytes
}

// SafeFilename flattens a client-supplied filename: directory components are
// stripped, anything outside [A-Za-z0-9._-] collapses to "_" and the result
// is truncated to 120 characters.
func SafeFilename(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	name = unsafeChars.ReplaceAllString(name, "_")
	if len(name) > 120 {
		name = name[:120]
	}
	if name == "" {
		return fallbackFilename
	}
	return name
}

// ValidateType checks the declared content type against the image allow-list.
func (s *UploadStore) ValidateType(contentType string) error {
	if !allowedTypes[contentType] {
		return fmt.Errorf("%w: %s", ErrBadType, contentType)
	}
	return nil
}

// Save writes an upload for the given order token and returns the relative
// path to record on the order ("uploads/<token>/<filename>").
func (s *UploadStore) Save(token, filename string, size int64, r io.Reader) (string, error) {
	if size > s.maxBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrTooLarge, size)
	}

	safe := SafeFilename(filename)
	dir := filepath.Join(s.root, "uploads", token)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	dst, err := os.Create(filepath.Join(dir, safe))
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	defer dst.Close()

	// The size limit is re-enforced while copying; multipart headers are
	// client input.
	if _, err := io.Copy(dst, io.LimitReader(r, s.maxBytes+1)); err != nil {
		return "", fmt.Errorf("failed to write upload: %w", err)
	}

	return "uploads/" + token + "/" + safe, nil
}

// Resolve recomputes the expected relative path from (token, filename) and
// returns the absolute file path only when it exactly matches the path
// recorded on the order. Anything else is rejected, which blocks path
// traversal and cross-order file access.
func (s *UploadStore) Resolve(token, filename, storedPath string) (string, error) {
	expected := "uploads/" + token + "/" + SafeFilename(filename)
	if storedPath == "" || storedPath != expected {
		return "", ErrPathMismatch
	}

	abs := filepath.Join(s.root, filepath.FromSlash(expected))
	if _, err := os.Stat(abs); err != nil {
		return "", fmt.Errorf("stored upload missing: %w", err)
	}
	return abs, nil
}
