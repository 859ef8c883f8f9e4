package subscriptions

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// ReceiptURLPrefix is the public path receipts are served under.
const ReceiptURLPrefix = "/uploads/transactions/"

// ErrReceiptNotFound is returned when a requested receipt file does not exist.
var ErrReceiptNotFound = errors.New("receipt not found")

var dataURL = regexp.MustCompile(`^data:(.+?);base64,(.*)$`)

var mimeExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

// ReceiptStore saves payment screenshots to a directory on disk.
type ReceiptStore struct {
	dir string
}

// NewReceiptStore stores receipts under root/transactions.
func NewReceiptStore(root string) *ReceiptStore {
	return &ReceiptStore{dir: filepath.Join(root, "transactions")}
}

// Dir returns the directory receipts are written to.
func (s *ReceiptStore) Dir() string {
	return s.dir
}

// Save decodes a data URL or raw base64 image and writes it under a fresh
// name. It returns the public URL of the file.
func (s *ReceiptStore) Save(encoded, originalName string) (string, error) {
	payload := encoded
	ext := ""
	if m := dataURL.FindStringSubmatch(encoded); m != nil {
		payload = m[2]
		ext = mimeExtensions[m[1]]
	}
	if ext == "" && originalName != "" {
		ext = filepath.Ext(originalName)
	}
	if ext == "" || len(ext) > 6 {
		ext = ".png"
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return "", fmt.Errorf("failed to decode receipt: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create receipts directory: %w", err)
	}

	name := "txn-" + uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write receipt: %w", err)
	}

	return ReceiptURLPrefix + name, nil
}

// Path resolves a receipt file name to its location on disk. Names that
// would escape the directory are rejected.
func (s *ReceiptStore) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", ErrReceiptNotFound
	}

	p := filepath.Join(s.dir, name)
	info, err := os.Stat(p)
	if err != nil || info.IsDir() {
		return "", ErrReceiptNotFound
	}

	return p, nil
}
