package subscriptions

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReceiptStoreSave(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	raw := base64.StdEncoding.EncodeToString(png)

	tests := []struct {
		name    string
		encoded string
		file    string
		ext     string
	}{
		{name: "png data url", encoded: "data:image/png;base64," + raw, ext: ".png"},
		{name: "jpeg data url", encoded: "data:image/jpeg;base64," + raw, ext: ".jpg"},
		{name: "webp data url", encoded: "data:image/webp;base64," + raw, ext: ".webp"},
		{name: "unknown mime uses file name", encoded: "data:image/gif;base64," + raw, file: "receipt.gif", ext: ".gif"},
		{name: "raw base64 uses file name", encoded: raw, file: "scan.jpeg", ext: ".jpeg"},
		{name: "raw base64 without name", encoded: raw, ext: ".png"},
		{name: "overlong extension", encoded: raw, file: "scan.verylongext", ext: ".png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewReceiptStore(t.TempDir())

			url, err := store.Save(tt.encoded, tt.file)
			require.NoError(t, err)

			require.True(t, strings.HasPrefix(url, ReceiptURLPrefix+"txn-"), url)
			assert.Equal(t, tt.ext, filepath.Ext(url))

			name := strings.TrimPrefix(url, ReceiptURLPrefix)
			p, err := store.Path(name)
			require.NoError(t, err)

			data, err := os.ReadFile(p)
			require.NoError(t, err)
			assert.Equal(t, png, data)
		})
	}
}

func TestReceiptStoreSaveInvalid(t *testing.T) {
	store := NewReceiptStore(t.TempDir())

	_, err := store.Save("data:image/png;base64,@@not-base64@@", "")
	assert.Error(t, err)
}

func TestReceiptStorePath(t *testing.T) {
	root := t.TempDir()
	store := NewReceiptStore(root)
	require.NoError(t, os.MkdirAll(store.Dir(), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "secret.txt"), []byte("x"), 0o644))

	for _, name := range []string{"", "missing.png", "../secret.txt", ".", ".."} {
		_, err := store.Path(name)
		assert.ErrorIs(t, err, ErrReceiptNotFound, name)
	}
}
