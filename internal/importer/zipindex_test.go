package importer

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildZip(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range entries {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestIndexZip(t *testing.T) {
	data := buildZip(t, map[string]string{
		"shirt_front.jpg":    "jpeg-bytes",
		"images/mug_top.png": "png-bytes",
	})

	catalog, err := IndexZip(data, DefaultZipLimits())
	require.NoError(t, err)
	assert.Equal(t, 2, catalog.Len())

	// Lookup is case-insensitive and ignores directory prefixes
	entry, ok := catalog.Lookup("SHIRT_FRONT.JPG")
	require.True(t, ok)
	assert.Equal(t, "shirt_front.jpg", entry.Filename)

	entry, ok = catalog.Lookup("mug_top.png")
	require.True(t, ok)
	assert.Equal(t, int64(len("png-bytes")), entry.Size)

	_, ok = catalog.Lookup("missing.jpg")
	assert.False(t, ok)
}

func TestIndexZipRejectsTooManyEntries(t *testing.T) {
	data := buildZip(t, map[string]string{
		"a.jpg": "x",
		"b.jpg": "x",
		"c.jpg": "x",
	})

	limits := DefaultZipLimits()
	limits.MaxEntries = 2
	_, err := IndexZip(data, limits)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entries")
}

func TestIndexZipRejectsOversizedEntry(t *testing.T) {
	data := buildZip(t, map[string]string{
		"big.jpg": "0123456789",
	})

	limits := DefaultZipLimits()
	limits.MaxEntryBytes = 4
	_, err := IndexZip(data, limits)
	assert.Error(t, err)
}

func TestIndexZipRejectsGarbage(t *testing.T) {
	_, err := IndexZip([]byte("not an archive"), DefaultZipLimits())
	assert.Error(t, err)
}

func TestExtractFile(t *testing.T) {
	data := buildZip(t, map[string]string{
		"images/shirt.jpg": "jpeg-bytes",
	})

	content, err := ExtractFile(data, "Shirt.JPG", DefaultZipLimits())
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), content)

	_, err = ExtractFile(data, "other.jpg", DefaultZipLimits())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestExtractFileCapsActualSize(t *testing.T) {
	data := buildZip(t, map[string]string{
		"shirt.jpg": "0123456789",
	})

	limits := DefaultZipLimits()
	limits.MaxEntryBytes = 4
	_, err := ExtractFile(data, "shirt.jpg", limits)
	assert.Error(t, err)
}
