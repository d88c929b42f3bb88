package importer

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"
)

// ZipLimits guards the archive index against hostile input
type ZipLimits struct {
	MaxEntries       int   // maximum number of files in the archive
	MaxDeclaredBytes int64 // maximum total declared uncompressed size
	MaxEntryBytes    int64 // maximum uncompressed size of a single entry
}

// DefaultZipLimits is tuned for image bundles accompanying a spreadsheet
func DefaultZipLimits() ZipLimits {
	return ZipLimits{
		MaxEntries:       5000,
		MaxDeclaredBytes: 1 << 30, // 1 GiB declared
		MaxEntryBytes:    32 << 20,
	}
}

// AssetEntry describes one file available in the uploaded archive
type AssetEntry struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// AssetCatalog is a filename index over a ZIP archive's central directory.
// It is built without decompressing anything; entry contents are extracted
// lazily at commit time, only for files valid rows actually reference.
// Lookups are case-insensitive and keyed by base filename.
type AssetCatalog struct {
	files  map[string]AssetEntry
	limits ZipLimits
}

// IndexZip builds an AssetCatalog from raw archive bytes. Directory entries
// are ignored. The archive is rejected outright when it exceeds the entry
// count or declared-size limits.
func IndexZip(data []byte, limits ZipLimits) (*AssetCatalog, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	if limits.MaxEntries > 0 && len(reader.File) > limits.MaxEntries {
		return nil, fmt.Errorf("archive has %d entries, limit is %d", len(reader.File), limits.MaxEntries)
	}

	catalog := &AssetCatalog{
		files:  make(map[string]AssetEntry, len(reader.File)),
		limits: limits,
	}

	var declared int64
	for _, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		size := int64(f.UncompressedSize64)
		if limits.MaxEntryBytes > 0 && size > limits.MaxEntryBytes {
			return nil, fmt.Errorf("archive entry %q declares %d bytes, limit is %d", f.Name, size, limits.MaxEntryBytes)
		}
		declared += size
		if limits.MaxDeclaredBytes > 0 && declared > limits.MaxDeclaredBytes {
			return nil, fmt.Errorf("archive declares more than %d uncompressed bytes", limits.MaxDeclaredBytes)
		}
		catalog.files[normalizeAssetName(f.Name)] = AssetEntry{
			Filename: path.Base(f.Name),
			Size:     size,
		}
	}

	return catalog, nil
}

// Lookup resolves a filename referenced by a row to its archive entry
func (c *AssetCatalog) Lookup(name string) (AssetEntry, bool) {
	entry, ok := c.files[normalizeAssetName(name)]
	return entry, ok
}

// Len returns the number of indexed files
func (c *AssetCatalog) Len() int {
	return len(c.files)
}

// Files returns the indexed entries, keyed by normalized filename
func (c *AssetCatalog) Files() map[string]AssetEntry {
	return c.files
}

// ExtractFile decompresses a single named entry from the raw archive bytes.
// The read is capped at the entry limit so a lying central directory cannot
// expand past it.
func ExtractFile(data []byte, name string, limits ZipLimits) ([]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	want := normalizeAssetName(name)
	for _, f := range reader.File {
		if f.FileInfo().IsDir() || normalizeAssetName(f.Name) != want {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open archive entry %q: %w", name, err)
		}
		defer rc.Close()

		limit := limits.MaxEntryBytes
		if limit <= 0 {
			limit = DefaultZipLimits().MaxEntryBytes
		}
		content, err := io.ReadAll(io.LimitReader(rc, limit+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read archive entry %q: %w", name, err)
		}
		if int64(len(content)) > limit {
			return nil, fmt.Errorf("archive entry %q exceeds %d bytes", name, limit)
		}
		return content, nil
	}

	return nil, fmt.Errorf("archive entry %q not found", name)
}

func normalizeAssetName(name string) string {
	return strings.ToLower(path.Base(strings.ReplaceAll(name, "\\", "/")))
}
