// Package snapshot serialises a built index to a single binary file so
// later startups can skip the full rebuild. The file is a cache, not a
// wire contract: any validation failure on load is reported as an
// error and the caller falls back to rebuilding from the store.
//
// Layout: 32-byte header (magic, version, doc count, created-at),
// JSON-encoded index export, 8-byte footer with a CRC32 of the body.
package snapshot

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"

	"github.com/searchworks/persondex/internal/indexer/index"
)

const (
	MagicBytes    uint32 = 0x50444958 // "PDIX"
	FormatVersion uint32 = 1
	headerSize           = 32
	footerSize           = 8
)

// Write atomically persists the index export to path, writing a .tmp
// file first and renaming on success.
func Write(path string, export *index.Export) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp snapshot file: %w", err)
	}
	defer f.Close()

	body, err := json.Marshal(export)
	if err != nil {
		return fmt.Errorf("marshaling snapshot body: %w", err)
	}

	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(header[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(header[4:8], FormatVersion)
	binary.LittleEndian.PutUint64(header[8:16], uint64(len(export.Documents)))
	binary.LittleEndian.PutUint64(header[16:24], uint64(time.Now().Unix()))
	binary.LittleEndian.PutUint64(header[24:32], uint64(len(body)))

	if _, err := f.Write(header); err != nil {
		return fmt.Errorf("writing snapshot header: %w", err)
	}
	if _, err := f.Write(body); err != nil {
		return fmt.Errorf("writing snapshot body: %w", err)
	}

	footer := make([]byte, footerSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc32.ChecksumIEEE(body))
	if _, err := f.Write(footer); err != nil {
		return fmt.Errorf("writing snapshot footer: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing snapshot file: %w", err)
	}
	f.Close()

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming snapshot file: %w", err)
	}
	return nil
}

// Load reads and validates a snapshot file and rehydrates the index.
// Every failure mode returns an error; none is fatal to the caller.
func Load(path string) (*index.Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot file: %w", err)
	}
	if len(data) < headerSize+footerSize {
		return nil, fmt.Errorf("snapshot file truncated: %d bytes", len(data))
	}

	magic := binary.LittleEndian.Uint32(data[0:4])
	if magic != MagicBytes {
		return nil, fmt.Errorf("invalid snapshot file: bad magic bytes %x", magic)
	}
	version := binary.LittleEndian.Uint32(data[4:8])
	if version != FormatVersion {
		return nil, fmt.Errorf("unsupported snapshot format version %d", version)
	}
	bodyLen := binary.LittleEndian.Uint64(data[24:32])
	if uint64(len(data)) != headerSize+bodyLen+footerSize {
		return nil, fmt.Errorf("snapshot length mismatch: header says %d body bytes, file has %d",
			bodyLen, len(data)-headerSize-footerSize)
	}

	body := data[headerSize : headerSize+bodyLen]
	wantSum := binary.LittleEndian.Uint32(data[headerSize+bodyLen : headerSize+bodyLen+4])
	if gotSum := crc32.ChecksumIEEE(body); gotSum != wantSum {
		return nil, fmt.Errorf("snapshot checksum mismatch: got %x, want %x", gotSum, wantSum)
	}

	var export index.Export
	if err := json.Unmarshal(body, &export); err != nil {
		return nil, fmt.Errorf("parsing snapshot body: %w", err)
	}
	docCount := binary.LittleEndian.Uint64(data[8:16])
	if uint64(len(export.Documents)) != docCount {
		return nil, fmt.Errorf("snapshot document count mismatch: header says %d, body has %d",
			docCount, len(export.Documents))
	}

	ix, err := index.FromExport(&export)
	if err != nil {
		return nil, fmt.Errorf("rehydrating index: %w", err)
	}
	return ix, nil
}
