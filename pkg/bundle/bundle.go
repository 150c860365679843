// Package bundle provides reading and writing of BNDL archives, the
// container format game assets ship in. Entries are named, zlib-compressed
// blobs; entry order is significant and preserved across a rewrite.
package bundle

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

const bndlMagic = "BNDL"

// Bundle format errors.
var (
	ErrInvalidMagic   = errors.New("invalid bundle magic: expected 'BNDL'")
	ErrTruncatedData  = errors.New("truncated bundle data")
	ErrInvalidEntry   = errors.New("invalid bundle entry")
	ErrEntryNotFound  = errors.New("bundle entry not found")
	ErrDuplicateEntry = errors.New("duplicate bundle entry name")
)

const (
	maxEntries   = 0xffff
	maxNameLen   = 1024
	maxEntrySize = 1 << 28
)

// Entry is one named file inside a bundle, held uncompressed.
type Entry struct {
	Name string
	Data []byte
}

// Bundle is a fully-read BNDL archive.
type Bundle struct {
	Entries []Entry
}

// Sniff reports whether data looks like a BNDL archive.
func Sniff(data []byte) bool {
	return len(data) >= 8 && string(data[:4]) == bndlMagic
}

// Open reads and decompresses a bundle file.
func Open(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening bundle: %w", err)
	}
	return Read(data)
}

// Read parses a bundle from its serialized form.
func Read(data []byte) (*Bundle, error) {
	r := bytes.NewReader(data)

	magic := make([]byte, 4)
	if _, err := r.Read(magic); err != nil {
		return nil, ErrTruncatedData
	}
	if string(magic) != bndlMagic {
		return nil, ErrInvalidMagic
	}

	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, ErrTruncatedData
	}
	if count > maxEntries {
		return nil, fmt.Errorf("%w: %d entries", ErrInvalidEntry, count)
	}

	b := &Bundle{Entries: make([]Entry, count)}
	seen := make(map[string]bool, count)
	for i := range b.Entries {
		entry, err := readEntry(r)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		if seen[entry.Name] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateEntry, entry.Name)
		}
		seen[entry.Name] = true
		b.Entries[i] = entry
	}

	return b, nil
}

func readEntry(r *bytes.Reader) (Entry, error) {
	var nameLen uint16
	if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
		return Entry{}, ErrTruncatedData
	}
	if nameLen == 0 || nameLen > maxNameLen {
		return Entry{}, ErrInvalidEntry
	}
	name := make([]byte, nameLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return Entry{}, ErrTruncatedData
	}

	var uncompressedSize, compressedSize uint32
	if err := binary.Read(r, binary.LittleEndian, &uncompressedSize); err != nil {
		return Entry{}, ErrTruncatedData
	}
	if err := binary.Read(r, binary.LittleEndian, &compressedSize); err != nil {
		return Entry{}, ErrTruncatedData
	}
	if uncompressedSize > maxEntrySize || compressedSize > maxEntrySize {
		return Entry{}, ErrInvalidEntry
	}

	compressed := make([]byte, compressedSize)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return Entry{}, ErrTruncatedData
	}

	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	defer zr.Close()

	data := make([]byte, uncompressedSize)
	if _, err := io.ReadFull(zr, data); err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	return Entry{Name: string(name), Data: data}, nil
}

// Write serializes the bundle back into its binary form.
func (b *Bundle) Write() ([]byte, error) {
	if len(b.Entries) > maxEntries {
		return nil, fmt.Errorf("%w: %d entries", ErrInvalidEntry, len(b.Entries))
	}

	var buf bytes.Buffer
	buf.WriteString(bndlMagic)
	binary.Write(&buf, binary.LittleEndian, uint32(len(b.Entries)))

	for i := range b.Entries {
		entry := &b.Entries[i]
		if len(entry.Name) == 0 || len(entry.Name) > maxNameLen {
			return nil, fmt.Errorf("entry %d: %w", i, ErrInvalidEntry)
		}

		var compressed bytes.Buffer
		zw := zlib.NewWriter(&compressed)
		if _, err := zw.Write(entry.Data); err != nil {
			return nil, fmt.Errorf("entry %d: compressing: %w", i, err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("entry %d: compressing: %w", i, err)
		}

		binary.Write(&buf, binary.LittleEndian, uint16(len(entry.Name)))
		buf.WriteString(entry.Name)
		binary.Write(&buf, binary.LittleEndian, uint32(len(entry.Data)))
		binary.Write(&buf, binary.LittleEndian, uint32(compressed.Len()))
		buf.Write(compressed.Bytes())
	}

	return buf.Bytes(), nil
}

// Get returns the named entry's data.
func (b *Bundle) Get(name string) ([]byte, error) {
	for i := range b.Entries {
		if b.Entries[i].Name == name {
			return b.Entries[i].Data, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrEntryNotFound, name)
}

// Set replaces the named entry's data in place.
func (b *Bundle) Set(name string, data []byte) error {
	for i := range b.Entries {
		if b.Entries[i].Name == name {
			b.Entries[i].Data = data
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrEntryNotFound, name)
}

// List returns the entry names in bundle order.
func (b *Bundle) List() []string {
	names := make([]string, len(b.Entries))
	for i := range b.Entries {
		names[i] = b.Entries[i].Name
	}
	return names
}
