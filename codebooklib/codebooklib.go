// Copyright 2015, David Howden
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package codebooklib loads the on-disk packed codebook library file format
// (spec.md §6 "Codebook file format"): a concatenation of per-codebook byte
// ranges followed by a little-endian int32 offset table, whose start is
// named by the file's last 4 bytes.
package codebooklib

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Library is a read-only, random-access packed codebook library. The zero
// value is not usable; construct with Load.
type Library struct {
	r       io.ReaderAt
	offsets []int64
}

// Load reads the offset table from the tail of r (size bytes total) and
// returns a Library ready for lookups. An empty library (size == 0, or a
// table with zero valid indices) is valid and means "codebooks inline in
// file" per spec.md §4.F.
func Load(r io.ReaderAt, size int64) (*Library, error) {
	if size == 0 {
		return &Library{r: r}, nil
	}
	if size < 4 {
		return nil, fmt.Errorf("codebooklib: file of %d bytes is too small to hold an offset table", size)
	}

	var tail [4]byte
	if _, err := r.ReadAt(tail[:], size-4); err != nil {
		return nil, fmt.Errorf("codebooklib: reading table offset: %w", err)
	}
	tableOffset := int64(binary.LittleEndian.Uint32(tail[:]))
	if tableOffset < 0 || tableOffset > size-4 {
		return nil, fmt.Errorf("codebooklib: table offset %d is outside the file (size %d)", tableOffset, size)
	}

	tableBytes := size - tableOffset
	if tableBytes%4 != 0 {
		return nil, fmt.Errorf("codebooklib: offset table size %d is not a multiple of 4", tableBytes)
	}
	count := int(tableBytes/4) - 1
	if count < 0 {
		return nil, fmt.Errorf("codebooklib: offset table has no sentinel entry")
	}

	offsets := make([]int64, count+1)
	raw := make([]byte, tableBytes)
	if _, err := r.ReadAt(raw, tableOffset); err != nil {
		return nil, fmt.Errorf("codebooklib: reading offset table: %w", err)
	}
	for i := range offsets {
		offsets[i] = int64(binary.LittleEndian.Uint32(raw[i*4 : i*4+4]))
	}

	return &Library{r: r, offsets: offsets}, nil
}

// Count reports how many codebooks the library holds.
func (l *Library) Count() int {
	if len(l.offsets) == 0 {
		return 0
	}
	return len(l.offsets) - 1
}

// Codebook returns the raw stripped bytes of codebook i.
func (l *Library) Codebook(i int) ([]byte, error) {
	if i < 0 || i >= l.Count() {
		return nil, fmt.Errorf("codebooklib: index %d out of range [0, %d)", i, l.Count())
	}
	start, end := l.offsets[i], l.offsets[i+1]
	if end < start {
		return nil, fmt.Errorf("codebooklib: codebook %d has a negative-length range [%d, %d)", i, start, end)
	}
	buf := make([]byte, end-start)
	if _, err := l.r.ReadAt(buf, start); err != nil {
		return nil, fmt.Errorf("codebooklib: reading codebook %d: %w", i, err)
	}
	return buf, nil
}
