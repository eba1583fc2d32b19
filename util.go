// Copyright 2015, David Howden
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ww2ogg

import (
	"bytes"
	"encoding/binary"
	"io"
)

// readBytesMaxUpfront is the max up-front allocation allowed for a single
// readBytes call before falling back to a streaming copy.
const readBytesMaxUpfront = 10 << 20 // 10MB

func readBytes(r io.Reader, n uint) ([]byte, error) {
	if n > readBytesMaxUpfront {
		b := &bytes.Buffer{}
		if _, err := io.CopyN(b, r, int64(n)); err != nil {
			return nil, err
		}
		return b.Bytes(), nil
	}

	b := make([]byte, n)
	_, err := io.ReadFull(r, b)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func readString(r io.Reader, n uint) (string, error) {
	b, err := readBytes(r, n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func readUint16LittleEndian(r io.Reader) (uint16, error) {
	b, err := readBytes(r, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func readUint16BigEndian(r io.Reader) (uint16, error) {
	b, err := readBytes(r, 2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func readUint32LittleEndian(r io.Reader) (uint32, error) {
	b, err := readBytes(r, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func readUint32BigEndian(r io.Reader) (uint32, error) {
	b, err := readBytes(r, 4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// endian picks the byte order implied by the RIFF magic: "RIFF" is
// little-endian, "RIFX" is big-endian (spec §3).
type endian struct {
	order binary.ByteOrder
	rifx  bool
}

func (e endian) uint16(r io.Reader) (uint16, error) {
	if e.rifx {
		return readUint16BigEndian(r)
	}
	return readUint16LittleEndian(r)
}

func (e endian) uint32(r io.Reader) (uint32, error) {
	if e.rifx {
		return readUint32BigEndian(r)
	}
	return readUint32LittleEndian(r)
}

// ilog returns floor(log2(v))+1, i.e. the number of bits required to hold
// v, with ilog(0) == 0 (Vorbis I spec §9.2.1, spec.md §3).
func ilog(v uint32) uint {
	var bits uint
	for v != 0 {
		bits++
		v >>= 1
	}
	return bits
}

// quantvals implements book_map_type1_quantvals(entries, dimensions):
// the unique n such that n^dimensions <= entries < (n+1)^dimensions
// (spec §4.F).
func quantvals(entries, dimensions uint32) uint32 {
	bits := ilog(entries)
	shift := uint32(0)
	if bits > 0 {
		shift = uint32(((bits - 1) * uint(dimensions-1)) / uint(dimensions))
	}
	vals := entries >> shift

	for vals > 0 && ipow(vals, dimensions) > uint64(entries) {
		vals--
	}
	for ipow(vals+1, dimensions) <= uint64(entries) {
		vals++
	}
	return vals
}

func ipow(base, exp uint32) uint64 {
	result := uint64(1)
	b := uint64(base)
	for i := uint32(0); i < exp; i++ {
		result *= b
		if result > 1<<40 {
			// guards against overflow chasing an impossible quantval;
			// no real codebook has dimensions/entries anywhere near
			// this large.
			return result
		}
	}
	return result
}
