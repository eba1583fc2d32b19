// Copyright 2015, David Howden
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ww2ogg

import (
	"encoding/binary"
	"io"
)

// maxPagePayload is the largest payload a single Ogg page can carry: 255
// segments of 255 bytes each (spec §4.B).
const maxPagePayload = 255 * 255

// oggCRC32Poly04c11db7 is the precomputed CRC table for Ogg's fixed,
// non-reflected CRC32 (poly 0x04c11db7, spec §4.C). Kept as a package-level
// once-computed table per spec §9 ("use a precomputed 256-entry table
// initialized once; the table is pure data, not stateful") — the same
// table construction the teacher already carries in its Ogg reader.
var oggCRC32Poly04c11db7 = oggCRCTable(0x04c11db7)

type crc32Table [256]uint32

func oggCRCTable(poly uint32) *crc32Table {
	var t crc32Table

	for i := 0; i < 256; i++ {
		crc := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if crc&0x80000000 != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc <<= 1
			}
		}
		t[i] = crc
	}

	return &t
}

func oggCRCUpdate(crc uint32, tab *crc32Table, p []byte) uint32 {
	for _, v := range p {
		crc = (crc << 8) ^ tab[byte(crc>>24)^v]
	}
	return crc
}

// pageWriter is an LSB-first bit sink that packs bits into bytes, segments
// bytes into Ogg pages, and emits them with a correct lacing table and
// CRC32 (spec §4.B, §4.C). One pageWriter drives one logical Ogg stream
// with a fixed serial number, per spec §5 (no shared state across
// conversions).
type pageWriter struct {
	w      io.Writer
	serial uint32
	seq    uint32

	granule uint64

	payload []byte
	curByte byte
	curBits uint
}

func newPageWriter(w io.Writer, serial uint32) *pageWriter {
	return &pageWriter{w: w, serial: serial}
}

// writeBit pushes a single LSB-first bit into the pending payload buffer.
func (p *pageWriter) writeBit(bit uint32) {
	if bit&1 != 0 {
		p.curByte |= 1 << p.curBits
	}
	p.curBits++
	if p.curBits == 8 {
		p.payload = append(p.payload, p.curByte)
		p.curByte = 0
		p.curBits = 0
	}
}

// writeBits pushes the low n bits of v, LSB first.
func (p *pageWriter) writeBits(v uint32, n uint) {
	for i := uint(0); i < n; i++ {
		p.writeBit((v >> i) & 1)
	}
}

// writeBytes appends whole bytes directly to the pending payload, used for
// verbatim packet-body copies once any bit-level header has been written
// and byte-aligned.
func (p *pageWriter) writeBytes(b []byte) {
	p.flushPendingByte()
	p.payload = append(p.payload, b...)
}

// flushPendingByte pads and commits a partially-written byte, so the
// payload buffer always holds whole bytes between packets.
func (p *pageWriter) flushPendingByte() {
	if p.curBits > 0 {
		p.payload = append(p.payload, p.curByte)
		p.curByte = 0
		p.curBits = 0
	}
}

// setGranule sets the granule position to be written in the next emitted
// page header; it is sticky across flushes that emit no page (spec §4.B).
func (p *pageWriter) setGranule(g uint64) {
	p.granule = g
}

// flushPage byte-aligns any pending bits and, if the payload is non-empty,
// emits exactly one Ogg page (spec §4.B). continued sets the "continued"
// flag of the page this call emits; last marks the true final page of the
// logical stream.
func (p *pageWriter) flushPage(continued, last bool) error {
	p.flushPendingByte()
	if len(p.payload) == 0 {
		return nil
	}
	if len(p.payload) > maxPagePayload {
		return parseErr("ogg page payload of %d bytes exceeds the %d byte maximum", len(p.payload), maxPagePayload)
	}

	segments, err := laceSegments(p.payload)
	if err != nil {
		return err
	}

	header := make([]byte, 27+len(segments))
	copy(header[0:4], "OggS")
	header[4] = 0 // version

	var flags byte
	if continued {
		flags |= 0x1
	}
	if p.seq == 0 {
		flags |= 0x2
	}
	if last {
		flags |= 0x4
	}
	header[5] = flags

	binary.LittleEndian.PutUint64(header[6:14], p.granule)
	binary.LittleEndian.PutUint32(header[14:18], p.serial)
	binary.LittleEndian.PutUint32(header[18:22], p.seq)
	// header[22:26] (CRC) left zero for the checksum pass below.
	header[26] = byte(len(segments))
	copy(header[27:], segments)

	page := make([]byte, 0, len(header)+len(p.payload))
	page = append(page, header...)
	page = append(page, p.payload...)

	crc := oggCRCUpdate(0, oggCRC32Poly04c11db7, page)
	binary.LittleEndian.PutUint32(page[22:26], crc)

	if _, err := p.w.Write(page); err != nil {
		return err
	}

	p.payload = p.payload[:0]
	p.seq++
	return nil
}

// laceSegments builds the segment table for a page payload: s-1 bytes of
// 255 followed by a terminating byte of payload_len mod 255, except the
// exact-maximum case (255 segments of 255, 65025 bytes total) which has no
// terminator and must be followed by a continued page (spec §4.B, §8).
func laceSegments(payload []byte) ([]byte, error) {
	n := len(payload)
	full := n / 255
	rem := n % 255

	if rem == 0 && full == 255 {
		segs := make([]byte, 255)
		for i := range segs {
			segs[i] = 255
		}
		return segs, nil
	}

	segs := make([]byte, full+1)
	for i := 0; i < full; i++ {
		segs[i] = 255
	}
	segs[full] = byte(rem)
	return segs, nil
}
