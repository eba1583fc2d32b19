// Copyright 2015, David Howden
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ww2ogg

import "io"

// bitReader produces bits LSB-first from a byte source, the convention
// Vorbis uses for everything below the byte-aligned RIFF/Ogg header layer
// (spec §4.A, §9 "bit order asymmetry"). It is the mirror image of the
// teacher's MSB-first cutBits helper (util.go in the retrieved pack),
// rebuilt bit-at-a-time so it can be driven incrementally while rewriting
// the setup and audio packets.
type bitReader struct {
	r        io.Reader
	cur      byte
	bitsLeft uint
	total    uint64
	peeked   []uint32
}

func newBitReader(r io.Reader) *bitReader {
	return &bitReader{r: r}
}

// readBit returns the next bit, LSB of the current byte first. Bits queued
// by a prior peekBits are drained before any new bit is pulled from r.
func (b *bitReader) readBit() (uint32, error) {
	if len(b.peeked) > 0 {
		bit := b.peeked[0]
		b.peeked = b.peeked[1:]
		b.total++
		return bit, nil
	}
	if b.bitsLeft == 0 {
		buf := [1]byte{}
		if _, err := io.ReadFull(b.r, buf[:]); err != nil {
			return 0, EndOfStream
		}
		b.cur = buf[0]
		b.bitsLeft = 8
	}
	bit := uint32(b.cur & 1)
	b.cur >>= 1
	b.bitsLeft--
	b.total++
	return bit, nil
}

// peekBits reads n bits (n <= 32) and then requeues them so the next reads
// see the same bits again, leaving totalBitsRead unchanged. Used by the
// setup rewriter to inspect the 14 bits that follow a codebook's library
// index before deciding how to consume it (spec §4.G directed-error
// heuristic).
func (b *bitReader) peekBits(n uint) (uint32, error) {
	bits := make([]uint32, 0, n)
	var v uint32
	for i := uint(0); i < n; i++ {
		bit, err := b.readBit()
		if err != nil {
			for j := len(bits) - 1; j >= 0; j-- {
				b.peeked = append([]uint32{bits[j]}, b.peeked...)
			}
			b.total -= uint64(len(bits))
			return 0, err
		}
		bits = append(bits, bit)
		v |= bit << i
	}
	for j := len(bits) - 1; j >= 0; j-- {
		b.peeked = append([]uint32{bits[j]}, b.peeked...)
	}
	b.total -= uint64(n)
	return v, nil
}

// readBits composes n readBit calls (n <= 32), placing the first bit read
// at the LSB of the result.
func (b *bitReader) readBits(n uint) (uint32, error) {
	var v uint32
	for i := uint(0); i < n; i++ {
		bit, err := b.readBit()
		if err != nil {
			return 0, err
		}
		v |= bit << i
	}
	return v, nil
}

// totalBitsRead reports the number of bits consumed so far.
func (b *bitReader) totalBitsRead() uint64 {
	return b.total
}

// alignToByte discards any partially-consumed byte, so the next read
// starts at a fresh byte boundary.
func (b *bitReader) alignToByte() {
	b.bitsLeft = 0
	b.cur = 0
}
