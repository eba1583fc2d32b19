// Copyright 2015, David Howden
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ww2ogg

import (
	"io"
)

// granuleSentinel is the reference converter's documented compatibility
// behavior: a source packet header reporting 0xFFFFFFFF is rewritten to a
// granule of 1, not passed through (spec §4.H, §9).
const granuleSentinel = 0xFFFFFFFF

// writeAudioPackets consumes every Wwise audio packet between
// firstAudioPacketOffset and the end of the data chunk, rewrites each as a
// standard Vorbis audio packet, and flushes one Ogg page per packet (spec
// §4.H). When the setup packet was copied via --full-setup, state holds no
// modes (spec §6 marks that incompatible with mod_packets) and every packet
// counts as a short-window mode 0. state may be nil only when modPackets is
// false.
func writeAudioPackets(r io.ReaderAt, c *container, framing packetFraming, modPackets bool, state *setupState, bw *pageWriter) error {
	dataEnd := c.dataRef.offset + c.dataRef.size
	offset := c.dataRef.offset + int64(c.vorb.firstAudioPacketOffset)

	blocksize0 := uint64(1) << c.vorb.blocksize0Pow
	blocksize1 := uint64(1) << c.vorb.blocksize1Pow

	var granule uint64
	var prevSize uint64
	var prevModeBlockflag bool
	first := true

	for offset < dataEnd {
		frame, err := readPacketFrame(r, c.en, framing, offset)
		if err != nil {
			return err
		}
		if frame.payloadOffset+frame.size > dataEnd {
			return parseErr("audio packet at offset %d overruns the data chunk", offset)
		}
		isLast := frame.nextOffset >= dataEnd

		payload := io.NewSectionReader(r, frame.payloadOffset, frame.size)

		var modeNumber uint32
		if state != nil && frame.size > 0 {
			modeNumber, err = peekModeNumber(payload, modPackets, state.modeBits)
			if err != nil {
				return err
			}
		}

		if c.vorb.noGranule {
			curr := blocksize0
			if state != nil && int(modeNumber) < len(state.modeBlockflag) && state.modeBlockflag[modeNumber] {
				curr = blocksize1
			}
			if first {
				prevSize = curr
			} else {
				granule += (prevSize + curr) / 4
				prevSize = curr
			}
			if isLast && c.vorb.sampleCount > 0 {
				bw.setGranule(uint64(c.vorb.sampleCount))
			} else {
				bw.setGranule(granule)
			}
		} else {
			if frame.granule == granuleSentinel {
				bw.setGranule(1)
			} else {
				bw.setGranule(uint64(frame.granule))
			}
		}
		first = false

		if modPackets {
			prevModeBlockflag, err = writeModPacketBody(payload, bw, r, c, framing, frame, dataEnd, state, prevModeBlockflag)
			if err != nil {
				return err
			}
		} else {
			if err := copyPacketBody(payload, bw, frame.size); err != nil {
				return err
			}
		}

		if err := bw.flushPage(false, isLast); err != nil {
			return err
		}

		offset = frame.nextOffset
	}
	return nil
}

// peekModeNumber extracts the mode number from a packet's first byte
// without disturbing payload, per spec §4.H's "offset 0 if mod_packets,
// shifted right by 1 otherwise" rule.
func peekModeNumber(payload *io.SectionReader, modPackets bool, modeBits uint) (uint32, error) {
	var buf [1]byte
	if _, err := payload.ReadAt(buf[:], 0); err != nil {
		return 0, parseErrWrap(err, "peeking packet mode byte")
	}
	v := uint32(buf[0])
	if !modPackets {
		v >>= 1
	}
	if modeBits >= 32 {
		return v, nil
	}
	return v & ((1 << modeBits) - 1), nil
}

// copyPacketBody copies a non-mod_packets payload byte-for-byte: the first
// byte already carries a real packet-type bit, so nothing is reconstructed
// (spec §4.H "Packet body").
func copyPacketBody(payload io.Reader, bw *pageWriter, size int64) error {
	if size == 0 {
		return nil
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(payload, buf); err != nil {
		return parseErrWrap(err, "reading packet payload")
	}
	bw.writeBytes(buf)
	return nil
}

// writeModPacketBody reconstructs a mod_packets audio packet: the real
// packet-type bit and, for long-window modes, the prev/next window bits
// that Wwise's compact layout omits (spec §4.H "Packet body"). It returns
// the blockflag the following packet should see as prevModeBlockflag.
func writeModPacketBody(payload *io.SectionReader, bw *pageWriter, r io.ReaderAt, c *container, framing packetFraming, frame wwisePacket, dataEnd int64, state *setupState, prevModeBlockflag bool) (bool, error) {
	bw.writeBits(0, 1) // packet type: audio

	if frame.size == 0 {
		return prevModeBlockflag, nil
	}

	br := newBitReader(payload)
	modeNumber, err := br.readBits(state.modeBits)
	if err != nil {
		return false, err
	}
	bw.writeBits(modeNumber, state.modeBits)

	remaining := 8 - state.modeBits
	var tail uint32
	if remaining > 0 {
		tail, err = br.readBits(remaining)
		if err != nil {
			return false, err
		}
	}

	isLong := int(modeNumber) < len(state.modeBlockflag) && state.modeBlockflag[modeNumber]
	if isLong {
		nextBlockflag, err := peekNextPacketBlockflag(r, c, framing, frame.nextOffset, dataEnd, state)
		if err != nil {
			return false, err
		}
		if prevModeBlockflag {
			bw.writeBits(1, 1)
		} else {
			bw.writeBits(0, 1)
		}
		if nextBlockflag {
			bw.writeBits(1, 1)
		} else {
			bw.writeBits(0, 1)
		}
	}

	if remaining > 0 {
		bw.writeBits(tail, remaining)
	}

	if frame.size > 1 {
		rest := make([]byte, frame.size-1)
		if _, err := io.ReadFull(payload, rest); err != nil {
			return false, parseErrWrap(err, "reading mod_packets payload tail")
		}
		for _, b := range rest {
			bw.writeBits(uint32(b), 8)
		}
	}
	return isLong, nil
}

// peekNextPacketBlockflag looks ahead to the following packet's mode to
// derive next_blockflag; it reports false when there is no next packet or
// it is empty (spec §4.H "Packet body", §9 "cyclic peek").
func peekNextPacketBlockflag(r io.ReaderAt, c *container, framing packetFraming, nextOffset, dataEnd int64, state *setupState) (bool, error) {
	if nextOffset >= dataEnd {
		return false, nil
	}
	nextFrame, err := readPacketFrame(r, c.en, framing, nextOffset)
	if err != nil {
		return false, err
	}
	if nextFrame.size == 0 {
		return false, nil
	}
	sr := io.NewSectionReader(r, nextFrame.payloadOffset, nextFrame.size)
	modeNumber, err := peekModeNumber(sr, true, state.modeBits)
	if err != nil {
		return false, err
	}
	return int(modeNumber) < len(state.modeBlockflag) && state.modeBlockflag[modeNumber], nil
}
