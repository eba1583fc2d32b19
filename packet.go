// Copyright 2015, David Howden
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ww2ogg

import "io"

// packetFraming selects how Wwise frames each audio packet header (spec
// §4.E). The container's vorb flags pick one of these per conversion.
type packetFraming int

const (
	// framingModernGranule is the default 6-byte header: 2-byte size,
	// 4-byte granule.
	framingModernGranule packetFraming = iota
	// framingModernNoGranule is the 2-byte header used when the vorb
	// flags report noGranule; the caller synthesizes the granule.
	framingModernNoGranule
	// framingLegacy is the 8-byte header: 4-byte size, 4-byte granule.
	framingLegacy
)

// wwisePacket is the framing this converter needs from one Wwise audio (or
// header) packet: where its payload starts, how big it is, its reported
// granule, and where the next packet's header begins.
type wwisePacket struct {
	payloadOffset int64
	size          int64
	granule       uint32
	nextOffset    int64
}

// readPacketFrame reads one packet header at offset using framing f, and
// returns the decoded frame (spec §4.E). The caller supplies the
// container's endian so that legacy/modern headers are read with the same
// byte order as the rest of the RIFF file.
func readPacketFrame(r io.ReaderAt, en endian, f packetFraming, offset int64) (wwisePacket, error) {
	switch f {
	case framingLegacy:
		sr := io.NewSectionReader(r, offset, 8)
		size, err := en.uint32(sr)
		if err != nil {
			return wwisePacket{}, parseErrWrap(err, "reading legacy packet size at offset %d", offset)
		}
		granule, err := en.uint32(sr)
		if err != nil {
			return wwisePacket{}, parseErrWrap(err, "reading legacy packet granule at offset %d", offset)
		}
		payloadOffset := offset + 8
		return wwisePacket{
			payloadOffset: payloadOffset,
			size:          int64(size),
			granule:       granule,
			nextOffset:    payloadOffset + int64(size),
		}, nil

	case framingModernNoGranule:
		sr := io.NewSectionReader(r, offset, 2)
		size, err := en.uint16(sr)
		if err != nil {
			return wwisePacket{}, parseErrWrap(err, "reading packet size at offset %d", offset)
		}
		payloadOffset := offset + 2
		return wwisePacket{
			payloadOffset: payloadOffset,
			size:          int64(size),
			granule:       0,
			nextOffset:    payloadOffset + int64(size),
		}, nil

	default: // framingModernGranule
		sr := io.NewSectionReader(r, offset, 6)
		size, err := en.uint16(sr)
		if err != nil {
			return wwisePacket{}, parseErrWrap(err, "reading packet size at offset %d", offset)
		}
		granule, err := en.uint32(sr)
		if err != nil {
			return wwisePacket{}, parseErrWrap(err, "reading packet granule at offset %d", offset)
		}
		payloadOffset := offset + 6
		return wwisePacket{
			payloadOffset: payloadOffset,
			size:          int64(size),
			granule:       granule,
			nextOffset:    payloadOffset + int64(size),
		}, nil
	}
}

// packetFramingFor derives the framing policy for audio packets from the
// container's vorb flags alone (spec §4.E; §6 "force_packet_format" only
// affects mod_packets detection, not framing width — framing width is
// purely a function of noGranule/headerTriad).
func packetFramingFor(v vorbChunk) packetFraming {
	if v.oldPacketHeaders {
		return framingLegacy
	}
	if v.noGranule {
		return framingModernNoGranule
	}
	return framingModernGranule
}
