// Copyright 2015, David Howden
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ww2ogg

import (
	"bytes"
	"io"
)

// chunkRef is the offset/size pair the chunk index maps a four-byte tag to
// (spec §3 "Chunk index").
type chunkRef struct {
	offset int64
	size   int64
}

// fmtChunk carries the fields of the RIFF "fmt " chunk relevant to a Wwise
// Vorbis payload (spec §3).
type fmtChunk struct {
	codecID        uint16
	channels       uint16
	sampleRate     uint32
	avgBytesPerSec uint32
	blockAlign     uint16
	bitsPerSample  uint16
	extraSize      uint16
	size           int64
}

// vorbChunk carries the Wwise-specific "vorb" fields, whether they came
// from a real "vorb" chunk or were synthesized from an extended "fmt "
// chunk (spec §3, boundary behavior "fmt_size = 0x42 with vorb absent").
type vorbChunk struct {
	sampleCount            uint32
	modSignal              uint32
	setupPacketOffset      uint32
	firstAudioPacketOffset uint32
	uid                    uint32
	blocksize0Pow          uint8
	blocksize1Pow          uint8

	noGranule          bool
	modPacketsDefault  bool
	headerTriadPresent bool
	oldPacketHeaders   bool
}

// loopInfo is the normalized "smpl" loop (spec §3).
type loopInfo struct {
	loopStart uint32
	loopEnd   uint32
}

// container is the parsed RIFF/RIFX shell: chunk index plus the decoded
// fmt/vorb/smpl content the rest of the converter needs (spec §4.D).
type container struct {
	en       endian
	size     int64
	chunks   map[string]chunkRef
	fmtc     fmtChunk
	vorb     vorbChunk
	loop     *loopInfo
	dataRef  chunkRef
	cueCount int
}

// standardModSignals are the vorb+4 values that indicate a standard
// (non-mod) packet layout (spec §3 "mod_packets").
var standardModSignals = map[uint32]bool{
	0x4A: true,
	0x4B: true,
	0x69: true,
	0x70: true,
}

// parseContainer reads the RIFF/RIFX header and chunk index from r, which
// must expose the whole file (random-access, read-only, spec §5).
func parseContainer(r io.ReaderAt, size int64) (*container, error) {
	sr := io.NewSectionReader(r, 0, size)

	magic, err := readString(sr, 4)
	if err != nil {
		return nil, parseErrWrap(err, "reading RIFF magic")
	}

	var en endian
	switch magic {
	case "RIFF":
		en = endian{rifx: false}
	case "RIFX":
		en = endian{rifx: true}
	default:
		return nil, parseErr("magic %q is neither RIFF nor RIFX", magic)
	}

	declared, err := en.uint32(sr)
	if err != nil {
		return nil, parseErrWrap(err, "reading RIFF size")
	}
	if int64(declared)+8 > size {
		return nil, parseErr("declared RIFF size %d exceeds file size %d", int64(declared)+8, size)
	}

	form, err := readString(sr, 4)
	if err != nil {
		return nil, parseErrWrap(err, "reading RIFF form type")
	}
	if form != "WAVE" {
		return nil, parseErr("form type %q does not match expected 'WAVE'", form)
	}

	c := &container{
		en:     en,
		size:   size,
		chunks: make(map[string]chunkRef),
	}

	riffEnd := int64(declared) + 8
	offset := int64(12)
	for offset < riffEnd {
		if offset+8 > size {
			return nil, parseErr("truncated chunk header at offset %d", offset)
		}
		hdr := io.NewSectionReader(r, offset, 8)
		tag, err := readString(hdr, 4)
		if err != nil {
			return nil, parseErrWrap(err, "reading chunk tag at offset %d", offset)
		}
		rawSize, err := en.uint32(hdr)
		if err != nil {
			return nil, parseErrWrap(err, "reading chunk size at offset %d", offset)
		}
		payloadOffset := offset + 8
		payloadSize := int64(rawSize)
		if payloadOffset+payloadSize > riffEnd {
			return nil, parseErr("chunk %q at offset %d extends past the RIFF boundary", tag, offset)
		}

		c.chunks[tag] = chunkRef{offset: payloadOffset, size: payloadSize}

		next := payloadOffset + payloadSize
		if payloadSize%2 == 1 {
			next++
		}
		offset = next
	}

	fmtRef, ok := c.chunks["fmt "]
	if !ok {
		return nil, parseErr("missing required 'fmt ' chunk")
	}
	dataRef, ok := c.chunks["data"]
	if !ok {
		return nil, parseErr("missing required 'data' chunk")
	}
	c.dataRef = dataRef

	if err := c.parseFmt(r, fmtRef); err != nil {
		return nil, err
	}

	vorbRef, hasVorb := c.chunks["vorb"]
	switch {
	case hasVorb:
		if err := c.parseVorb(r, vorbRef, vorbRef.size); err != nil {
			return nil, err
		}
	case c.fmtc.size == 0x42:
		virtual := chunkRef{offset: fmtRef.offset + 0x18, size: 0x2A}
		if err := c.parseVorb(r, virtual, -1); err != nil {
			return nil, err
		}
	default:
		return nil, parseErr("no 'vorb' chunk and fmt size %#x does not carry embedded vorb fields", c.fmtc.size)
	}

	if cueRef, ok := c.chunks["cue "]; ok {
		cueSR := io.NewSectionReader(r, cueRef.offset, cueRef.size)
		count, err := en.uint32(cueSR)
		if err != nil {
			return nil, parseErrWrap(err, "reading cue count")
		}
		c.cueCount = int(count)
	}

	if smplRef, ok := c.chunks["smpl"]; ok {
		if err := c.parseSmpl(r, smplRef); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func (c *container) parseFmt(r io.ReaderAt, ref chunkRef) error {
	sr := io.NewSectionReader(r, ref.offset, ref.size)

	switch ref.size {
	case 0x12, 0x18, 0x28, 0x42:
	default:
		return parseErr("unrecognized fmt chunk size %#x", ref.size)
	}

	codecID, err := c.en.uint16(sr)
	if err != nil {
		return parseErrWrap(err, "reading fmt codec id")
	}
	if codecID != 0xFFFF {
		return parseErr("fmt codec id %#x is not the Wwise sentinel 0xFFFF", codecID)
	}

	channels, err := c.en.uint16(sr)
	if err != nil {
		return parseErrWrap(err, "reading fmt channels")
	}
	sampleRate, err := c.en.uint32(sr)
	if err != nil {
		return parseErrWrap(err, "reading fmt sample rate")
	}
	avgBytesPerSec, err := c.en.uint32(sr)
	if err != nil {
		return parseErrWrap(err, "reading fmt avg bytes per second")
	}
	blockAlign, err := c.en.uint16(sr)
	if err != nil {
		return parseErrWrap(err, "reading fmt block align")
	}
	bitsPerSample, err := c.en.uint16(sr)
	if err != nil {
		return parseErrWrap(err, "reading fmt bits per sample")
	}

	var extraSize uint16
	if ref.size >= 0x12 {
		extraSize, err = c.en.uint16(sr)
		if err != nil {
			return parseErrWrap(err, "reading fmt extra size")
		}
	}

	if ref.size == 0x28 {
		guid, err := readBytes(sr, 16)
		if err != nil {
			return parseErrWrap(err, "reading fmt GUID signature")
		}
		if !bytes.Equal(guid, wwiseFmtGUID) {
			return parseErr("fmt GUID signature does not match the expected Wwise subformat")
		}
	}

	c.fmtc = fmtChunk{
		codecID:        codecID,
		channels:       channels,
		sampleRate:     sampleRate,
		avgBytesPerSec: avgBytesPerSec,
		blockAlign:     blockAlign,
		bitsPerSample:  bitsPerSample,
		extraSize:      extraSize,
		size:           ref.size,
	}
	return nil
}

// wwiseFmtGUID is the 16-byte subformat signature carried by the 0x28-byte
// extended fmt chunk (spec §3).
var wwiseFmtGUID = []byte{
	0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x10, 0x00,
	0x80, 0x00, 0x00, 0xAA, 0x00, 0x38, 0x9B, 0x71,
}

// parseVorb decodes the vorb fields at ref. declaredSize is the chunk's
// declared byte size as a signed value (spec §3's "-1, 0x28, 0x2A, 0x2C,
// 0x32, 0x34" selector); -1 and 0x2A share the "old", no-granule layout.
func (c *container) parseVorb(r io.ReaderAt, ref chunkRef, declaredSize int64) error {
	sr := io.NewSectionReader(r, ref.offset, ref.size)

	sampleCount, err := c.en.uint32(sr)
	if err != nil {
		return parseErrWrap(err, "reading vorb sample count")
	}
	modSignal, err := c.en.uint32(sr)
	if err != nil {
		return parseErrWrap(err, "reading vorb mod signal")
	}
	setupOffset, err := c.en.uint32(sr)
	if err != nil {
		return parseErrWrap(err, "reading vorb setup packet offset")
	}
	firstAudioOffset, err := c.en.uint32(sr)
	if err != nil {
		return parseErrWrap(err, "reading vorb first audio packet offset")
	}
	uid, err := c.en.uint32(sr)
	if err != nil {
		return parseErrWrap(err, "reading vorb uid")
	}
	blockSizes, err := readBytes(sr, 2)
	if err != nil {
		return parseErrWrap(err, "reading vorb block sizes")
	}

	noGranule := declaredSize == -1 || declaredSize == 0x2A
	headerTriad := declaredSize == 0x28 || declaredSize == 0x2C
	oldPacketHeaders := headerTriad

	c.vorb = vorbChunk{
		sampleCount:            sampleCount,
		modSignal:              modSignal,
		setupPacketOffset:      setupOffset,
		firstAudioPacketOffset: firstAudioOffset,
		uid:                    uid,
		blocksize0Pow:          blockSizes[0],
		blocksize1Pow:          blockSizes[1],
		noGranule:              noGranule,
		modPacketsDefault:      !standardModSignals[modSignal],
		headerTriadPresent:     headerTriad,
		oldPacketHeaders:       oldPacketHeaders,
	}
	return nil
}

func (c *container) parseSmpl(r io.ReaderAt, ref chunkRef) error {
	sr := io.NewSectionReader(r, ref.offset, ref.size)

	// manufacturer(4) product(4) samplePeriod(4) unityNote(4) pitchFraction(4)
	// smpteFormat(4) smpteOffset(4)
	if _, err := readBytes(sr, 28); err != nil {
		return parseErrWrap(err, "reading smpl preamble")
	}
	numLoops, err := c.en.uint32(sr)
	if err != nil {
		return parseErrWrap(err, "reading smpl loop count")
	}
	if _, err := readBytes(sr, 4); err != nil { // sampler data size
		return parseErrWrap(err, "reading smpl sampler data size")
	}
	if numLoops != 1 {
		return parseErr("smpl chunk declares %d loops, expected exactly 1", numLoops)
	}

	if _, err := readBytes(sr, 4); err != nil { // cue point id
		return parseErrWrap(err, "reading smpl loop cue point id")
	}
	if _, err := readBytes(sr, 4); err != nil { // loop type
		return parseErrWrap(err, "reading smpl loop type")
	}
	loopStart, err := c.en.uint32(sr)
	if err != nil {
		return parseErrWrap(err, "reading smpl loop start")
	}
	loopEnd, err := c.en.uint32(sr)
	if err != nil {
		return parseErrWrap(err, "reading smpl loop end")
	}

	if loopEnd == 0 {
		loopEnd = c.vorb.sampleCount
	} else {
		loopEnd++
	}

	if loopStart >= c.vorb.sampleCount || loopEnd > c.vorb.sampleCount || loopStart > loopEnd {
		return parseErr("smpl loop [%d, %d) is inconsistent with sample count %d", loopStart, loopEnd, c.vorb.sampleCount)
	}

	c.loop = &loopInfo{loopStart: loopStart, loopEnd: loopEnd}
	return nil
}
