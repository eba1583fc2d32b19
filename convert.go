// Copyright 2015, David Howden
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ww2ogg

import (
	"fmt"
	"io"
)

// ForcePacketFormat overrides the autodetected mod_packets flag (spec §6
// "force_packet_format").
type ForcePacketFormat int

const (
	// ForcePacketFormatAuto keeps the container's autodetected mod_packets
	// flag (spec §3 "mod_packets").
	ForcePacketFormatAuto ForcePacketFormat = iota
	// ForcePacketFormatMod forces mod_packets on regardless of vorb+4.
	ForcePacketFormatMod
	// ForcePacketFormatNoMod forces mod_packets off regardless of vorb+4.
	ForcePacketFormatNoMod
)

// Options carries the external configuration surface a conversion accepts
// (spec §6 "Configuration options").
type Options struct {
	// InlineCodebooks skips library lookup; each setup codebook is
	// rebuilt from its inline stripped form.
	InlineCodebooks bool
	// FullSetup copies the setup packet's floor/residue/mapping/mode
	// section verbatim after the codebooks, instead of rewriting it.
	// Incompatible with mod_packets audio packets.
	FullSetup bool
	// ForcePacketFormat overrides autodetection of mod_packets.
	ForcePacketFormat ForcePacketFormat
	// Codebooks is consulted when codebooks are library-indexed (neither
	// InlineCodebooks nor FullSetup). May be nil if the input never
	// references a library codebook.
	Codebooks CodebookSource
}

// vendorString is the fixed Vorbis comment vendor string every synthesized
// comment header carries (spec §4.I, §6 "Vendor string fixed").
const vendorString = "converted from Audiokinetic Wwise by ww2ogg-core"

// Convert reads one Wwise RIFF/RIFX Vorbis container from r (size bytes
// total, random-access) and writes a standard Ogg Vorbis stream to w (spec
// §4.I, §5: one conversion per call, no shared state across calls).
func Convert(r io.ReaderAt, size int64, w io.Writer, opts Options) error {
	c, err := parseContainer(r, size)
	if err != nil {
		return err
	}

	mappingChannelsHint = uint32(c.fmtc.channels)
	if mappingChannelsHint == 0 {
		mappingChannelsHint = 1
	}

	modPackets := resolveModPackets(c.vorb, opts.ForcePacketFormat)

	bw := newPageWriter(w, 1)

	var state *setupState
	if c.vorb.headerTriadPresent {
		state, err = copyHeaderTriad(r, c, bw, opts)
	} else {
		state, err = synthesizeHeaderTriad(r, c, bw, opts)
	}
	if err != nil {
		return err
	}

	framing := packetFramingFor(c.vorb)
	return writeAudioPackets(r, c, framing, modPackets, state, bw)
}

// resolveModPackets applies force to the container's autodetected
// mod_packets flag (spec §6 "force_packet_format").
func resolveModPackets(v vorbChunk, force ForcePacketFormat) bool {
	switch force {
	case ForcePacketFormatMod:
		return true
	case ForcePacketFormatNoMod:
		return false
	default:
		return v.modPacketsDefault
	}
}

// synthesizeHeaderTriad builds the identification, comment, and setup pages
// from scratch (spec §4.I "Synthesized triad").
func synthesizeHeaderTriad(r io.ReaderAt, c *container, bw *pageWriter, opts Options) (*setupState, error) {
	if err := writeIdentificationPage(c, bw); err != nil {
		return nil, err
	}
	if err := writeCommentPage(c, bw); err != nil {
		return nil, err
	}

	setupOffset := c.dataRef.offset + int64(c.vorb.setupPacketOffset)
	framing := packetFramingFor(c.vorb)
	frame, err := readPacketFrame(r, c.en, framing, setupOffset)
	if err != nil {
		return nil, err
	}

	sr := io.NewSectionReader(r, frame.payloadOffset, frame.size)
	br := newBitReader(sr)
	return writeSetupHeader(br, bw, optionsToSetupConfig(opts), uint64(frame.size)*8)
}

// copyHeaderTriad copies the three Vorbis header packets verbatim from the
// container; the setup header's codebooks are still rebuilt via a
// passthrough copy regardless of opts.FullSetup (spec §4.I "Triad-present").
func copyHeaderTriad(r io.ReaderAt, c *container, bw *pageWriter, opts Options) (*setupState, error) {
	base := c.dataRef.offset

	idFrame, err := readPacketFrame(r, c.en, framingLegacy, base)
	if err != nil {
		return nil, err
	}
	if err := copyHeaderPacket(r, idFrame, 1, bw); err != nil {
		return nil, err
	}

	commentFrame, err := readPacketFrame(r, c.en, framingLegacy, idFrame.nextOffset)
	if err != nil {
		return nil, err
	}
	if err := copyHeaderPacket(r, commentFrame, 3, bw); err != nil {
		return nil, err
	}

	setupFrame, err := readPacketFrame(r, c.en, framingLegacy, commentFrame.nextOffset)
	if err != nil {
		return nil, err
	}

	sync := make([]byte, 1)
	if _, err := r.ReadAt(sync, setupFrame.payloadOffset); err != nil {
		return nil, parseErrWrap(err, "reading setup packet type byte")
	}
	if sync[0] != 5 {
		return nil, parseErr("triad-present setup packet type byte is %d, expected 5", sync[0])
	}

	sr := io.NewSectionReader(r, setupFrame.payloadOffset, setupFrame.size)
	br := newBitReader(sr)
	if _, err := br.readBits(8); err != nil { // consume the packet-type byte; re-emitted unconditionally below
		return nil, err
	}
	for i := 0; i < 6; i++ { // consume "vorbis"; re-emitted unconditionally below
		if _, err := br.readBits(8); err != nil {
			return nil, err
		}
	}

	cfg := setupConfig{codebooks: opts.Codebooks, mode: codebookModeCopy, copyStructure: opts.FullSetup}
	return writeSetupHeader(br, bw, cfg, uint64(setupFrame.size)*8)
}

// copyHeaderPacket validates a triad-present header packet's type byte and
// zero granule, then copies it verbatim onto its own page.
func copyHeaderPacket(r io.ReaderAt, frame wwisePacket, wantType byte, bw *pageWriter) error {
	if frame.granule != 0 {
		return parseErr("triad-present header packet granule is %d, expected 0", frame.granule)
	}
	buf := make([]byte, frame.size)
	if _, err := r.ReadAt(buf, frame.payloadOffset); err != nil {
		return parseErrWrap(err, "reading triad-present header packet")
	}
	if len(buf) == 0 || buf[0] != wantType {
		return parseErr("triad-present header packet type byte is %v, expected %d", buf, wantType)
	}
	bw.writeBytes(buf)
	bw.setGranule(0)
	return bw.flushPage(false, false)
}

// writeIdentificationPage emits the synthesized Vorbis identification
// packet on its own page (spec §4.I).
func writeIdentificationPage(c *container, bw *pageWriter) error {
	bw.writeBits(1, 8)
	for _, ch := range "vorbis" {
		bw.writeBits(uint32(ch), 8)
	}
	bw.writeBits(0, 32) // vorbis_version
	bw.writeBits(uint32(c.fmtc.channels), 8)
	bw.writeBits(c.fmtc.sampleRate, 32)
	bw.writeBits(0, 32) // bitrate_maximum
	bw.writeBits(c.fmtc.avgBytesPerSec*8, 32)
	bw.writeBits(0, 32) // bitrate_minimum
	bw.writeBits(uint32(c.vorb.blocksize0Pow), 4)
	bw.writeBits(uint32(c.vorb.blocksize1Pow), 4)
	bw.writeBits(1, 1) // framing
	bw.setGranule(0)
	return bw.flushPage(false, false)
}

// writeCommentPage emits the synthesized Vorbis comment packet, including
// LoopStart/LoopEnd user comments when the container carries loop info
// (spec §4.I).
func writeCommentPage(c *container, bw *pageWriter) error {
	bw.writeBits(3, 8)
	for _, ch := range "vorbis" {
		bw.writeBits(uint32(ch), 8)
	}

	writeVorbisString(bw, vendorString)

	var comments []string
	if c.loop != nil {
		comments = append(comments,
			fmt.Sprintf("LoopStart=%d", c.loop.loopStart),
			fmt.Sprintf("LoopEnd=%d", c.loop.loopEnd),
		)
	}

	bw.writeBits(uint32(len(comments)), 32)
	for _, comment := range comments {
		writeVorbisString(bw, comment)
	}

	bw.writeBits(1, 1) // framing
	bw.setGranule(0)
	return bw.flushPage(false, false)
}

// writeVorbisString writes a length-prefixed (32-bit) byte string, the
// encoding every Vorbis comment field (vendor and user comments) shares.
func writeVorbisString(bw *pageWriter, s string) {
	bw.writeBits(uint32(len(s)), 32)
	for i := 0; i < len(s); i++ {
		bw.writeBits(uint32(s[i]), 8)
	}
}
