package ww2ogg

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// riffBuilder assembles a minimal Wwise RIFF/RIFX container byte-for-byte,
// mirroring the chunk layout parseContainer expects (spec §3).
type riffBuilder struct {
	order binary.ByteOrder
	magic string

	channels       uint16
	sampleRate     uint32
	avgBytesPerSec uint32
	blocksize0Pow  byte
	blocksize1Pow  byte

	fmtSize uint32 // 0x12, 0x18, 0x28, 0x42

	vorbSize          int64 // -1 means omit the vorb chunk entirely
	modSignal         uint32
	setupOffset       uint32
	firstAudioOffset  uint32
	uid               uint32
	sampleCount       uint32

	loopStart, loopEnd *uint32

	cueEntries []uint32 // nil means omit the cue chunk

	data []byte
}

func (b *riffBuilder) writeFmt(chunks *bytes.Buffer) {
	var payload bytes.Buffer
	binary.Write(&payload, b.order, uint16(0xFFFF)) // codec id
	binary.Write(&payload, b.order, b.channels)
	binary.Write(&payload, b.order, b.sampleRate)
	binary.Write(&payload, b.order, b.avgBytesPerSec)
	binary.Write(&payload, b.order, uint16(0)) // block align
	binary.Write(&payload, b.order, uint16(0)) // bits per sample
	binary.Write(&payload, b.order, uint16(b.fmtSize-0x12))

	if b.fmtSize == 0x42 {
		// pad out to fmt+0x18, then write the vorb-equivalent fields inline.
		for payload.Len() < 0x18 {
			payload.WriteByte(0)
		}
		binary.Write(&payload, b.order, b.sampleCount)
		binary.Write(&payload, b.order, b.modSignal)
		binary.Write(&payload, b.order, b.setupOffset)
		binary.Write(&payload, b.order, b.firstAudioOffset)
		binary.Write(&payload, b.order, b.uid)
		payload.WriteByte(b.blocksize0Pow)
		payload.WriteByte(b.blocksize1Pow)
	} else if b.fmtSize == 0x28 {
		payload.Write(wwiseFmtGUID)
	}
	for uint32(payload.Len()) < b.fmtSize {
		payload.WriteByte(0)
	}

	writeChunk(chunks, b.order, "fmt ", payload.Bytes())
}

func (b *riffBuilder) writeVorb(chunks *bytes.Buffer) {
	if b.vorbSize < 0 {
		return
	}
	var payload bytes.Buffer
	binary.Write(&payload, b.order, b.sampleCount)
	binary.Write(&payload, b.order, b.modSignal)
	binary.Write(&payload, b.order, b.setupOffset)
	binary.Write(&payload, b.order, b.firstAudioOffset)
	binary.Write(&payload, b.order, b.uid)
	payload.WriteByte(b.blocksize0Pow)
	payload.WriteByte(b.blocksize1Pow)
	for int64(payload.Len()) < b.vorbSize {
		payload.WriteByte(0)
	}
	writeChunk(chunks, b.order, "vorb", payload.Bytes())
}

func (b *riffBuilder) writeSmpl(chunks *bytes.Buffer) {
	if b.loopStart == nil {
		return
	}
	var payload bytes.Buffer
	payload.Write(make([]byte, 28)) // preamble
	binary.Write(&payload, b.order, uint32(1))
	binary.Write(&payload, b.order, uint32(0)) // sampler data size
	binary.Write(&payload, b.order, uint32(0)) // cue point id
	binary.Write(&payload, b.order, uint32(0)) // loop type
	binary.Write(&payload, b.order, *b.loopStart)
	binary.Write(&payload, b.order, *b.loopEnd)
	writeChunk(chunks, b.order, "smpl", payload.Bytes())
}

func (b *riffBuilder) writeCue(chunks *bytes.Buffer) {
	if b.cueEntries == nil {
		return
	}
	var payload bytes.Buffer
	binary.Write(&payload, b.order, uint32(len(b.cueEntries)))
	for _, p := range b.cueEntries {
		binary.Write(&payload, b.order, p)
	}
	writeChunk(chunks, b.order, "cue ", payload.Bytes())
}

func writeChunk(buf *bytes.Buffer, order binary.ByteOrder, tag string, payload []byte) {
	buf.WriteString(tag)
	binary.Write(buf, order, uint32(len(payload)))
	buf.Write(payload)
	if len(payload)%2 == 1 {
		buf.WriteByte(0)
	}
}

func (b *riffBuilder) build() []byte {
	var chunks bytes.Buffer
	b.writeFmt(&chunks)
	b.writeVorb(&chunks)
	b.writeCue(&chunks)
	b.writeSmpl(&chunks)
	writeChunk(&chunks, b.order, "data", b.data)

	var out bytes.Buffer
	out.WriteString(b.magic)
	binary.Write(&out, b.order, uint32(4+chunks.Len())) // "WAVE" + chunks
	out.WriteString("WAVE")
	out.Write(chunks.Bytes())
	return out.Bytes()
}

func minimalBuilder() *riffBuilder {
	return &riffBuilder{
		order:            binary.LittleEndian,
		magic:            "RIFF",
		channels:         1,
		sampleRate:       48000,
		avgBytesPerSec:   6000,
		blocksize0Pow:    8,
		blocksize1Pow:    11,
		fmtSize:          0x18,
		vorbSize:         0x34,
		modSignal:        0x4A,
		setupOffset:      0,
		firstAudioOffset: 10,
		uid:              1,
		sampleCount:      1000,
		data:             make([]byte, 64),
	}
}

func TestParseContainer_MinimalHappyPath(t *testing.T) {
	raw := minimalBuilder().build()
	c, err := parseContainer(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		t.Fatalf("parseContainer failed: %v", err)
	}
	if c.fmtc.channels != 1 {
		t.Errorf("channels = %d, want 1", c.fmtc.channels)
	}
	if c.vorb.noGranule {
		t.Error("noGranule = true for vorb size 0x34, want false")
	}
	if c.vorb.headerTriadPresent {
		t.Error("headerTriadPresent = true for vorb size 0x34, want false")
	}
	if c.vorb.modPacketsDefault {
		t.Error("modPacketsDefault = true for modSignal 0x4A, want false")
	}
}

func TestParseContainer_RIFXBigEndian(t *testing.T) {
	b := minimalBuilder()
	b.order = binary.BigEndian
	b.magic = "RIFX"
	raw := b.build()

	c, err := parseContainer(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		t.Fatalf("parseContainer failed: %v", err)
	}
	if !c.en.rifx {
		t.Error("expected rifx endian to be recorded")
	}
	if c.fmtc.sampleRate != 48000 {
		t.Errorf("sampleRate = %d, want 48000", c.fmtc.sampleRate)
	}
}

func TestParseContainer_BadMagic(t *testing.T) {
	b := minimalBuilder()
	b.magic = "RIFQ"
	raw := b.build()
	if _, err := parseContainer(bytes.NewReader(raw), int64(len(raw))); err == nil {
		t.Fatal("expected error for bad magic, got nil")
	}
}

func TestParseContainer_MissingFmt(t *testing.T) {
	var chunks bytes.Buffer
	writeChunk(&chunks, binary.LittleEndian, "data", make([]byte, 8))

	var out bytes.Buffer
	out.WriteString("RIFF")
	binary.Write(&out, binary.LittleEndian, uint32(4+chunks.Len()))
	out.WriteString("WAVE")
	out.Write(chunks.Bytes())

	raw := out.Bytes()
	if _, err := parseContainer(bytes.NewReader(raw), int64(len(raw))); err == nil {
		t.Fatal("expected error for missing fmt chunk, got nil")
	}
}

func TestParseContainer_NoGranuleVorbSize(t *testing.T) {
	b := minimalBuilder()
	b.vorbSize = 0x2A
	raw := b.build()

	c, err := parseContainer(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		t.Fatalf("parseContainer failed: %v", err)
	}
	if !c.vorb.noGranule {
		t.Error("noGranule = false for vorb size 0x2A, want true")
	}
}

func TestParseContainer_ModPacketsDetection(t *testing.T) {
	b := minimalBuilder()
	b.modSignal = 0x1234
	raw := b.build()

	c, err := parseContainer(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		t.Fatalf("parseContainer failed: %v", err)
	}
	if !c.vorb.modPacketsDefault {
		t.Error("modPacketsDefault = false for an unrecognized modSignal, want true")
	}
}

func TestParseContainer_ExtendedFmtVirtualVorb(t *testing.T) {
	b := minimalBuilder()
	b.fmtSize = 0x42
	b.vorbSize = -1
	raw := b.build()

	c, err := parseContainer(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		t.Fatalf("parseContainer failed: %v", err)
	}
	if c.vorb.sampleCount != 1000 {
		t.Errorf("sampleCount = %d, want 1000 (synthesized from fmt+0x18)", c.vorb.sampleCount)
	}
}

func TestParseContainer_SmplLoopNormalization(t *testing.T) {
	b := minimalBuilder()
	start, end := uint32(10), uint32(0)
	b.loopStart, b.loopEnd = &start, &end
	raw := b.build()

	c, err := parseContainer(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		t.Fatalf("parseContainer failed: %v", err)
	}
	if c.loop == nil {
		t.Fatal("expected loop info to be populated")
	}
	if c.loop.loopEnd != c.vorb.sampleCount {
		t.Errorf("loopEnd = %d, want sampleCount %d (loop_end==0 normalization)", c.loop.loopEnd, c.vorb.sampleCount)
	}
}

func TestParseContainer_SmplLoopEndIncrement(t *testing.T) {
	b := minimalBuilder()
	start, end := uint32(10), uint32(500)
	b.loopStart, b.loopEnd = &start, &end
	raw := b.build()

	c, err := parseContainer(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		t.Fatalf("parseContainer failed: %v", err)
	}
	if c.loop.loopEnd != 501 {
		t.Errorf("loopEnd = %d, want 501 (loop_end+1)", c.loop.loopEnd)
	}
}

func TestParseContainer_CueZeroEntries(t *testing.T) {
	b := minimalBuilder()
	b.cueEntries = []uint32{}
	raw := b.build()

	c, err := parseContainer(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		t.Fatalf("parseContainer failed: %v", err)
	}
	if c.cueCount != 0 {
		t.Errorf("cueCount = %d, want 0", c.cueCount)
	}
}
