package ww2ogg

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// buildModernGranulePacket appends one framingModernGranule packet (2-byte
// LE size, 4-byte LE granule, payload) to buf.
func buildModernGranulePacket(buf *bytes.Buffer, granule uint32, payload []byte) {
	binary.Write(buf, binary.LittleEndian, uint16(len(payload)))
	binary.Write(buf, binary.LittleEndian, granule)
	buf.Write(payload)
}

func TestWriteAudioPacketsGranulePassthrough(t *testing.T) {
	var data bytes.Buffer
	buildModernGranulePacket(&data, 512, []byte{0x01})
	buildModernGranulePacket(&data, granuleSentinel, []byte{0x02})
	raw := data.Bytes()

	c := &container{
		en:      endian{order: binary.LittleEndian},
		dataRef: chunkRef{offset: 0, size: int64(len(raw))},
		vorb:    vorbChunk{blocksize0Pow: 8, blocksize1Pow: 11},
	}

	var out bytes.Buffer
	bw := newPageWriter(&out, 1)
	if err := writeAudioPackets(bytes.NewReader(raw), c, framingModernGranule, false, nil, bw); err != nil {
		t.Fatalf("writeAudioPackets failed: %v", err)
	}

	pages := splitOggPages(t, out.Bytes())
	if len(pages) != 2 {
		t.Fatalf("got %d pages, want 2", len(pages))
	}
	if g := pageGranule(pages[0]); g != 512 {
		t.Errorf("page 0 granule = %d, want 512", g)
	}
	if g := pageGranule(pages[1]); g != 1 {
		t.Errorf("page 1 granule = %d, want 1 (sentinel rewritten)", g)
	}
}

func TestWriteAudioPacketsNoGranuleAccumulation(t *testing.T) {
	var data bytes.Buffer
	buildModernGranulePacket(&data, 0, []byte{0x00, 0x00})
	buildModernGranulePacket(&data, 0, []byte{0x00, 0x00})
	buildModernGranulePacket(&data, 0, []byte{0x00, 0x00})
	raw := data.Bytes()

	c := &container{
		en:      endian{order: binary.LittleEndian},
		dataRef: chunkRef{offset: 0, size: int64(len(raw))},
		vorb:    vorbChunk{blocksize0Pow: 8, blocksize1Pow: 11, noGranule: true, sampleCount: 999},
	}

	var out bytes.Buffer
	bw := newPageWriter(&out, 1)
	if err := writeAudioPackets(bytes.NewReader(raw), c, framingModernGranule, false, nil, bw); err != nil {
		t.Fatalf("writeAudioPackets failed: %v", err)
	}

	pages := splitOggPages(t, out.Bytes())
	if len(pages) != 3 {
		t.Fatalf("got %d pages, want 3", len(pages))
	}
	if g := pageGranule(pages[0]); g != 0 {
		t.Errorf("first packet granule = %d, want 0 (priming, no accumulation)", g)
	}
	blocksize0 := uint64(1) << 8
	want := (blocksize0 + blocksize0) / 4
	if g := pageGranule(pages[1]); g != want {
		t.Errorf("second packet granule = %d, want %d", g, want)
	}
	if g := pageGranule(pages[2]); g != 999 {
		t.Errorf("last packet granule = %d, want sample_count 999", g)
	}
}

func TestWriteAudioPacketsModPacketsLongWindow(t *testing.T) {
	state := &setupState{
		modeCount:     2,
		modeBlockflag: []bool{false, true},
		modeBits:      1,
	}

	// packet 0: mode 0 (short), packet 1: mode 1 (long), packet 2: mode 0 (short)
	var data bytes.Buffer
	buildModernGranulePacket(&data, 100, []byte{0x00, 0xFF}) // mode bit 0 in bit 0
	buildModernGranulePacket(&data, 200, []byte{0x01, 0xFF}) // mode bit 1 in bit 0
	buildModernGranulePacket(&data, 300, []byte{0x00, 0xFF})
	raw := data.Bytes()

	c := &container{
		en:      endian{order: binary.LittleEndian},
		dataRef: chunkRef{offset: 0, size: int64(len(raw))},
		vorb:    vorbChunk{blocksize0Pow: 8, blocksize1Pow: 11},
	}

	var out bytes.Buffer
	bw := newPageWriter(&out, 1)
	if err := writeAudioPackets(bytes.NewReader(raw), c, framingModernGranule, true, state, bw); err != nil {
		t.Fatalf("writeAudioPackets failed: %v", err)
	}

	pages := splitOggPages(t, out.Bytes())
	if len(pages) != 3 {
		t.Fatalf("got %d pages, want 3", len(pages))
	}

	// packet 1 (long window) should carry packet-type(1) + mode(1) + prev(1) + next(1) = 4 header bits
	// prev_blockflag is false (packet 0 was short), next_blockflag is false (packet 2 is short).
	br := newBitReader(bytes.NewReader(pagePayload(pages[1])))
	packetType, _ := br.readBits(1)
	if packetType != 0 {
		t.Errorf("packet type bit = %d, want 0", packetType)
	}
	mode, _ := br.readBits(1)
	if mode != 1 {
		t.Errorf("mode bits = %d, want 1", mode)
	}
	prevFlag, _ := br.readBits(1)
	if prevFlag != 0 {
		t.Errorf("prev_blockflag = %d, want 0 (previous mode was short)", prevFlag)
	}
	nextFlag, _ := br.readBits(1)
	if nextFlag != 0 {
		t.Errorf("next_blockflag = %d, want 0 (next mode is short)", nextFlag)
	}
}

// splitOggPages walks a byte stream of concatenated Ogg pages and returns
// each page's raw bytes (header + segment table + payload).
func splitOggPages(t *testing.T, data []byte) [][]byte {
	t.Helper()
	var pages [][]byte
	for len(data) > 0 {
		if len(data) < 27 {
			t.Fatalf("truncated page header, %d bytes left", len(data))
		}
		segCount := int(data[26])
		headerLen := 27 + segCount
		if len(data) < headerLen {
			t.Fatalf("truncated segment table")
		}
		payloadLen := 0
		for _, s := range data[27:headerLen] {
			payloadLen += int(s)
		}
		pageLen := headerLen + payloadLen
		if len(data) < pageLen {
			t.Fatalf("truncated page payload")
		}
		pages = append(pages, data[:pageLen])
		data = data[pageLen:]
	}
	return pages
}

func pageGranule(page []byte) uint64 {
	return binary.LittleEndian.Uint64(page[6:14])
}

func pagePayload(page []byte) []byte {
	segCount := int(page[26])
	return page[27+segCount:]
}
