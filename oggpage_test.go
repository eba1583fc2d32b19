package ww2ogg

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestLaceSegmentsShortPayload(t *testing.T) {
	segs, err := laceSegments(make([]byte, 10))
	if err != nil {
		t.Fatal(err)
	}
	if len(segs) != 1 || segs[0] != 10 {
		t.Errorf("segments = %v, want [10]", segs)
	}
}

func TestLaceSegmentsExactMultiple(t *testing.T) {
	segs, err := laceSegments(make([]byte, 510)) // 2*255, no terminator case doesn't apply here
	if err != nil {
		t.Fatal(err)
	}
	if len(segs) != 3 || segs[0] != 255 || segs[1] != 255 || segs[2] != 0 {
		t.Errorf("segments = %v, want [255 255 0]", segs)
	}
}

func TestLaceSegmentsMaxPagePayload(t *testing.T) {
	segs, err := laceSegments(make([]byte, maxPagePayload))
	if err != nil {
		t.Fatal(err)
	}
	if len(segs) != 255 {
		t.Fatalf("len(segments) = %d, want 255", len(segs))
	}
	for i, s := range segs {
		if s != 255 {
			t.Errorf("segments[%d] = %d, want 255 (no terminator for exact-max payload)", i, s)
		}
	}
}

func TestPageWriterCRCAndSequencing(t *testing.T) {
	var out bytes.Buffer
	pw := newPageWriter(&out, 1)
	pw.writeBytes([]byte("hello"))
	if err := pw.flushPage(false, false); err != nil {
		t.Fatal(err)
	}
	pw.writeBytes([]byte("world"))
	if err := pw.flushPage(false, true); err != nil {
		t.Fatal(err)
	}

	data := out.Bytes()

	page1Len := 27 + 1 + 5
	verifyPageCRC(t, data[:page1Len])
	if data[4] != 0 {
		t.Errorf("page 1 version = %d, want 0", data[4])
	}
	if data[5]&0x2 == 0 {
		t.Error("page 1 missing first-page-of-stream flag")
	}
	if seq := binary.LittleEndian.Uint32(data[18:22]); seq != 0 {
		t.Errorf("page 1 sequence = %d, want 0", seq)
	}

	page2 := data[page1Len:]
	verifyPageCRC(t, page2)
	if page2[5]&0x4 == 0 {
		t.Error("page 2 missing last-page-of-stream flag")
	}
	if seq := binary.LittleEndian.Uint32(page2[18:22]); seq != 1 {
		t.Errorf("page 2 sequence = %d, want 1", seq)
	}
}

func verifyPageCRC(t *testing.T, page []byte) {
	t.Helper()
	stored := binary.LittleEndian.Uint32(page[22:26])
	cleared := make([]byte, len(page))
	copy(cleared, page)
	binary.LittleEndian.PutUint32(cleared[22:26], 0)
	computed := oggCRCUpdate(0, oggCRC32Poly04c11db7, cleared)
	if computed != stored {
		t.Errorf("computed CRC %#x != stored CRC %#x", computed, stored)
	}
}

func TestPageWriterEmptyFlushEmitsNoPage(t *testing.T) {
	var out bytes.Buffer
	pw := newPageWriter(&out, 1)
	if err := pw.flushPage(false, false); err != nil {
		t.Fatal(err)
	}
	if out.Len() != 0 {
		t.Errorf("flushing an empty payload wrote %d bytes, want 0", out.Len())
	}
}

func TestPageWriterBitWritesPackLSBFirst(t *testing.T) {
	var out bytes.Buffer
	pw := newPageWriter(&out, 1)
	pw.writeBits(0xB2, 8)
	if err := pw.flushPage(false, false); err != nil {
		t.Fatal(err)
	}
	data := out.Bytes()
	payload := data[27+1:]
	if payload[0] != 0xB2 {
		t.Errorf("payload byte = %#x, want 0xb2", payload[0])
	}
}
