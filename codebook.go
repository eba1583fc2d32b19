// Copyright 2015, David Howden
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ww2ogg

// vorbisCodebookSync is the 24-bit "BCV" identifier every standard Vorbis
// codebook begins with (spec §4.F).
const vorbisCodebookSync = 0x564342

// CodebookSource is the lookup interface the core consumes from a packed
// codebook library loader. Only this interface crosses the boundary
// described in spec.md §1 ("the on-disk codebook library file format
// loader... only its lookup interface is consumed") — the file format
// itself lives in the sibling codebooklib package.
type CodebookSource interface {
	// Codebook returns the raw stripped bytes of codebook i.
	Codebook(i int) ([]byte, error)
	// Count reports how many codebooks the source holds.
	Count() int
}

// rebuildCodebook reads one Wwise-compact stripped codebook from br and
// writes a standard Vorbis codebook to bw (spec §4.F "Stripped rebuild").
// If codebookSize is >= 0, the library's declared byte length for this
// codebook is checked against the (deliberately off-by-one) rebuilt size.
func rebuildCodebook(br *bitReader, codebookSize int, bw *pageWriter) error {
	dimensions, err := br.readBits(4)
	if err != nil {
		return err
	}
	entries, err := br.readBits(14)
	if err != nil {
		return err
	}

	bw.writeBits(vorbisCodebookSync, 24)
	bw.writeBits(dimensions, 16)
	bw.writeBits(entries, 24)

	ordered, err := br.readBits(1)
	if err != nil {
		return err
	}
	bw.writeBits(ordered, 1)

	if ordered == 1 {
		initialLength, err := br.readBits(5)
		if err != nil {
			return err
		}
		bw.writeBits(initialLength, 5)

		var current uint32
		for current < entries {
			bits := uint(ilog(entries - current))
			number, err := br.readBits(bits)
			if err != nil {
				return err
			}
			bw.writeBits(number, bits)
			current += number
			if current > entries {
				return codebookErr("ordered codebook entry run overruns entry count (%d > %d)", current, entries)
			}
		}
	} else {
		codewordLengthLength, err := br.readBits(3)
		if err != nil {
			return err
		}
		if codewordLengthLength < 1 || codewordLengthLength > 5 {
			return codebookErr("codeword length length %d outside [1,5]", codewordLengthLength)
		}
		sparse, err := br.readBits(1)
		if err != nil {
			return err
		}
		bw.writeBits(sparse, 1)

		for i := uint32(0); i < entries; i++ {
			present := uint32(1)
			if sparse == 1 {
				present, err = br.readBits(1)
				if err != nil {
					return err
				}
				bw.writeBits(present, 1)
			}
			if present == 0 {
				continue
			}
			length, err := br.readBits(uint(codewordLengthLength))
			if err != nil {
				return err
			}
			bw.writeBits(length, 5)
		}
	}

	if err := rewriteLookupTable(br, bw, entries, dimensions); err != nil {
		return err
	}

	if codebookSize >= 0 {
		computed := int(br.totalBitsRead()/8) + 1
		if computed != codebookSize {
			return &SizeMismatchError{Expected: codebookSize, Actual: computed}
		}
	}
	return nil
}

// rewriteLookupTable handles the VQ lookup table of a stripped codebook for
// rebuildCodebook (copyCodebook reads a 4-bit type and uses
// copyType1Lookup instead): 1-bit input type rewritten to a 4-bit output type,
// type 0 carries no payload, type 1 carries min/max/value_length/
// sequence_flag plus book_map_type1_quantvals(entries, dimensions) packed
// values (spec §4.F).
func rewriteLookupTable(br *bitReader, bw *pageWriter, entries, dimensions uint32) error {
	lookupType, err := br.readBits(1)
	if err != nil {
		return err
	}
	bw.writeBits(lookupType, 4)

	switch lookupType {
	case 0:
		return nil
	case 1:
		min, err := br.readBits(32)
		if err != nil {
			return err
		}
		max, err := br.readBits(32)
		if err != nil {
			return err
		}
		valueLength, err := br.readBits(4)
		if err != nil {
			return err
		}
		sequenceFlag, err := br.readBits(1)
		if err != nil {
			return err
		}
		bw.writeBits(min, 32)
		bw.writeBits(max, 32)
		bw.writeBits(valueLength, 4)
		bw.writeBits(sequenceFlag, 1)

		n := quantvals(entries, dimensions)
		width := uint(valueLength + 1)
		for i := uint32(0); i < n; i++ {
			v, err := br.readBits(width)
			if err != nil {
				return err
			}
			bw.writeBits(v, width)
		}
		return nil
	default:
		return codebookErr("unsupported lookup type %d", lookupType)
	}
}

// copyCodebook passes through a codebook that is already in standard
// Vorbis form — inline codebooks when --full-setup is in effect, or
// legacy-triad header copies (spec §4.F "Passthrough copy").
func copyCodebook(br *bitReader, bw *pageWriter) error {
	sync, err := br.readBits(24)
	if err != nil {
		return err
	}
	if sync != vorbisCodebookSync {
		return codebookErr("codebook sync %#x does not match expected 'BCV' identifier", sync)
	}
	bw.writeBits(sync, 24)

	dimensions, err := br.readBits(16)
	if err != nil {
		return err
	}
	bw.writeBits(dimensions, 16)

	entries, err := br.readBits(24)
	if err != nil {
		return err
	}
	bw.writeBits(entries, 24)

	ordered, err := br.readBits(1)
	if err != nil {
		return err
	}
	bw.writeBits(ordered, 1)

	if ordered == 1 {
		initialLength, err := br.readBits(5)
		if err != nil {
			return err
		}
		bw.writeBits(initialLength, 5)

		var current uint32
		for current < entries {
			bits := uint(ilog(entries - current))
			number, err := br.readBits(bits)
			if err != nil {
				return err
			}
			bw.writeBits(number, bits)
			current += number
			if current > entries {
				return codebookErr("ordered codebook entry run overruns entry count (%d > %d)", current, entries)
			}
		}
	} else {
		sparse, err := br.readBits(1)
		if err != nil {
			return err
		}
		bw.writeBits(sparse, 1)

		for i := uint32(0); i < entries; i++ {
			present := uint32(1)
			if sparse == 1 {
				present, err = br.readBits(1)
				if err != nil {
					return err
				}
				bw.writeBits(present, 1)
			}
			if present == 0 {
				continue
			}
			length, err := br.readBits(5)
			if err != nil {
				return err
			}
			bw.writeBits(length, 5)
		}
	}

	lookupType, err := br.readBits(4)
	if err != nil {
		return err
	}
	if lookupType == 2 {
		return codebookErr("lookup type 2 is not supported")
	}
	bw.writeBits(lookupType, 4)

	switch lookupType {
	case 0:
		return nil
	case 1:
		return copyType1Lookup(br, bw, entries, dimensions)
	default:
		return codebookErr("unsupported lookup type %d", lookupType)
	}
}

func copyType1Lookup(br *bitReader, bw *pageWriter, entries, dimensions uint32) error {
	min, err := br.readBits(32)
	if err != nil {
		return err
	}
	max, err := br.readBits(32)
	if err != nil {
		return err
	}
	valueLength, err := br.readBits(4)
	if err != nil {
		return err
	}
	sequenceFlag, err := br.readBits(1)
	if err != nil {
		return err
	}
	bw.writeBits(min, 32)
	bw.writeBits(max, 32)
	bw.writeBits(valueLength, 4)
	bw.writeBits(sequenceFlag, 1)

	n := quantvals(entries, dimensions)
	width := uint(valueLength + 1)
	for i := uint32(0); i < n; i++ {
		v, err := br.readBits(width)
		if err != nil {
			return err
		}
		bw.writeBits(v, width)
	}
	return nil
}
