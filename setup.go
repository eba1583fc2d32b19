// Copyright 2015, David Howden
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ww2ogg

import "bytes"

// setupState carries the facts the audio rewriter needs out of the setup
// packet: how many bits a mode number occupies, and each mode's blockflag,
// so audio.go can decide window shape per packet (spec §4.H).
type setupState struct {
	modeCount     uint32
	modeBlockflag []bool
	modeBits      uint
}

// floorClass is one class entry of a floor1 configuration: its dimension,
// how many VQ subclasses it has, and the (masterbook, subclass books) pair
// used to decode it (spec §4.G "Floor1").
type floorClass struct {
	dim        uint32
	subclasses uint32
	masterbook uint32
	books      []uint32
}

// codebookMode selects how writeOneCodebook consumes each codebook entry.
type codebookMode int

const (
	// codebookModeLibrary reads a 10-bit library index and rebuilds from
	// the looked-up stripped codebook.
	codebookModeLibrary codebookMode = iota
	// codebookModeInline rebuilds directly from stripped bits inline in
	// the setup stream, no index prefix.
	codebookModeInline
	// codebookModeCopy passes through a codebook already in standard
	// Vorbis form.
	codebookModeCopy
)

// setupConfig controls one writeSetupHeader call. mode picks the codebook
// dispatch; copyStructure, when true, skips the floor/residue/mapping/mode
// rebuild and copies the remainder of the packet verbatim (spec §4.G step
// 4, and the triad-present codebook-copy override of §4.I).
type setupConfig struct {
	codebooks     CodebookSource
	mode          codebookMode
	copyStructure bool
}

// optionsToSetupConfig derives the non-triad setupConfig from the public
// Options (spec §6 "inline_codebooks", "full_setup").
func optionsToSetupConfig(opts Options) setupConfig {
	cfg := setupConfig{codebooks: opts.Codebooks, copyStructure: opts.FullSetup}
	switch {
	case opts.FullSetup:
		cfg.mode = codebookModeCopy
	case opts.InlineCodebooks:
		cfg.mode = codebookModeInline
	default:
		cfg.mode = codebookModeLibrary
	}
	return cfg
}

// writeSetupHeader rewrites one Wwise-compact setup packet, read bit-by-bit
// from br, into a standard Vorbis setup header written to bw (spec §4.G).
// packetBits is the declared setup packet size in bits, used to bound the
// verbatim structure copy and to confirm the packet was consumed exactly.
func writeSetupHeader(br *bitReader, bw *pageWriter, cfg setupConfig, packetBits uint64) (*setupState, error) {
	bw.writeBits(5, 8)
	for _, ch := range "vorbis" {
		bw.writeBits(uint32(ch), 8)
	}

	countMinus1, err := br.readBits(8)
	if err != nil {
		return nil, err
	}
	bw.writeBits(countMinus1, 8)
	codebookCount := countMinus1 + 1

	for i := uint32(0); i < codebookCount; i++ {
		if err := writeOneCodebook(br, bw, cfg); err != nil {
			return nil, err
		}
	}

	// time_count - 1 = 0, plus the single 16-bit placeholder entry; Wwise
	// drops the time domain transform entirely since only type 0 ever
	// existed in shipped Vorbis.
	bw.writeBits(0, 6)
	bw.writeBits(0, 16)

	if cfg.copyStructure {
		for br.totalBitsRead() < packetBits-1 {
			bit, err := br.readBit()
			if err != nil {
				return nil, err
			}
			bw.writeBit(bit)
		}
		framing, err := br.readBit()
		if err != nil {
			return nil, err
		}
		if framing != 1 {
			return nil, parseErr("setup packet framing bit is %d, expected 1", framing)
		}
		bw.writeBit(1)
		if err := bw.flushPage(false, false); err != nil {
			return nil, err
		}
		return &setupState{}, nil
	}

	floorCount, residueCount, mappingCount := uint32(1), uint32(1), uint32(1)

	// floor_count - 1 = 0, then the single floor's 16-bit type (always 1).
	bw.writeBits(0, 6)
	bw.writeBits(1, 16)
	if err := writeFloor1(br, bw, codebookCount); err != nil {
		return nil, err
	}

	// residue_count - 1 = 0.
	bw.writeBits(0, 6)
	if err := writeResidue(br, bw, codebookCount); err != nil {
		return nil, err
	}

	// mapping_count - 1 = 0, then the single mapping's 16-bit type (always 0).
	bw.writeBits(0, 6)
	bw.writeBits(0, 16)
	if err := writeMapping(br, bw, floorCount, residueCount); err != nil {
		return nil, err
	}

	state, err := writeModes(br, bw, mappingCount)
	if err != nil {
		return nil, err
	}
	if (br.totalBitsRead()+7)/8 != packetBits/8 {
		return nil, parseErr("setup packet rewrite consumed %d bits, declared packet is %d bits", br.totalBitsRead(), packetBits)
	}

	bw.writeBit(1) // framing
	if err := bw.flushPage(false, false); err != nil {
		return nil, err
	}
	return state, nil
}

// writeOneCodebook dispatches one codebook entry to the stripped rebuild,
// the inline stripped rebuild, or the verbatim copy path, per cfg.mode
// (spec §4.F, §4.G "codebook dispatch").
func writeOneCodebook(br *bitReader, bw *pageWriter, cfg setupConfig) error {
	switch cfg.mode {
	case codebookModeCopy:
		return copyCodebook(br, bw)
	case codebookModeInline:
		return rebuildCodebook(br, -1, bw)
	default:
		libIndex, err := br.readBits(10)
		if err != nil {
			return err
		}
		if libIndex == 0x342 {
			if payload, perr := br.peekBits(14); perr == nil && payload == 0x1590 {
				return codebookErr("library index 0x342 looks like inline codebook data, not a real index (try --inline-codebooks or --full-setup)")
			}
		}
		if cfg.codebooks == nil || int(libIndex) >= cfg.codebooks.Count() {
			return &InvalidCodebookIDError{ID: int(libIndex)}
		}
		raw, err := cfg.codebooks.Codebook(int(libIndex))
		if err != nil {
			return err
		}
		sub := newBitReader(bytes.NewReader(raw))
		return rebuildCodebook(sub, len(raw), bw)
	}
}

// writeFloor1 rewrites one floor1 configuration (spec §4.G "Floor1").
func writeFloor1(br *bitReader, bw *pageWriter, codebookCount uint32) error {
	partitions, err := br.readBits(5)
	if err != nil {
		return err
	}
	bw.writeBits(partitions, 5)

	classNumber := make([]uint32, partitions)
	var maxClass uint32
	for i := uint32(0); i < partitions; i++ {
		cn, err := br.readBits(4)
		if err != nil {
			return err
		}
		bw.writeBits(cn, 4)
		classNumber[i] = cn
		if cn > maxClass {
			maxClass = cn
		}
	}

	classes := make([]floorClass, maxClass+1)
	for c := uint32(0); c <= maxClass; c++ {
		dim, err := br.readBits(3)
		if err != nil {
			return err
		}
		bw.writeBits(dim, 3)

		subclasses, err := br.readBits(2)
		if err != nil {
			return err
		}
		bw.writeBits(subclasses, 2)

		var masterbook uint32
		if subclasses != 0 {
			masterbook, err = br.readBits(8)
			if err != nil {
				return err
			}
			bw.writeBits(masterbook, 8)
			if masterbook >= codebookCount {
				return codebookErr("floor1 masterbook %d is not a valid codebook (count %d)", masterbook, codebookCount)
			}
		}

		n := uint32(1) << subclasses
		books := make([]uint32, n)
		for k := uint32(0); k < n; k++ {
			book, err := br.readBits(8)
			if err != nil {
				return err
			}
			bw.writeBits(book, 8)
			if book != 0 && book-1 >= codebookCount {
				return codebookErr("floor1 subclass book %d is not a valid codebook (count %d)", book-1, codebookCount)
			}
			books[k] = book
		}

		classes[c] = floorClass{dim: dim + 1, subclasses: subclasses, masterbook: masterbook, books: books}
	}

	multiplier, err := br.readBits(2)
	if err != nil {
		return err
	}
	bw.writeBits(multiplier, 2)

	rangebits, err := br.readBits(4)
	if err != nil {
		return err
	}
	bw.writeBits(rangebits, 4)

	for i := uint32(0); i < partitions; i++ {
		cls := classes[classNumber[i]]
		for d := uint32(0); d < cls.dim; d++ {
			v, err := br.readBits(uint(rangebits))
			if err != nil {
				return err
			}
			bw.writeBits(v, uint(rangebits))
		}
	}
	return nil
}

// writeResidue rewrites one residue configuration (spec §4.G "Residue").
func writeResidue(br *bitReader, bw *pageWriter, codebookCount uint32) error {
	residueType, err := br.readBits(2)
	if err != nil {
		return err
	}
	if residueType > 2 {
		return parseErr("residue type %d is not supported (max 2)", residueType)
	}
	bw.writeBits(residueType, 16)

	begin, err := br.readBits(24)
	if err != nil {
		return err
	}
	bw.writeBits(begin, 24)

	end, err := br.readBits(24)
	if err != nil {
		return err
	}
	bw.writeBits(end, 24)

	partitionSize, err := br.readBits(24)
	if err != nil {
		return err
	}
	bw.writeBits(partitionSize, 24)

	classificationsMinus1, err := br.readBits(6)
	if err != nil {
		return err
	}
	bw.writeBits(classificationsMinus1, 6)
	classifications := classificationsMinus1 + 1

	classbook, err := br.readBits(8)
	if err != nil {
		return err
	}
	bw.writeBits(classbook, 8)
	if classbook >= codebookCount {
		return codebookErr("residue classbook %d is not a valid codebook (count %d)", classbook, codebookCount)
	}

	cascade := make([]uint32, classifications)
	for i := uint32(0); i < classifications; i++ {
		low, err := br.readBits(3)
		if err != nil {
			return err
		}
		bw.writeBits(low, 3)

		flag, err := br.readBits(1)
		if err != nil {
			return err
		}
		bw.writeBits(flag, 1)

		var high uint32
		if flag != 0 {
			high, err = br.readBits(5)
			if err != nil {
				return err
			}
			bw.writeBits(high, 5)
		}
		cascade[i] = high*8 + low
	}

	for i := uint32(0); i < classifications; i++ {
		for b := uint(0); b < 8; b++ {
			if cascade[i]&(1<<b) == 0 {
				continue
			}
			book, err := br.readBits(8)
			if err != nil {
				return err
			}
			bw.writeBits(book, 8)
			if book >= codebookCount {
				return codebookErr("residue book %d is not a valid codebook (count %d)", book, codebookCount)
			}
		}
	}
	return nil
}

// writeMapping rewrites one mapping configuration (spec §4.G "Mapping").
// floorCount/residueCount bound the submap floor_number/residue_number
// references; the coupling-step and mux channel bounds come from
// mappingChannelsHint, which the orchestrator sets from the container's fmt
// chunk before calling writeSetupHeader.
func writeMapping(br *bitReader, bw *pageWriter, floorCount, residueCount uint32) error {
	submapsFlag, err := br.readBits(1)
	if err != nil {
		return err
	}
	bw.writeBits(submapsFlag, 1)

	submaps := uint32(1)
	if submapsFlag != 0 {
		submapsMinus1, err := br.readBits(4)
		if err != nil {
			return err
		}
		bw.writeBits(submapsMinus1, 4)
		submaps = submapsMinus1 + 1
	}

	squarePolarFlag, err := br.readBits(1)
	if err != nil {
		return err
	}
	bw.writeBits(squarePolarFlag, 1)

	if squarePolarFlag != 0 {
		stepsMinus1, err := br.readBits(8)
		if err != nil {
			return err
		}
		bw.writeBits(stepsMinus1, 8)
		steps := stepsMinus1 + 1

		angleBits := uint(ilog(mappingChannelsHint - 1))
		for i := uint32(0); i < steps; i++ {
			magnitude, err := br.readBits(angleBits)
			if err != nil {
				return err
			}
			bw.writeBits(magnitude, angleBits)

			angle, err := br.readBits(angleBits)
			if err != nil {
				return err
			}
			bw.writeBits(angle, angleBits)

			if magnitude == angle || magnitude >= mappingChannelsHint || angle >= mappingChannelsHint {
				return parseErr("mapping coupling step %d references invalid channels (%d, %d)", i, magnitude, angle)
			}
		}
	}

	reserved, err := br.readBits(2)
	if err != nil {
		return err
	}
	if reserved != 0 {
		return parseErr("mapping reserved bits are %d, expected 0", reserved)
	}
	bw.writeBits(0, 2)

	if submaps > 1 {
		for ch := uint32(0); ch < mappingChannelsHint; ch++ {
			mux, err := br.readBits(4)
			if err != nil {
				return err
			}
			bw.writeBits(mux, 4)
			if mux >= submaps {
				return parseErr("mapping mux entry %d references invalid submap %d (count %d)", ch, mux, submaps)
			}
		}
	}

	for i := uint32(0); i < submaps; i++ {
		timeConfig, err := br.readBits(8)
		if err != nil {
			return err
		}
		bw.writeBits(timeConfig, 8)

		floorNumber, err := br.readBits(8)
		if err != nil {
			return err
		}
		bw.writeBits(floorNumber, 8)
		if floorNumber >= floorCount {
			return parseErr("mapping submap %d references invalid floor %d (count %d)", i, floorNumber, floorCount)
		}

		residueNumber, err := br.readBits(8)
		if err != nil {
			return err
		}
		bw.writeBits(residueNumber, 8)
		if residueNumber >= residueCount {
			return parseErr("mapping submap %d references invalid residue %d (count %d)", i, residueNumber, residueCount)
		}
	}
	return nil
}

// mappingChannelsHint bounds coupling-step and mux channel references in
// writeMapping. The converter only ever rewrites the single mapping Wwise
// emits, and that mapping's channel count always matches the container's
// fmt chunk; the orchestrator assigns this package variable before calling
// writeSetupHeader for a given conversion (spec §5: one conversion runs to
// completion before another starts, so this is never shared concurrently).
var mappingChannelsHint uint32 = 2

// writeModes rewrites the mode list and returns the blockflag/mode_bits
// state the audio rewriter consults per-packet (spec §4.G "Modes", §4.H).
func writeModes(br *bitReader, bw *pageWriter, mappingCount uint32) (*setupState, error) {
	modeCountMinus1, err := br.readBits(6)
	if err != nil {
		return nil, err
	}
	bw.writeBits(modeCountMinus1, 6)
	modeCount := modeCountMinus1 + 1

	blockflags := make([]bool, modeCount)
	for i := uint32(0); i < modeCount; i++ {
		blockflag, err := br.readBits(1)
		if err != nil {
			return nil, err
		}
		bw.writeBits(blockflag, 1)
		blockflags[i] = blockflag != 0

		bw.writeBits(0, 16) // windowtype, always 0
		bw.writeBits(0, 16) // transformtype, always 0

		mapping, err := br.readBits(8)
		if err != nil {
			return nil, err
		}
		bw.writeBits(mapping, 8)
		if mapping >= mappingCount {
			return nil, parseErr("mode %d references invalid mapping %d (count %d)", i, mapping, mappingCount)
		}
	}

	return &setupState{
		modeCount:     modeCount,
		modeBlockflag: blockflags,
		modeBits:      uint(ilog(modeCount - 1)),
	}, nil
}
