// Copyright 2015, David Howden
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ww2ogg

import "fmt"

// Kind classifies the failure modes a conversion can raise, per the error
// taxonomy the reference converter uses to let callers decide whether a
// retry (e.g. with a different codebook library) is sensible.
type Kind int

const (
	// KindFileOpen means the input or an auxiliary resource (codebook
	// library) could not be opened.
	KindFileOpen Kind = iota
	// KindParse means the container or bitstream failed a structural
	// check: bad magic, truncated chunk, inconsistent setup-to-audio
	// transition, and so on.
	KindParse
	// KindCodebook means the bytes parsed but are semantically
	// inconsistent with the codebook library in use — the library is
	// probably wrong, not the input.
	KindCodebook
	// KindEndOfStream means the bit source was exhausted mid-read.
	KindEndOfStream
)

func (k Kind) String() string {
	switch k {
	case KindFileOpen:
		return "FileOpen"
	case KindParse:
		return "Parse"
	case KindCodebook:
		return "Codebook"
	case KindEndOfStream:
		return "EndOfStream"
	default:
		return "Unknown"
	}
}

// Error is the error type returned across the conversion boundary. It
// always carries a Kind so a caller can pattern-match on failure class
// without parsing message text.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func fileOpenErr(name string, err error) error {
	return &Error{Kind: KindFileOpen, Msg: fmt.Sprintf("cannot open %q", name), Err: err}
}

func parseErr(format string, a ...any) error {
	return &Error{Kind: KindParse, Msg: fmt.Sprintf(format, a...)}
}

func parseErrWrap(err error, format string, a ...any) error {
	return &Error{Kind: KindParse, Msg: fmt.Sprintf(format, a...), Err: err}
}

func codebookErr(format string, a ...any) error {
	return &Error{Kind: KindCodebook, Msg: fmt.Sprintf(format, a...)}
}

// InvalidCodebookIDError is a Codebook-kind error that additionally carries
// the offending library index, so a caller can surface "try
// --inline-codebooks" the way the reference tool does.
type InvalidCodebookIDError struct {
	ID int
}

func (e *InvalidCodebookIDError) Error() string {
	return fmt.Sprintf("Codebook: invalid codebook id %d in library (try --inline-codebooks or --full-setup)", e.ID)
}

func (e *InvalidCodebookIDError) Kind() Kind { return KindCodebook }

// SizeMismatchError is a Codebook-kind error raised when a rebuilt stripped
// codebook does not consume the number of bytes the library declared for
// it (spec §4.F, §8 invariant 6).
type SizeMismatchError struct {
	Expected int
	Actual   int
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("Codebook: size mismatch, expected %d bytes, rebuilt %d", e.Expected, e.Actual)
}

func (e *SizeMismatchError) Kind() Kind { return KindCodebook }

// EndOfStream is returned by the bit reader when the backing source is
// exhausted mid-read.
var EndOfStream = &Error{Kind: KindEndOfStream, Msg: "end of stream"}
