package bpe

import "github.com/pkg/errors"

// Sentinel error kinds, matched with errors.Is against the
// wrapped error chain.
var (
	// ErrUnknownEncodingName is returned by GetBpe for an unrecognized name.
	ErrUnknownEncodingName = errors.New("unknown encoding name")

	// ErrMalformedVocabulary is returned when a vocabulary load finds a
	// duplicate rank or a malformed line.
	ErrMalformedVocabulary = errors.New("malformed vocabulary")

	// ErrMalformedPattern is returned when a pre-tokenization pattern fails
	// to compile, or isn't usable as a global/multi-match pattern.
	ErrMalformedPattern = errors.New("malformed pre-tokenization pattern")

	// ErrUnknownToken is returned by Decode when a rank isn't registered in
	// either the regular or special-token decoder.
	ErrUnknownToken = errors.New("unknown token")
)
