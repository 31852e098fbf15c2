package vcard

import "github.com/sonroyaalmerol/go-davcore/internal/textcodec"

// ETag computes the strong entity tag for canonical serialized bytes.
func ETag(canonical []byte) string {
	return textcodec.ETag(canonical)
}
