package helpers

import "encoding/hex"

// MustHex is for literal byte fixtures, panics on malformed input.
func MustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic("code error MustHex: " + err.Error())
	}
	return b
}
