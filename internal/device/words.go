package device

import "encoding/binary"

// WordSize is the size in bytes of one buffer element.
const WordSize = 4

// EncodeWords serialises words as a raw little-endian array with no header.
func EncodeWords(words []uint32) []byte {
	buf := make([]byte, len(words)*WordSize)
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[i*WordSize:], w)
	}
	return buf
}

// DecodeWords parses a raw little-endian array. Trailing bytes that do not
// form a whole word are ignored.
func DecodeWords(data []byte) []uint32 {
	words := make([]uint32, len(data)/WordSize)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[i*WordSize:])
	}
	return words
}
