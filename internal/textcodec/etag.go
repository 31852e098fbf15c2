package textcodec

import "hash/fnv"

// ETag computes the 64-bit fingerprint of canonical serialized bytes and
// wraps it as a strong HTTP entity tag. Shared by the iCalendar and vCard
// serializers so both protocols produce ETags the same way.
func ETag(canonical []byte) string {
	h := fnv.New64a()
	_, _ = h.Write(canonical)
	return quoteHex(h.Sum64())
}

func quoteHex(v uint64) string {
	const hexDigits = "0123456789abcdef"
	buf := make([]byte, 18)
	buf[0] = '"'
	buf[17] = '"'
	for i := 0; i < 16; i++ {
		shift := uint(60 - 4*i)
		buf[1+i] = hexDigits[(v>>shift)&0xF]
	}
	return string(buf)
}
