package feature

import "unicode/utf16"

const bucketSeparator = "-"

// Bucket maps a user and a feature to a stable integer in [0,99].
//
// The digest is a 32-bit rolling hash (h = h*31 + c, wrapping at every step)
// over the UTF-16 code units of userID + "-" + featureName, so results match
// buckets produced by JavaScript clients using charCodeAt. The value never
// changes for the same inputs.
func Bucket(userID, featureName string) int {
	var h int32
	mix := func(c rune) {
		h = (h << 5) - h + int32(c)
	}
	for _, s := range [...]string{userID, bucketSeparator, featureName} {
		for _, r := range s {
			if r >= 0x10000 {
				hi, lo := utf16.EncodeRune(r)
				mix(hi)
				mix(lo)
				continue
			}
			mix(r)
		}
	}

	// abs in 64 bits: -MinInt32 does not fit in int32.
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return int(v % 100)
}
