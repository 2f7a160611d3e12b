package sourcemap

import (
	"errors"
	"fmt"
)

const (
	base64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

	vlqBaseShift       = 5
	vlqBase            = 1 << vlqBaseShift
	vlqBaseMask        = vlqBase - 1
	vlqContinuationBit = vlqBase
)

var errBadVLQ = errors.New("invalid base64 VLQ")

var base64Index = func() [256]int8 {
	var idx [256]int8
	for i := range idx {
		idx[i] = -1
	}
	for i := 0; i < len(base64Alphabet); i++ {
		idx[base64Alphabet[i]] = int8(i)
	}
	return idx
}()

// appendVLQ appends the base64 VLQ encoding of value.
func appendVLQ(dst []byte, value int) []byte {
	var vlq int
	if value < 0 {
		vlq = (-value << 1) | 1
	} else {
		vlq = value << 1
	}
	for {
		digit := vlq & vlqBaseMask
		vlq >>= vlqBaseShift
		if vlq > 0 {
			digit |= vlqContinuationBit
		}
		dst = append(dst, base64Alphabet[digit])
		if vlq == 0 {
			return dst
		}
	}
}

// readVLQ decodes one value from s starting at pos and returns the value and
// the position after it.
func readVLQ(s string, pos int) (int, int, error) {
	result := 0
	shift := 0
	for {
		if pos >= len(s) {
			return 0, pos, fmt.Errorf("%w: unexpected end of segment", errBadVLQ)
		}
		digit := base64Index[s[pos]]
		if digit < 0 {
			return 0, pos, fmt.Errorf("%w: unexpected character %q", errBadVLQ, s[pos])
		}
		pos++
		if shift > 60 {
			return 0, pos, fmt.Errorf("%w: value overflows", errBadVLQ)
		}
		result += int(digit&vlqBaseMask) << shift
		if digit&vlqContinuationBit == 0 {
			break
		}
		shift += vlqBaseShift
	}
	negative := result&1 == 1
	result >>= 1
	if negative {
		result = -result
	}
	return result, pos, nil
}
