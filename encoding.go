// Package oxidation - encoding.go provides compact alphabet encodings of the
// 128-bit Flake value.
//
// # Supported Encodings
//
//   - Hex: fixed 32 characters, sorts like the numeric value
//   - Base58: Bitcoin-style, no confusing characters (0, O, I, l)
//   - Base62: URL-safe alphanumeric
//
// Base58 and Base62 are variable length and carry no leading zeros, so they
// do not sort lexically. The decode tables are built once at init and are
// read-only afterwards.

package oxidation

import (
	"errors"
)

// Maximum string lengths for each encoding of a 128-bit value.
// These limits reject oversized input before decoding.
const (
	MaxBase58Len = 22 // ceil(128 / log2(58))
	MaxBase62Len = 22 // ceil(128 / log2(62))
	HexLen       = 32
)

// Encoding errors, carried as the cause of a *ParseError.
var (
	ErrInvalidBase58 = errors.New("invalid base58 encoding")
	ErrInvalidBase62 = errors.New("invalid base62 encoding")
	ErrInvalidHex    = errors.New("invalid hexadecimal encoding")
	ErrStringTooLong = errors.New("encoded string exceeds maximum length")
)

const encodeBase58Map = "123456789abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ"

const encodeBase62Map = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

const encodeHexMap = "0123456789abcdef"

var (
	decodeBase58Map [256]byte
	decodeBase62Map [256]byte
	decodeHexMap    [256]byte
)

// init marks every byte invalid (0xFF), then fills in each alphabet.
func init() {
	for i := 0; i < 256; i++ {
		decodeBase58Map[i] = 0xFF
		decodeBase62Map[i] = 0xFF
		decodeHexMap[i] = 0xFF
	}
	for i := 0; i < len(encodeBase58Map); i++ {
		decodeBase58Map[encodeBase58Map[i]] = byte(i)
	}
	for i := 0; i < len(encodeBase62Map); i++ {
		decodeBase62Map[encodeBase62Map[i]] = byte(i)
	}
	for i := 0; i < len(encodeHexMap); i++ {
		decodeHexMap[encodeHexMap[i]] = byte(i)
		if encodeHexMap[i] >= 'a' {
			decodeHexMap[encodeHexMap[i]-32] = byte(i)
		}
	}
}

// Hex returns the value as 32 lowercase hex digits.
func (f Flake) Hex() string {
	b := make([]byte, HexLen)
	for i, c := range f {
		b[2*i] = encodeHexMap[c>>4]
		b[2*i+1] = encodeHexMap[c&0x0F]
	}
	return string(b)
}

// Base58 returns the value in Bitcoin-style base58.
func (f Flake) Base58() string {
	return encodeBase(f, 58, encodeBase58Map)
}

// Base62 returns the value in URL-safe base62.
func (f Flake) Base62() string {
	return encodeBase(f, 62, encodeBase62Map)
}

// ParseHex parses exactly 32 hex digits in either case.
func ParseHex(s string) (Flake, error) {
	if len(s) != HexLen {
		if len(s) > HexLen {
			return Flake{}, newParseError("hex", s, ErrStringTooLong)
		}
		return Flake{}, newParseError("hex", s, ErrInvalidHex)
	}
	var f Flake
	for i := 0; i < len(f); i++ {
		hi, lo := decodeHexMap[s[2*i]], decodeHexMap[s[2*i+1]]
		if hi == 0xFF || lo == 0xFF {
			return Flake{}, newParseError("hex", s, ErrInvalidHex)
		}
		f[i] = hi<<4 | lo
	}
	return f, nil
}

// ParseBase58 parses a base58 string.
func ParseBase58(s string) (Flake, error) {
	return decodeBase(s, "base58", 58, MaxBase58Len, &decodeBase58Map, ErrInvalidBase58)
}

// ParseBase62 parses a base62 string.
func ParseBase62(s string) (Flake, error) {
	return decodeBase(s, "base62", 62, MaxBase62Len, &decodeBase62Map, ErrInvalidBase62)
}

// encodeBase renders f in a non-power-of-two base by repeated 128-bit
// division.
func encodeBase(f Flake, base uint64, alphabet string) string {
	hi, lo := f.halves()
	v := uint128{hi: hi, lo: lo}
	if v.isZero() {
		return alphabet[:1]
	}

	b := make([]byte, 0, MaxBase62Len)
	for !v.isZero() {
		var r uint64
		v, r = divmod128(v, base)
		b = append(b, alphabet[r])
	}

	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

func decodeBase(s, form string, base uint64, maxLen int, table *[256]byte, invalid error) (Flake, error) {
	if s == "" {
		return Flake{}, newParseError(form, s, invalid)
	}
	if len(s) > maxLen {
		return Flake{}, newParseError(form, s, ErrStringTooLong)
	}

	var v uint128
	for i := 0; i < len(s); i++ {
		d := table[s[i]]
		if d == 0xFF {
			return Flake{}, newParseError(form, s, invalid)
		}
		var over bool
		v, over = muladd128(v, base, uint64(d))
		if over {
			return Flake{}, newParseError(form, s, ErrOutOfRange)
		}
	}
	return flakeFromHalves(v.hi, v.lo), nil
}
