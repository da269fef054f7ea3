// Package oxidation - flake.go provides the Flake identifier value type.
//
// A Flake is an immutable 128-bit big-endian value. Compact (64-bit) layouts
// occupy the low 64 bits; the high 64 bits are zero.

package oxidation

import (
	"bytes"
	"database/sql/driver"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Flake is a unique, roughly time-ordered identifier.
//
// # Representations
//
//   - Canonical text: 8-4-4-4-12 lowercase hex, e.g.
//     "0000013c-0b0e-4b3c-0000-000000000000"
//   - Decimal text: the unsigned base-10 value, e.g. "5823128305793523712"
//   - Numeric: Uint64 (compact layouts) or Big (any layout)
//
// Both text forms round-trip through ParseFlake and ParseDecimal.
//
// # Ordering
//
// Two Flakes are equal iff their packed values are equal, so == works.
// Ordering is the numeric order of the packed value; because the value is
// stored big-endian, that is also byte order.
type Flake [16]byte

// Zero is the zero Flake. No engine produces it after its first time unit.
var Zero Flake

// ============================================================================
// Construction
// ============================================================================

// FlakeFromUint64 returns the Flake with numeric value v.
func FlakeFromUint64(v uint64) Flake {
	return flakeFromHalves(0, v)
}

// FlakeFromBig returns the Flake with numeric value v. It fails with a
// *ParseError when v is negative or does not fit in 128 bits.
func FlakeFromBig(v *big.Int) (Flake, error) {
	if v == nil || v.Sign() < 0 || v.BitLen() > 128 {
		return Flake{}, newParseError("numeric", fmt.Sprint(v), ErrOutOfRange)
	}
	var f Flake
	v.FillBytes(f[:])
	return f, nil
}

// FlakeFromBytes copies a 16-byte big-endian value into a Flake.
func FlakeFromBytes(b []byte) (Flake, error) {
	if len(b) != 16 {
		return Flake{}, newParseError("binary", hex.EncodeToString(b), ErrMalformed)
	}
	var f Flake
	copy(f[:], b)
	return f, nil
}

func flakeFromHalves(hi, lo uint64) Flake {
	var f Flake
	binary.BigEndian.PutUint64(f[:8], hi)
	binary.BigEndian.PutUint64(f[8:], lo)
	return f
}

func (f Flake) halves() (hi, lo uint64) {
	return binary.BigEndian.Uint64(f[:8]), binary.BigEndian.Uint64(f[8:])
}

// ============================================================================
// Parsing
// ============================================================================

// ParseFlake parses the canonical text form.
//
// Besides the hyphenated form it accepts 32 raw hex digits, braces, and a
// "urn:uuid:" prefix. Hex digits may be in either case.
//
// Example:
//
//	f, err := oxidation.ParseFlake("0000013c-0b0e-4b3c-0000-000000000000")
func ParseFlake(s string) (Flake, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return Flake{}, newParseError("canonical", s, ErrMalformed)
	}
	return Flake(u), nil
}

// ParseDecimal parses the decimal text form: one or more ASCII digits, no
// sign, no whitespace, value below 2^128.
//
// Example:
//
//	f, err := oxidation.ParseDecimal("5823128305793523712")
func ParseDecimal(s string) (Flake, error) {
	if s == "" {
		return Flake{}, newParseError("decimal", s, ErrMalformed)
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return Flake{}, newParseError("decimal", s, ErrMalformed)
		}
	}

	// Fast path: fits in 64 bits
	if len(s) <= 19 {
		v, err := strconv.ParseUint(s, 10, 64)
		if err == nil {
			return FlakeFromUint64(v), nil
		}
	}

	var v uint128
	for i := 0; i < len(s); i++ {
		var over bool
		v, over = muladd128(v, 10, uint64(s[i]-'0'))
		if over {
			return Flake{}, newParseError("decimal", s, ErrOutOfRange)
		}
	}
	return flakeFromHalves(v.hi, v.lo), nil
}

// MustParseFlake is like ParseFlake but panics on error.
func MustParseFlake(s string) Flake {
	f, err := ParseFlake(s)
	if err != nil {
		panic(err)
	}
	return f
}

// ============================================================================
// Rendering
// ============================================================================

// String returns the canonical text form. It implements fmt.Stringer.
func (f Flake) String() string {
	return uuid.UUID(f).String()
}

// Decimal returns the decimal text form.
func (f Flake) Decimal() string {
	hi, lo := f.halves()
	if hi == 0 {
		return strconv.FormatUint(lo, 10)
	}

	// 2^128 has 39 decimal digits
	var buf [39]byte
	i := len(buf)
	v := uint128{hi: hi, lo: lo}
	for !v.isZero() {
		var r uint64
		v, r = divmod128(v, 10)
		i--
		buf[i] = byte('0' + r)
	}
	return string(buf[i:])
}

// Uint64 returns the numeric value and true when it fits in 64 bits, which
// is always the case for Flakes from a BitLayout.
func (f Flake) Uint64() (uint64, bool) {
	hi, lo := f.halves()
	return lo, hi == 0
}

// Big returns the numeric value as a new big.Int.
func (f Flake) Big() *big.Int {
	return new(big.Int).SetBytes(f[:])
}

// Bytes returns a copy of the 16 big-endian bytes.
func (f Flake) Bytes() []byte {
	b := make([]byte, 16)
	copy(b, f[:])
	return b
}

// IsZero reports whether f is the zero Flake.
func (f Flake) IsZero() bool {
	return f == Zero
}

// ============================================================================
// Comparison
// ============================================================================

// Compare returns -1, 0 or 1 as f is less than, equal to, or greater than
// other by numeric value.
func (f Flake) Compare(other Flake) int {
	return bytes.Compare(f[:], other[:])
}

// Equal reports whether f and other have the same packed value.
func (f Flake) Equal(other Flake) bool {
	return f == other
}

// Before reports whether f sorts before other.
func (f Flake) Before(other Flake) bool {
	return f.Compare(other) < 0
}

// After reports whether f sorts after other.
func (f Flake) After(other Flake) bool {
	return f.Compare(other) > 0
}

// ============================================================================
// Decoding
// ============================================================================

// Components holds the decoded fields of a Flake.
type Components struct {
	// Elapsed is the time field, in layout units since the epoch.
	Elapsed uint64

	// Time is the epoch plus Elapsed units.
	Time time.Time

	// WorkerID is the worker field.
	WorkerID WorkerID

	// Counter is the per-unit counter field.
	Counter uint64
}

// Decode unpacks f under the given layout and epoch.
//
// Decoding is only meaningful with the layout and epoch the Flake was
// produced with; the Flake does not record them.
func Decode(f Flake, layout Layout, epoch time.Time) Components {
	elapsed, worker, counter := layout.Unpack(f)
	return Components{
		Elapsed:  elapsed,
		Time:     epoch.Add(time.Duration(elapsed) * layout.TimeUnit()),
		WorkerID: worker,
		Counter:  counter,
	}
}

// ============================================================================
// Marshaling
// ============================================================================

// MarshalText implements encoding.TextMarshaler using the canonical form.
func (f Flake) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler using the canonical form.
func (f *Flake) UnmarshalText(text []byte) error {
	parsed, err := ParseFlake(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler (16 big-endian bytes).
func (f Flake) MarshalBinary() ([]byte, error) {
	return f.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (f *Flake) UnmarshalBinary(data []byte) error {
	parsed, err := FlakeFromBytes(data)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// MarshalJSON implements json.Marshaler.
//
// The canonical form is emitted as a JSON string. Numbers above 2^53 lose
// precision in JavaScript, so a bare number is never emitted.
func (f Flake) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}

// UnmarshalJSON implements json.Unmarshaler.
//
// Accepts a quoted canonical form, a quoted decimal form, or a bare number.
func (f *Flake) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return newParseError("json", string(data), ErrMalformed)
		}
		parsed, err := parseAny(s)
		if err != nil {
			return err
		}
		*f = parsed
		return nil
	}

	parsed, err := ParseDecimal(string(data))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Scan implements sql.Scanner.
//
// Decimal text is the storage form, as written by Value. Integer columns
// (int64, non-negative) and canonical text are also accepted. NULL scans as
// the zero Flake.
func (f *Flake) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*f = Zero
	case int64:
		if v < 0 {
			return newParseError("decimal", strconv.FormatInt(v, 10), ErrOutOfRange)
		}
		*f = FlakeFromUint64(uint64(v))
	case []byte:
		parsed, err := parseAny(string(v))
		if err != nil {
			return err
		}
		*f = parsed
	case string:
		parsed, err := parseAny(v)
		if err != nil {
			return err
		}
		*f = parsed
	default:
		return fmt.Errorf("cannot scan %T into Flake: %w", value, ErrInvalidFlake)
	}
	return nil
}

// Value implements driver.Valuer, returning the decimal text form for
// DECIMAL(39,0), NUMERIC or TEXT columns.
func (f Flake) Value() (driver.Value, error) {
	return f.Decimal(), nil
}

// parseAny accepts the decimal form when s is all digits, otherwise the
// canonical form. Decimal wins for 32-digit input since Value writes decimal.
func parseAny(s string) (Flake, error) {
	if isDigits(s) {
		return ParseDecimal(s)
	}
	return ParseFlake(s)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ============================================================================
// Formatting
// ============================================================================

// Format returns f in the named representation.
//
// Supported formats:
//   - "canonical", "text", "": canonical text (default)
//   - "decimal", "dec", "d": decimal text
//   - "hex", "x": 32 hex digits
//   - "base58", "b58": Bitcoin-style base58
//   - "base62", "b62": URL-safe base62
func (f Flake) Format(format string) string {
	switch format {
	case "decimal", "dec", "d":
		return f.Decimal()
	case "hex", "x":
		return f.Hex()
	case "base58", "b58":
		return f.Base58()
	case "base62", "b62":
		return f.Base62()
	default:
		return f.String()
	}
}

// ParseFormat parses s in the named representation; the inverse of Format.
func ParseFormat(s, format string) (Flake, error) {
	switch format {
	case "decimal", "dec", "d":
		return ParseDecimal(s)
	case "hex", "x":
		return ParseHex(s)
	case "base58", "b58":
		return ParseBase58(s)
	case "base62", "b62":
		return ParseBase62(s)
	default:
		return ParseFlake(s)
	}
}
