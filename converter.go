package oxidation

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// Kind names a primitive representation a Converter can produce.
type Kind int

const (
	// KindString is the canonical text form.
	KindString Kind = iota

	// KindDecimal is the decimal text form.
	KindDecimal
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindDecimal:
		return "decimal"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Converter moves Flakes to and from the primitive types boundary systems
// understand, such as form values, configuration strings and decimal
// database columns. It is stateless; the zero value is ready to use.
//
// Every failure is the *ParseError of the underlying Flake parser.
type Converter struct{}

// ToString renders the canonical text form.
func (Converter) ToString(f Flake) string { return f.String() }

// FromString parses the canonical text form.
func (Converter) FromString(s string) (Flake, error) { return ParseFlake(s) }

// ToDecimal renders the decimal text form.
func (Converter) ToDecimal(f Flake) string { return f.Decimal() }

// FromDecimal parses the decimal text form.
func (Converter) FromDecimal(s string) (Flake, error) { return ParseDecimal(s) }

// CanConvertFrom reports whether ConvertFrom accepts values of v's type.
func (Converter) CanConvertFrom(v any) bool {
	switch v.(type) {
	case string, []byte, Flake, *Flake, uint64, int64, *big.Int, json.Number:
		return true
	default:
		return false
	}
}

// ConvertFrom builds a Flake from a primitive value.
//
// Strings and byte slices are parsed as decimal text when they consist of
// digits only, and as canonical text otherwise.
func (c Converter) ConvertFrom(v any) (Flake, error) {
	switch x := v.(type) {
	case Flake:
		return x, nil
	case *Flake:
		if x == nil {
			return Zero, newParseError("flake", "<nil>", ErrMalformed)
		}
		return *x, nil
	case string:
		return parseAny(x)
	case []byte:
		return parseAny(string(x))
	case json.Number:
		return ParseDecimal(x.String())
	case uint64:
		return FlakeFromUint64(x), nil
	case int64:
		if x < 0 {
			return Zero, newParseError("decimal", fmt.Sprint(x), ErrOutOfRange)
		}
		return FlakeFromUint64(uint64(x)), nil
	case *big.Int:
		return FlakeFromBig(x)
	default:
		return Zero, newParseError(fmt.Sprintf("%T", v), fmt.Sprint(v), ErrMalformed)
	}
}

// ConvertTo renders f in the requested kind.
func (Converter) ConvertTo(f Flake, kind Kind) (string, error) {
	switch kind {
	case KindString:
		return f.String(), nil
	case KindDecimal:
		return f.Decimal(), nil
	default:
		return "", newParseError(kind.String(), f.String(), ErrMalformed)
	}
}
