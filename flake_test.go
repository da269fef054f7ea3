package oxidation

import (
	"encoding/json"
	"errors"
	"math"
	"math/big"
	"strings"
	"testing"
	"time"
)

const maxDecimal = "340282366920938463463374607431768211455" // 2^128 - 1

var maxFlake = Flake{
	0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
	0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
}

func TestFlake_Canonical(t *testing.T) {
	tests := []struct {
		name string
		f    Flake
		want string
	}{
		{"Zero", Zero, "00000000-0000-0000-0000-000000000000"},
		{"One", FlakeFromUint64(1), "00000000-0000-0000-0000-000000000001"},
		{"Low 64 bits", FlakeFromUint64(0x0123456789ABCDEF), "00000000-0000-0000-0123-456789abcdef"},
		{"Max", maxFlake, "ffffffff-ffff-ffff-ffff-ffffffffffff"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.f.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
			parsed, err := ParseFlake(tt.want)
			if err != nil {
				t.Fatalf("ParseFlake() error = %v", err)
			}
			if parsed != tt.f {
				t.Errorf("ParseFlake() = %v, want %v", parsed, tt.f)
			}
		})
	}
}

func TestParseFlake_AlternateForms(t *testing.T) {
	want := FlakeFromUint64(0x0123456789ABCDEF)
	inputs := []string{
		"00000000-0000-0000-0123-456789ABCDEF",
		"00000000000000000123456789abcdef",
		"{00000000-0000-0000-0123-456789abcdef}",
		"urn:uuid:00000000-0000-0000-0123-456789abcdef",
	}
	for _, in := range inputs {
		got, err := ParseFlake(in)
		if err != nil {
			t.Errorf("ParseFlake(%q) error = %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseFlake(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseFlake_Invalid(t *testing.T) {
	inputs := []string{
		"",
		"not-a-flake",
		"00000000-0000-0000-0000-00000000000",
		"00000000-0000-0000-0000-0000000000000",
		"0000000g-0000-0000-0000-000000000000",
		"00000000_0000_0000_0000_000000000000",
	}
	for _, in := range inputs {
		_, err := ParseFlake(in)
		if err == nil {
			t.Errorf("ParseFlake(%q) should fail", in)
			continue
		}
		if !errors.Is(err, ErrInvalidFlake) || !errors.Is(err, ErrMalformed) {
			t.Errorf("ParseFlake(%q) error = %v, want malformed flake", in, err)
		}
		var parseErr *ParseError
		if !errors.As(err, &parseErr) || parseErr.Form != "canonical" {
			t.Errorf("ParseFlake(%q) error = %v, want canonical *ParseError", in, err)
		}
	}
}

func TestFlake_Decimal(t *testing.T) {
	tests := []struct {
		name string
		f    Flake
		want string
	}{
		{"Zero", Zero, "0"},
		{"Small", FlakeFromUint64(42), "42"},
		{"Max uint64", FlakeFromUint64(math.MaxUint64), "18446744073709551615"},
		{"2^64", flakeFromHalves(1, 0), "18446744073709551616"},
		{"Max", maxFlake, maxDecimal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.f.Decimal(); got != tt.want {
				t.Errorf("Decimal() = %q, want %q", got, tt.want)
			}
			if got := tt.f.Big().String(); got != tt.want {
				t.Errorf("Big() = %s, want %s", got, tt.want)
			}
			parsed, err := ParseDecimal(tt.want)
			if err != nil {
				t.Fatalf("ParseDecimal() error = %v", err)
			}
			if parsed != tt.f {
				t.Errorf("ParseDecimal() = %v, want %v", parsed, tt.f)
			}
		})
	}
}

func TestParseDecimal_LeadingZeros(t *testing.T) {
	got, err := ParseDecimal("000042")
	if err != nil {
		t.Fatalf("ParseDecimal() error = %v", err)
	}
	if got != FlakeFromUint64(42) {
		t.Errorf("ParseDecimal() = %v, want 42", got)
	}
}

func TestParseDecimal_Invalid(t *testing.T) {
	tests := []struct {
		input string
		cause error
	}{
		{"", ErrMalformed},
		{"-1", ErrMalformed},
		{"+1", ErrMalformed},
		{" 1", ErrMalformed},
		{"1.5", ErrMalformed},
		{"12a", ErrMalformed},
		{"340282366920938463463374607431768211456", ErrOutOfRange},
		{"999999999999999999999999999999999999999999", ErrOutOfRange},
	}

	for _, tt := range tests {
		_, err := ParseDecimal(tt.input)
		if !errors.Is(err, tt.cause) || !errors.Is(err, ErrInvalidFlake) {
			t.Errorf("ParseDecimal(%q) error = %v, want %v", tt.input, err, tt.cause)
		}
	}
}

func TestFlake_Numeric(t *testing.T) {
	f := FlakeFromUint64(12345)
	if v, ok := f.Uint64(); !ok || v != 12345 {
		t.Errorf("Uint64() = %d, %v, want 12345, true", v, ok)
	}
	if _, ok := flakeFromHalves(1, 0).Uint64(); ok {
		t.Error("Uint64() should report false above 2^64")
	}

	big1, _ := new(big.Int).SetString(maxDecimal, 10)
	got, err := FlakeFromBig(big1)
	if err != nil || got != maxFlake {
		t.Errorf("FlakeFromBig(max) = %v, %v", got, err)
	}

	tooBig := new(big.Int).Add(big1, big.NewInt(1))
	if _, err := FlakeFromBig(tooBig); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("FlakeFromBig(2^128) error = %v, want ErrOutOfRange", err)
	}
	if _, err := FlakeFromBig(big.NewInt(-1)); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("FlakeFromBig(-1) error = %v, want ErrOutOfRange", err)
	}
	if _, err := FlakeFromBig(nil); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("FlakeFromBig(nil) error = %v, want ErrOutOfRange", err)
	}
}

func TestFlake_Bytes(t *testing.T) {
	f := flakeFromHalves(0x0102030405060708, 0x090A0B0C0D0E0F10)
	b := f.Bytes()
	if len(b) != 16 || b[0] != 0x01 || b[15] != 0x10 {
		t.Fatalf("Bytes() = %x", b)
	}

	b[0] = 0xFF
	if f[0] != 0x01 {
		t.Error("Bytes() should return a copy")
	}

	back, err := FlakeFromBytes(f.Bytes())
	if err != nil || back != f {
		t.Errorf("FlakeFromBytes() = %v, %v, want %v", back, err, f)
	}
	if _, err := FlakeFromBytes(make([]byte, 8)); !errors.Is(err, ErrMalformed) {
		t.Errorf("FlakeFromBytes(8 bytes) error = %v, want ErrMalformed", err)
	}
}

func TestFlake_Comparison(t *testing.T) {
	a := FlakeFromUint64(100)
	b := FlakeFromUint64(200)
	c := flakeFromHalves(1, 0)

	if !a.Before(b) || !b.After(a) {
		t.Error("100 should be before 200")
	}
	if !b.Before(c) {
		t.Error("values above 2^64 should sort after 64-bit values")
	}
	if a.Compare(a) != 0 || a.Compare(b) != -1 || c.Compare(b) != 1 {
		t.Error("Compare() results incorrect")
	}
	if !a.Equal(FlakeFromUint64(100)) || a.Equal(b) {
		t.Error("Equal() results incorrect")
	}
	if !Zero.IsZero() || a.IsZero() {
		t.Error("IsZero() results incorrect")
	}
}

func TestFlake_JSON(t *testing.T) {
	type record struct {
		ID   Flake  `json:"id"`
		Name string `json:"name"`
	}

	original := record{ID: flakeFromHalves(0x13c, 0xABCDEF), Name: "test"}
	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	if !strings.Contains(string(data), `"id":"`+original.ID.String()+`"`) {
		t.Errorf("json.Marshal() = %s, want quoted canonical form", data)
	}

	var decoded record
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if decoded != original {
		t.Errorf("json round trip = %+v, want %+v", decoded, original)
	}
}

func TestFlake_UnmarshalJSONForms(t *testing.T) {
	want := FlakeFromUint64(5823128305793523712)
	inputs := []string{
		`"` + want.String() + `"`,
		`"5823128305793523712"`,
		`5823128305793523712`,
	}
	for _, in := range inputs {
		var f Flake
		if err := json.Unmarshal([]byte(in), &f); err != nil {
			t.Errorf("Unmarshal(%s) error = %v", in, err)
			continue
		}
		if f != want {
			t.Errorf("Unmarshal(%s) = %v, want %v", in, f, want)
		}
	}

	f := want
	if err := json.Unmarshal([]byte(`null`), &f); err != nil || f != want {
		t.Errorf("Unmarshal(null) = %v, %v; want unchanged", f, err)
	}

	for _, in := range []string{`"bogus"`, `-1`, `1.5`, `true`} {
		var f Flake
		if err := json.Unmarshal([]byte(in), &f); err == nil {
			t.Errorf("Unmarshal(%s) should fail", in)
		}
	}
}

func TestFlake_TextAndBinary(t *testing.T) {
	f := flakeFromHalves(0xDEADBEEF, 0xCAFEBABE)

	text, err := f.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText() error = %v", err)
	}
	var fromText Flake
	if err := fromText.UnmarshalText(text); err != nil || fromText != f {
		t.Errorf("UnmarshalText() = %v, %v, want %v", fromText, err, f)
	}

	bin, err := f.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary() error = %v", err)
	}
	var fromBin Flake
	if err := fromBin.UnmarshalBinary(bin); err != nil || fromBin != f {
		t.Errorf("UnmarshalBinary() = %v, %v, want %v", fromBin, err, f)
	}
	if err := fromBin.UnmarshalBinary([]byte{1, 2, 3}); err == nil {
		t.Error("UnmarshalBinary(3 bytes) should fail")
	}
}

func TestFlake_ScanValue(t *testing.T) {
	f := flakeFromHalves(7, 9)

	v, err := f.Value()
	if err != nil {
		t.Fatalf("Value() error = %v", err)
	}
	if v != f.Decimal() {
		t.Errorf("Value() = %v, want decimal %s", v, f.Decimal())
	}

	// 10^31 = 0x7e37be2022c0914b2680000000
	const dec32 = "10000000000000000000000000000000"
	wantDec32 := flakeFromHalves(0x7e37be2022, 0xc0914b2680000000)

	tests := []struct {
		name  string
		value interface{}
		want  Flake
	}{
		{"nil", nil, Zero},
		{"int64", int64(42), FlakeFromUint64(42)},
		{"decimal string", f.Decimal(), f},
		{"decimal bytes", []byte(f.Decimal()), f},
		{"canonical string", f.String(), f},
		{"raw hex string", flakeFromHalves(0xABC, 0xDEF).Hex(), flakeFromHalves(0xABC, 0xDEF)},
		{"32-digit decimal", dec32, wantDec32},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Flake
			if err := got.Scan(tt.value); err != nil {
				t.Fatalf("Scan() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Scan() = %v, want %v", got, tt.want)
			}
		})
	}

	var got Flake
	if err := got.Scan(int64(-1)); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Scan(-1) error = %v, want ErrOutOfRange", err)
	}
	if err := got.Scan(3.14); !errors.Is(err, ErrInvalidFlake) {
		t.Errorf("Scan(float64) error = %v, want ErrInvalidFlake", err)
	}
}

func TestFlake_Format(t *testing.T) {
	f := flakeFromHalves(0x13c, 0x0b0e4b3c00000000)

	for _, format := range []string{"", "canonical", "decimal", "dec", "hex", "x", "base58", "b58", "base62", "b62"} {
		t.Run(format, func(t *testing.T) {
			s := f.Format(format)
			parsed, err := ParseFormat(s, format)
			if err != nil {
				t.Fatalf("ParseFormat(%q, %q) error = %v", s, format, err)
			}
			if parsed != f {
				t.Errorf("ParseFormat() = %v, want %v", parsed, f)
			}
		})
	}

	if f.Format("unknown") != f.String() {
		t.Error("unknown format should fall back to canonical")
	}
}

func TestDecode(t *testing.T) {
	epoch := DefaultEpoch
	f, err := LayoutSonyflake.Pack(100, 7, 3)
	if err != nil {
		t.Fatalf("Pack() error = %v", err)
	}

	c := Decode(f, LayoutSonyflake, epoch)
	if c.Elapsed != 100 || c.WorkerID != 7 || c.Counter != 3 {
		t.Errorf("Decode() = %+v", c)
	}
	if want := epoch.Add(time.Second); !c.Time.Equal(want) {
		t.Errorf("Time = %v, want %v", c.Time, want)
	}
}

func TestMustParseFlake(t *testing.T) {
	f := MustParseFlake("00000000-0000-0000-0000-00000000002a")
	if f != FlakeFromUint64(42) {
		t.Errorf("MustParseFlake() = %v", f)
	}

	defer func() {
		if recover() == nil {
			t.Error("MustParseFlake() should panic on invalid input")
		}
	}()
	MustParseFlake("bogus")
}

func BenchmarkFlakeString(b *testing.B) {
	f := flakeFromHalves(0x13c0b0e4b3c, 0xAABBCCDDEEFF0001)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = f.String()
	}
}

func BenchmarkFlakeDecimal(b *testing.B) {
	f := flakeFromHalves(0x13c0b0e4b3c, 0xAABBCCDDEEFF0001)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = f.Decimal()
	}
}

func BenchmarkParseDecimal(b *testing.B) {
	s := flakeFromHalves(0x13c0b0e4b3c, 0xAABBCCDDEEFF0001).Decimal()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = ParseDecimal(s)
	}
}
