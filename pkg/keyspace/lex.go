package keyspace

import (
	"encoding/binary"
	"fmt"
	"math/big"
)

// EncodeSortableInt encodes a signed 64-bit integer so that byte-lexical
// order matches numeric order: flip the sign bit of the big-endian
// two's-complement representation.
func EncodeSortableInt(v int64) []byte {
	u := uint64(v) ^ (1 << 63)
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, u)
	return buf
}

// DecodeSortableInt is the inverse of EncodeSortableInt.
func DecodeSortableInt(b []byte) (int64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("keyspace: sortable int must be 8 bytes, got %d", len(b))
	}
	u := binary.BigEndian.Uint64(b)
	return int64(u ^ (1 << 63)), nil
}

// EncodeSortableString encodes a NUL-free string as itself: plain byte
// comparison of UTF-8 already matches codepoint order for the BMP common
// case, and the Strand contract (glossary) forbids embedded NULs, so no
// escaping is required.
func EncodeSortableString(s string) []byte {
	return []byte(s)
}

// DecimalLexEncoder implements an order-preserving decimal encoding:
//
//   - zero encodes as a single 0x80 byte;
//   - negative numbers get sign byte 0x00 followed by the COMPLEMENTED
//     magnitude digits (so that more-negative sorts first);
//   - positive numbers get sign byte 0xFF followed by the magnitude
//     digits as-is;
//   - digits are packed two per byte as nibbles (0-9, with 0xA marking
//     end-of-number when the digit count is odd) and the whole magnitude
//     is terminated by a zero nibble pair (0x00) so that a shorter
//     number of equal leading digits still sorts before a longer one.
//
// The magnitude is encoded as a decimal-exponent pair (digits, exponent)
// so relative magnitude comparisons don't depend on where the decimal
// point falls: exponent is written first (sortable-int of the number of
// integer digits), then the significant digits themselves with trailing
// zeros stripped.
type DecimalLexEncoder struct{}

// Encode implements the scheme above for an arbitrary-precision rational
// (only finite decimal values are supported — a big.Rat whose
// denominator is not a power of 10 is rejected, matching the source
// system's Decimal type which is fixed-point, not a general fraction).
func (DecimalLexEncoder) Encode(r *big.Rat) ([]byte, error) {
	if r.Sign() == 0 {
		return []byte{0x80}, nil
	}
	digits, exp, err := decimalDigits(r)
	if err != nil {
		return nil, err
	}
	neg := r.Sign() < 0
	buf := make([]byte, 0, 8+len(digits)/2+1)
	if neg {
		buf = append(buf, 0x00)
	} else {
		buf = append(buf, 0xFF)
	}
	expBytes := EncodeSortableInt(int64(exp))
	if neg {
		for i := range expBytes {
			expBytes[i] = ^expBytes[i]
		}
	}
	buf = append(buf, expBytes...)
	buf = append(buf, packDigits(digits, neg)...)
	return buf, nil
}

// Decode is the inverse of Encode.
func (DecimalLexEncoder) Decode(b []byte) (*big.Rat, error) {
	if len(b) == 1 && b[0] == 0x80 {
		return new(big.Rat), nil
	}
	if len(b) < 9 {
		return nil, fmt.Errorf("keyspace: truncated lex decimal")
	}
	neg := b[0] == 0x00
	if !neg && b[0] != 0xFF {
		return nil, fmt.Errorf("keyspace: invalid lex decimal sign byte %x", b[0])
	}
	expBytes := append([]byte(nil), b[1:9]...)
	if neg {
		for i := range expBytes {
			expBytes[i] = ^expBytes[i]
		}
	}
	exp, err := DecodeSortableInt(expBytes)
	if err != nil {
		return nil, err
	}
	digits, err := unpackDigits(b[9:], neg)
	if err != nil {
		return nil, err
	}
	mag := new(big.Int)
	mag.SetString(digits, 10)
	if len(digits) == 0 {
		mag.SetInt64(0)
	}
	// value = 0.digits * 10^exp  (exp counts integer digits, so this
	// reconstructs the original magnitude by shifting the decimal point)
	num := new(big.Int).Set(mag)
	denom := new(big.Int).SetInt64(1)
	shift := int64(len(digits)) - exp
	ten := big.NewInt(10)
	if shift > 0 {
		denom.Exp(ten, big.NewInt(shift), nil)
	} else if shift < 0 {
		num.Mul(num, new(big.Int).Exp(ten, big.NewInt(-shift), nil))
	}
	r := new(big.Rat).SetFrac(num, denom)
	if neg {
		r.Neg(r)
	}
	return r, nil
}

// decimalDigits returns the significant digits (no leading/trailing
// zeros) of |r| and the base-10 exponent: the count of digits that fall
// to the left of the decimal point (may be <= 0 for values < 1).
func decimalDigits(r *big.Rat) (string, int, error) {
	if r.IsInt() {
		mag := new(big.Int).Abs(r.Num())
		s := mag.String()
		s2 := trimTrailingZeros(s)
		if s2 == "" {
			return "", 0, nil
		}
		return s2, len(s), nil
	}
	// Non-integer rationals only have a finite decimal representation if
	// their reduced denominator's sole prime factors are 2 and 5 (i.e. it
	// divides some power of 10) — true of every value the fixed-point
	// Decimal type can hold, since it is always constructed from a
	// decimal literal.
	denom := new(big.Int).Abs(r.Denom())
	two, five := big.NewInt(2), big.NewInt(5)
	count2, count2rem := factorOut(denom, two)
	count5, rem5 := factorOut(count2rem, five)
	if rem5.Cmp(big.NewInt(1)) != 0 {
		return "", 0, fmt.Errorf("keyspace: decimal denominator %s has no finite decimal form", denom)
	}
	exp10 := count2
	if count5 > exp10 {
		exp10 = count5
	}
	numAbs := new(big.Int).Abs(r.Num())
	scaledNum := new(big.Int).Set(numAbs)
	scaledNum.Mul(scaledNum, new(big.Int).Exp(two, big.NewInt(int64(exp10-count2)), nil))
	scaledNum.Mul(scaledNum, new(big.Int).Exp(five, big.NewInt(int64(exp10-count5)), nil))
	raw := scaledNum.String()
	intLen := len(raw) - exp10
	digits := trimTrailingZeros(raw)
	return digits, intLen, nil
}

// factorOut divides n by p repeatedly, returning the count of divisions
// and the remaining quotient.
func factorOut(n *big.Int, p *big.Int) (int, *big.Int) {
	count := 0
	rem := new(big.Int).Set(n)
	zero := new(big.Int)
	for rem.Cmp(big.NewInt(1)) > 0 {
		q, r := new(big.Int).QuoRem(rem, p, new(big.Int))
		if r.Cmp(zero) != 0 {
			break
		}
		rem = q
		count++
	}
	return count, rem
}

func trimTrailingZeros(s string) string {
	i := len(s)
	for i > 0 && s[i-1] == '0' {
		i--
	}
	return s[:i]
}

// packDigits packs decimal digit characters two per byte (high nibble
// first), each nibble in [0,9], terminated by a 0x00 byte (two zero
// nibbles never otherwise occur since trailing zeros are stripped before
// packing). If neg, every nibble is complemented (9-d) so that, among
// negative numbers, a larger magnitude sorts first (overall negative
// numbers already sort before positive via the sign byte; this makes
// more-negative sort before less-negative).
func packDigits(digits string, neg bool) []byte {
	nibbles := make([]byte, 0, len(digits)+1)
	for _, c := range digits {
		d := byte(c - '0')
		if neg {
			d = 9 - d
		}
		nibbles = append(nibbles, d)
	}
	nibbles = append(nibbles, 0x0A) // 0xA is never a valid digit nibble: terminator
	out := make([]byte, 0, (len(nibbles)+1)/2)
	for i := 0; i < len(nibbles); i += 2 {
		hi := nibbles[i]
		lo := byte(0x0F) // padding nibble when odd length
		if i+1 < len(nibbles) {
			lo = nibbles[i+1]
		}
		out = append(out, hi<<4|lo)
	}
	return out
}

func unpackDigits(b []byte, neg bool) (string, error) {
	var sb []byte
	for _, by := range b {
		hi := by >> 4
		lo := by & 0x0F
		for _, n := range [2]byte{hi, lo} {
			if n == 0x0A {
				return string(sb), nil
			}
			if n == 0x0F {
				continue // trailing pad nibble
			}
			d := n
			if neg {
				d = 9 - d
			}
			if d > 9 {
				return "", fmt.Errorf("keyspace: invalid digit nibble %d", n)
			}
			sb = append(sb, '0'+d)
		}
	}
	return "", fmt.Errorf("keyspace: lex decimal missing terminator")
}
