//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package field implements arithmetic over the prime fields used by
// arithmetic circuits. All modular operations are constant time with
// respect to the element values.
package field

import (
	"crypto/subtle"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/cockroachdb/errors"
	bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	bn254 "github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/cronokirby/saferith"
)

// ErrInvalidElement is returned for malformed field element encodings.
var ErrInvalidElement = errors.New("invalid field element")

// Field defines a prime field.
type Field struct {
	name    string
	p       *saferith.Modulus
	pBig    *big.Int
	half    *big.Int
	bits    int
	byteLen int
}

var (
	// BN254 is the scalar field of the BN254 curve.
	BN254 = New("bn254", bn254.Modulus())

	// BLS12381 is the scalar field of the BLS12-381 curve.
	BLS12381 = New("bls12-381", bls12381.Modulus())

	fields = map[string]*Field{
		BN254.name:    BN254,
		"bn128":       BN254,
		BLS12381.name: BLS12381,
		"bls12381":    BLS12381,
	}
)

// New creates a new field for the odd prime p.
func New(name string, p *big.Int) *Field {
	half := new(big.Int).Sub(p, big.NewInt(1))
	half.Rsh(half, 1)

	return &Field{
		name:    name,
		p:       saferith.ModulusFromNat(new(saferith.Nat).SetBig(p, p.BitLen())),
		pBig:    new(big.Int).Set(p),
		half:    half,
		bits:    p.BitLen(),
		byteLen: (p.BitLen() + 7) / 8,
	}
}

// ByName returns the field by its name.
func ByName(name string) (*Field, error) {
	f, ok := fields[strings.ToLower(name)]
	if !ok {
		return nil, errors.Newf("unknown prime field '%s'", name)
	}
	return f, nil
}

func (f *Field) String() string {
	return f.name
}

// Name returns the field name.
func (f *Field) Name() string {
	return f.name
}

// Modulus returns the field prime.
func (f *Field) Modulus() *big.Int {
	return new(big.Int).Set(f.pBig)
}

// Half returns (p-1)/2, the largest non-negative value in the signed
// view of the field.
func (f *Field) Half() *big.Int {
	return new(big.Int).Set(f.half)
}

// Bits returns the bit length of the field prime.
func (f *Field) Bits() int {
	return f.bits
}

// ByteLen returns the length of the canonical element encoding.
func (f *Field) ByteLen() int {
	return f.byteLen
}

// Element implements a field element. Elements are immutable; the
// zero value is the field zero.
type Element struct {
	n *saferith.Nat
}

func (f *Field) nat(e Element) *saferith.Nat {
	if e.n == nil {
		return new(saferith.Nat).SetUint64(0).Resize(f.bits)
	}
	return e.n
}

func (f *Field) wrap(n *saferith.Nat) Element {
	return Element{
		n: n.Resize(f.bits),
	}
}

// Zero returns the zero element.
func (f *Field) Zero() Element {
	return f.NewElement(0)
}

// One returns the multiplicative identity.
func (f *Field) One() Element {
	return f.NewElement(1)
}

// NewElement creates an element from the integer value v.
func (f *Field) NewElement(v uint64) Element {
	n := new(saferith.Nat).SetUint64(v)
	return f.wrap(new(saferith.Nat).Mod(n, f.p))
}

// FromInt64 creates an element from the signed integer v.
func (f *Field) FromInt64(v int64) Element {
	return f.FromBig(big.NewInt(v))
}

// FromBig creates an element from v, reducing it modulo p. Negative
// values map to their additive inverses.
func (f *Field) FromBig(v *big.Int) Element {
	r := new(big.Int).Mod(v, f.pBig)
	n := new(saferith.Nat).SetBig(r, f.bits)
	return f.wrap(n)
}

// SetString parses a decimal or 0x-prefixed hexadecimal integer with
// an optional leading minus sign.
func (f *Field) SetString(s string) (Element, error) {
	str := strings.TrimSpace(s)
	var neg bool
	if strings.HasPrefix(str, "-") {
		neg = true
		str = str[1:]
	}
	base := 10
	if strings.HasPrefix(str, "0x") || strings.HasPrefix(str, "0X") {
		base = 16
		str = str[2:]
	}
	v, ok := new(big.Int).SetString(str, base)
	if !ok || len(str) == 0 {
		return Element{}, errors.Mark(
			errors.Newf("invalid field element string '%s'", s),
			ErrInvalidElement)
	}
	if neg {
		v.Neg(v)
	}
	return f.FromBig(v), nil
}

// Add returns a+b.
func (f *Field) Add(a, b Element) Element {
	return f.wrap(new(saferith.Nat).ModAdd(f.nat(a), f.nat(b), f.p))
}

// Sub returns a-b.
func (f *Field) Sub(a, b Element) Element {
	return f.wrap(new(saferith.Nat).ModSub(f.nat(a), f.nat(b), f.p))
}

// Neg returns -a.
func (f *Field) Neg(a Element) Element {
	return f.wrap(new(saferith.Nat).ModNeg(f.nat(a), f.p))
}

// Mul returns a*b.
func (f *Field) Mul(a, b Element) Element {
	return f.wrap(new(saferith.Nat).ModMul(f.nat(a), f.nat(b), f.p))
}

// Inverse returns the multiplicative inverse of a. It returns an
// error if a is zero.
func (f *Field) Inverse(a Element) (Element, error) {
	if f.IsZero(a) {
		return Element{}, errors.New("inverse of zero")
	}
	return f.wrap(new(saferith.Nat).ModInverse(f.nat(a), f.p)), nil
}

// Div returns a/b. It returns an error if b is zero.
func (f *Field) Div(a, b Element) (Element, error) {
	inv, err := f.Inverse(b)
	if err != nil {
		return Element{}, err
	}
	return f.Mul(a, inv), nil
}

// Exp returns a^e for the non-negative integer exponent e.
func (f *Field) Exp(a Element, e *big.Int) Element {
	exp := new(saferith.Nat).SetBig(e, e.BitLen())
	return f.wrap(new(saferith.Nat).Exp(f.nat(a), exp, f.p))
}

// Equal tests if a and b are equal.
func (f *Field) Equal(a, b Element) bool {
	return subtle.ConstantTimeCompare(f.Bytes(a), f.Bytes(b)) == 1
}

// IsZero tests if a is zero.
func (f *Field) IsZero(a Element) bool {
	return f.nat(a).EqZero() == 1
}

// Bytes returns the canonical big-endian encoding of a.
func (f *Field) Bytes(a Element) []byte {
	buf := make([]byte, f.byteLen)
	return f.nat(a).FillBytes(buf)
}

// FromBytes decodes the canonical encoding of an element. The
// function fails with ErrInvalidElement if the encoding has a wrong
// length or if the encoded value is not smaller than the prime.
func (f *Field) FromBytes(data []byte) (Element, error) {
	if len(data) != f.byteLen {
		return Element{}, errors.Mark(
			errors.Newf("%s: invalid encoding length %d, expected %d",
				f.name, len(data), f.byteLen),
			ErrInvalidElement)
	}
	n := new(saferith.Nat).SetBytes(data)
	_, _, lt := n.CmpMod(f.p)
	if lt != 1 {
		return Element{}, errors.Mark(
			errors.Newf("%s: encoded value not reduced", f.name),
			ErrInvalidElement)
	}
	return f.wrap(n), nil
}

// UniformLen returns the number of random bytes FromUniformBytes
// needs for a statistically uniform element.
func (f *Field) UniformLen() int {
	return f.byteLen + 16
}

// FromUniformBytes maps UniformLen uniformly random bytes to a
// statistically uniform element.
func (f *Field) FromUniformBytes(data []byte) Element {
	n := new(saferith.Nat).SetBytes(data)
	return f.wrap(new(saferith.Nat).Mod(n, f.p))
}

// Random samples a uniformly random element from rand.
func (f *Field) Random(rand io.Reader) (Element, error) {
	buf := make([]byte, f.UniformLen())
	if _, err := io.ReadFull(rand, buf); err != nil {
		return Element{}, errors.Wrap(err, "sampling field element")
	}
	return f.FromUniformBytes(buf), nil
}

// Big returns the canonical integer value of a.
func (f *Field) Big(a Element) *big.Int {
	return new(big.Int).SetBytes(f.Bytes(a))
}

// Signed returns the signed view of a: a if a <= (p-1)/2 and a-p
// otherwise.
func (f *Field) Signed(a Element) *big.Int {
	v := f.Big(a)
	if v.Cmp(f.half) > 0 {
		v.Sub(v, f.pBig)
	}
	return v
}

// Uint64 returns the value of a as uint64 and a flag telling if the
// value fits.
func (f *Field) Uint64(a Element) (uint64, bool) {
	v := f.Big(a)
	if !v.IsUint64() {
		return 0, false
	}
	return v.Uint64(), true
}

// Format returns the decimal representation of a.
func (f *Field) Format(a Element) string {
	return f.Big(a).String()
}

// String returns the hexadecimal representation of the element. Use
// Field.Format for the decimal value.
func (e Element) String() string {
	if e.n == nil {
		return "0x0"
	}
	return fmt.Sprintf("0x%x", e.n.Big())
}
