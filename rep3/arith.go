//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package rep3

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/covm/field"
)

// Add returns a+b.
func (e *Engine) Add(a, b Share) Share {
	return Share{
		A: e.f.Add(a.A, b.A),
		B: e.f.Add(a.B, b.B),
	}
}

// Sub returns a-b.
func (e *Engine) Sub(a, b Share) Share {
	return Share{
		A: e.f.Sub(a.A, b.A),
		B: e.f.Sub(a.B, b.B),
	}
}

// Neg returns -a.
func (e *Engine) Neg(a Share) Share {
	return Share{
		A: e.f.Neg(a.A),
		B: e.f.Neg(a.B),
	}
}

// AddPublic returns a+c for the public value c.
func (e *Engine) AddPublic(a Share, c field.Element) Share {
	return e.Add(a, e.Promote(c))
}

// MulPublic returns a*c for the public value c.
func (e *Engine) MulPublic(a Share, c field.Element) Share {
	return Share{
		A: e.f.Mul(a.A, c),
		B: e.f.Mul(a.B, c),
	}
}

// Promote returns this party's share of the trivial sharing of c.
func (e *Engine) Promote(c field.Element) Share {
	return Promote(e.f, e.id, c)
}

// RandShare returns a share of a random value unknown to every party.
// The share is derived from the pairwise PRFs without communication.
func (e *Engine) RandShare(tag Tag) Share {
	own, prev := e.prf.fieldPair(e.f, tag)
	return Share{
		A: own,
		B: prev,
	}
}

// zeroShare returns this party's additive share of zero.
func (e *Engine) zeroShare(tag Tag) field.Element {
	own, prev := e.prf.fieldPair(e.f, tag)
	return e.f.Sub(own, prev)
}

func (e *Engine) encodeElements(vals []field.Element) []byte {
	n := e.f.ByteLen()
	buf := make([]byte, len(vals)*n)
	for i, v := range vals {
		copy(buf[i*n:], e.f.Bytes(v))
	}
	return buf
}

func (e *Engine) decodeElements(data []byte, count int) (
	[]field.Element, error) {

	n := e.f.ByteLen()
	if len(data) != count*n {
		return nil, faultf("invalid element vector length %d", len(data))
	}
	result := make([]field.Element, count)
	for i := 0; i < count; i++ {
		v, err := e.f.FromBytes(data[i*n : (i+1)*n])
		if err != nil {
			return nil, fault(err, "element %d", i)
		}
		result[i] = v
	}
	return result, nil
}

// Mul multiplies a and b.
func (e *Engine) Mul(ctx context.Context, a, b Share) (Share, error) {
	r, err := e.MulMany(ctx, []Share{a}, []Share{b})
	if err != nil {
		return Share{}, err
	}
	return r[0], nil
}

// MulMany multiplies the share vectors pairwise in one round.
func (e *Engine) MulMany(ctx context.Context, a, b []Share) ([]Share, error) {
	nonce := e.Reserve(1)
	tags := make([]Tag, len(a))
	for i := range tags {
		tags[i] = Tag{Nonce: nonce, Index: uint32(i)}
	}
	return e.MulTagged(ctx, a, b, tags)
}

// MulTagged multiplies the share vectors pairwise in one round using
// the randomness identified by the tags. Each party computes the
// cross terms of its local components, re-randomizes the sum with a
// zero share, and sends the result to the next party.
func (e *Engine) MulTagged(ctx context.Context, a, b []Share, tags []Tag) (
	[]Share, error) {

	if len(a) != len(b) || len(a) != len(tags) {
		return nil, errors.Newf("mul: vector length mismatch: %d*%d, %d tags",
			len(a), len(b), len(tags))
	}
	if len(a) == 0 {
		return nil, nil
	}
	f := e.f
	z := make([]field.Element, len(a))
	for i := range a {
		v := f.Mul(a[i].A, b[i].A)
		v = f.Add(v, f.Mul(a[i].A, b[i].B))
		v = f.Add(v, f.Mul(a[i].B, b[i].A))
		z[i] = f.Add(v, e.zeroShare(tags[i]))
	}
	data, err := e.exchange(ctx, e.encodeElements(z), nil,
		len(z)*f.ByteLen(), -1)
	if err != nil {
		return nil, err
	}
	prev, err := e.decodeElements(data[linkPrev], len(z))
	if err != nil {
		return nil, err
	}
	result := make([]Share, len(a))
	for i := range result {
		result[i] = Share{
			A: z[i],
			B: prev[i],
		}
	}
	e.stats.Muls += uint64(len(a))
	return result, nil
}

// Open reveals the value of the share to all parties.
func (e *Engine) Open(ctx context.Context, s Share) (field.Element, error) {
	r, err := e.OpenMany(ctx, []Share{s})
	if err != nil {
		return field.Element{}, err
	}
	return r[0], nil
}

// OpenMany reveals the values of the shares to all parties. Each party
// is missing the component of the next party. The previous party sends
// it as its B and the next party as its A; the two copies must agree.
func (e *Engine) OpenMany(ctx context.Context, s []Share) (
	[]field.Element, error) {

	if len(s) == 0 {
		return nil, nil
	}
	as := make([]field.Element, len(s))
	bs := make([]field.Element, len(s))
	for i := range s {
		as[i] = s[i].A
		bs[i] = s[i].B
	}
	n := len(s) * e.f.ByteLen()
	data, err := e.exchange(ctx, e.encodeElements(bs), e.encodeElements(as),
		n, n)
	if err != nil {
		return nil, err
	}
	fromPrev, err := e.decodeElements(data[linkPrev], len(s))
	if err != nil {
		return nil, err
	}
	fromNext, err := e.decodeElements(data[linkNext], len(s))
	if err != nil {
		return nil, err
	}
	result := make([]field.Element, len(s))
	for i := range s {
		if !e.f.Equal(fromPrev[i], fromNext[i]) {
			return nil, faultf("open: element %d: %v and %v disagree",
				i, e.id.Prev(), e.id.Next())
		}
		result[i] = e.f.Add(e.f.Add(s[i].A, s[i].B), fromPrev[i])
	}
	e.stats.Opens += uint64(len(s))
	return result, nil
}

// CMux selects a where the secret boolean c is one and b where it is
// zero. It costs one multiplication round.
func (e *Engine) CMux(ctx context.Context, c, a, b []Share) ([]Share, error) {
	diff := make([]Share, len(a))
	for i := range a {
		diff[i] = e.Sub(a[i], b[i])
	}
	prod, err := e.MulMany(ctx, c, diff)
	if err != nil {
		return nil, err
	}
	for i := range prod {
		prod[i] = e.Add(prod[i], b[i])
	}
	return prod, nil
}

// Inverse computes the multiplicative inverses of the shares. The
// parties multiply each value with a random mask and reveal the
// product. A zero product means a zero value and fails every party
// with ErrDivisionByZero.
func (e *Engine) Inverse(ctx context.Context, a []Share) ([]Share, error) {
	nonce := e.Reserve(1)
	masks := make([]Share, len(a))
	for i := range masks {
		masks[i] = e.RandShare(Tag{Nonce: nonce, Index: uint32(i)})
	}
	prod, err := e.MulMany(ctx, masks, a)
	if err != nil {
		return nil, err
	}
	vals, err := e.OpenMany(ctx, prod)
	if err != nil {
		return nil, err
	}
	result := make([]Share, len(a))
	for i, v := range vals {
		inv, err := e.f.Inverse(v)
		if err != nil {
			return nil, errors.Wrapf(ErrDivisionByZero, "inverse of element %d",
				i)
		}
		result[i] = e.MulPublic(masks[i], inv)
	}
	return result, nil
}

// Div computes a/b for secret divisors.
func (e *Engine) Div(ctx context.Context, a, b []Share) ([]Share, error) {
	inv, err := e.Inverse(ctx, b)
	if err != nil {
		return nil, err
	}
	return e.MulMany(ctx, a, inv)
}
