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

// ShareInput distributes count private values of the owner party. The
// owner splits its values and sends the neighbours their shares; the
// other parties pass nil values. Every party returns its shares of the
// values.
func (e *Engine) ShareInput(ctx context.Context, owner PartyID,
	values []field.Element, count int) ([]Share, error) {

	if !owner.Valid() {
		return nil, errors.Newf("invalid input owner %d", owner)
	}
	n := count * 2 * e.f.ByteLen()

	if owner != e.id {
		fromPrev, fromNext := -1, -1
		link := linkNext
		if owner == e.id.Prev() {
			fromPrev = n
			link = linkPrev
		} else {
			fromNext = n
		}
		data, err := e.exchange(ctx, nil, nil, fromPrev, fromNext)
		if err != nil {
			return nil, err
		}
		return e.decodeShares(data[link], count)
	}

	if len(values) != count {
		return nil, errors.Newf("input: %d values, expected %d",
			len(values), count)
	}
	own := make([]Share, count)
	next := make([]Share, count)
	prev := make([]Share, count)
	rand := e.cfg.GetRandom()
	for i, v := range values {
		s, err := Split(e.f, v, rand)
		if err != nil {
			return nil, err
		}
		own[i] = s[e.id]
		next[i] = s[e.id.Next()]
		prev[i] = s[e.id.Prev()]
	}
	_, err := e.exchange(ctx, e.encodeShares(next), e.encodeShares(prev),
		-1, -1)
	if err != nil {
		return nil, err
	}
	return own, nil
}

func (e *Engine) encodeShares(s []Share) []byte {
	vals := make([]field.Element, 0, 2*len(s))
	for _, share := range s {
		vals = append(vals, share.A, share.B)
	}
	return e.encodeElements(vals)
}

func (e *Engine) decodeShares(data []byte, count int) ([]Share, error) {
	vals, err := e.decodeElements(data, 2*count)
	if err != nil {
		return nil, err
	}
	result := make([]Share, count)
	for i := range result {
		result[i] = Share{
			A: vals[2*i],
			B: vals[2*i+1],
		}
	}
	return result, nil
}
