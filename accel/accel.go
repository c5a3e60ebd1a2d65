//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package accel implements lazy evaluation of secret values. Linear
// operations are recorded as expressions and multiplications as
// pending nodes. A flush evaluates the pending multiplications layer
// by layer so that all independent multiplications of a layer share
// one communication round.
package accel

import (
	"context"
	"time"

	"github.com/markkurossi/covm/field"
	"github.com/markkurossi/covm/rep3"
	"github.com/rs/zerolog"
)

type kind int

const (
	kindShare kind = iota
	kindLinear
	kindMul
)

type term struct {
	coef field.Element
	node *Node
}

// Node is a lazily evaluated secret value.
type Node struct {
	kind     kind
	resolved bool
	share    rep3.Share

	// Linear: c + sum(coef*node)
	c     field.Element
	terms []term

	// Multiplication.
	a, b *Node
	tag  rep3.Tag
}

// Resolved tests if the node value is available without
// communication.
func (n *Node) Resolved() bool {
	return n.resolved
}

// Stats contains accelerator statistics.
type Stats struct {
	Flushes  uint64
	Layers   uint64
	Muls     uint64
	MaxBatch int
	Elapsed  time.Duration
}

// Accelerator collects secure multiplications and evaluates
// independent multiplications in batches.
type Accelerator struct {
	e         *rep3.Engine
	f         *field.Field
	log       zerolog.Logger
	unbatched bool
	pending   []*Node
	stats     Stats
}

// New creates an accelerator for the protocol engine. Batching is
// disabled if the engine's configuration sets Unbatched.
func New(e *rep3.Engine) *Accelerator {
	return &Accelerator{
		e:         e,
		f:         e.Field(),
		log:       e.Logger().With().Str("module", "accel").Logger(),
		unbatched: e.Config().Unbatched,
	}
}

// Engine returns the accelerator's protocol engine.
func (acc *Accelerator) Engine() *rep3.Engine {
	return acc.e
}

// Stats returns the accelerator statistics.
func (acc *Accelerator) Stats() Stats {
	return acc.stats
}

// Pending returns the number of multiplications waiting for a flush.
func (acc *Accelerator) Pending() int {
	return len(acc.pending)
}

// Share wraps a resolved share into a node.
func (acc *Accelerator) Share(s rep3.Share) *Node {
	return &Node{
		kind:     kindShare,
		resolved: true,
		share:    s,
	}
}

// Public creates a node of the public value c.
func (acc *Accelerator) Public(c field.Element) *Node {
	return &Node{
		kind: kindLinear,
		c:    c,
	}
}

// maxTerms bounds the flattening of nested linear expressions. Larger
// expressions are referenced as single terms so that long
// accumulations do not copy their whole term lists on every step.
const maxTerms = 16

// linear returns n as constant and terms, flattening nested linear
// expressions of at most maxTerms terms.
func (acc *Accelerator) linear(n *Node, coef field.Element) (
	field.Element, []term) {

	if n.kind != kindLinear || n.resolved || len(n.terms) > maxTerms {
		return acc.f.Zero(), []term{{coef: coef, node: n}}
	}
	f := acc.f
	terms := make([]term, len(n.terms))
	for i, t := range n.terms {
		terms[i] = term{
			coef: f.Mul(t.coef, coef),
			node: t.node,
		}
	}
	return f.Mul(n.c, coef), terms
}

func (acc *Accelerator) combine(a *Node, ca field.Element, b *Node,
	cb field.Element) *Node {

	c1, t1 := acc.linear(a, ca)
	c2, t2 := acc.linear(b, cb)
	return acc.newLinear(acc.f.Add(c1, c2), append(t1, t2...))
}

// newLinear creates a linear node. Expressions over resolved values
// are evaluated immediately.
func (acc *Accelerator) newLinear(c field.Element, terms []term) *Node {
	n := &Node{
		kind:  kindLinear,
		c:     c,
		terms: terms,
	}
	if len(terms) == 0 {
		return n
	}
	for _, t := range terms {
		if !t.node.resolved {
			return n
		}
	}
	acc.eval(n)
	return n
}

// Add returns a+b.
func (acc *Accelerator) Add(a, b *Node) *Node {
	return acc.combine(a, acc.f.One(), b, acc.f.One())
}

// Sub returns a-b.
func (acc *Accelerator) Sub(a, b *Node) *Node {
	return acc.combine(a, acc.f.One(), b, acc.f.Neg(acc.f.One()))
}

// Neg returns -a.
func (acc *Accelerator) Neg(a *Node) *Node {
	return acc.MulPublic(a, acc.f.Neg(acc.f.One()))
}

// AddPublic returns a+c.
func (acc *Accelerator) AddPublic(a *Node, c field.Element) *Node {
	return acc.Add(a, acc.Public(c))
}

// MulPublic returns a*c.
func (acc *Accelerator) MulPublic(a *Node, c field.Element) *Node {
	return acc.newLinear(acc.linear(a, c))
}

// public tests if the node is a public constant.
func (acc *Accelerator) public(n *Node) (field.Element, bool) {
	if n.kind == kindLinear && !n.resolved && len(n.terms) == 0 {
		return n.c, true
	}
	return field.Element{}, false
}

// Mul returns a*b. The multiplication is deferred until the next flush
// unless batching is disabled. Its randomness is reserved now, so the
// resulting share does not depend on the batch it is evaluated in.
func (acc *Accelerator) Mul(ctx context.Context, a, b *Node) (*Node, error) {
	if c, ok := acc.public(a); ok {
		return acc.MulPublic(b, c), nil
	}
	if c, ok := acc.public(b); ok {
		return acc.MulPublic(a, c), nil
	}
	n := &Node{
		kind: kindMul,
		a:    a,
		b:    b,
		tag: rep3.Tag{
			Nonce: acc.e.Reserve(1),
		},
	}
	acc.pending = append(acc.pending, n)
	if acc.unbatched {
		if err := acc.Flush(ctx); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// CMux returns a where the secret boolean c is one and b where it is
// zero.
func (acc *Accelerator) CMux(ctx context.Context, c, a, b *Node) (
	*Node, error) {

	prod, err := acc.Mul(ctx, c, acc.Sub(a, b))
	if err != nil {
		return nil, err
	}
	return acc.Add(prod, b), nil
}

// depth returns the multiplicative depth of the unresolved part of n.
func depth(n *Node, memo map[*Node]int) int {
	if n.resolved {
		return 0
	}
	if d, ok := memo[n]; ok {
		return d
	}
	var d int
	switch n.kind {
	case kindLinear:
		for _, t := range n.terms {
			if td := depth(t.node, memo); td > d {
				d = td
			}
		}
	case kindMul:
		d = depth(n.a, memo)
		if db := depth(n.b, memo); db > d {
			d = db
		}
		d++
	}
	memo[n] = d
	return d
}

// eval evaluates n locally. All multiplications below n must be
// resolved.
func (acc *Accelerator) eval(n *Node) rep3.Share {
	if n.resolved {
		return n.share
	}
	if n.kind != kindLinear {
		panic("accel: evaluating unresolved multiplication")
	}
	e := acc.e
	s := e.Promote(n.c)
	for _, t := range n.terms {
		s = e.Add(s, e.MulPublic(acc.eval(t.node), t.coef))
	}
	n.share = s
	n.resolved = true
	n.terms = nil
	return s
}

// Flush evaluates all pending multiplications. Multiplications of the
// same depth are independent and run in one round.
func (acc *Accelerator) Flush(ctx context.Context) error {
	if len(acc.pending) == 0 {
		return nil
	}
	start := time.Now()

	memo := make(map[*Node]int)
	var layers [][]*Node
	for _, n := range acc.pending {
		if n.resolved {
			continue
		}
		d := depth(n, memo)
		for len(layers) < d {
			layers = append(layers, nil)
		}
		layers[d-1] = append(layers[d-1], n)
	}
	acc.pending = acc.pending[:0]

	for _, layer := range layers {
		as := make([]rep3.Share, len(layer))
		bs := make([]rep3.Share, len(layer))
		tags := make([]rep3.Tag, len(layer))
		for i, n := range layer {
			as[i] = acc.eval(n.a)
			bs[i] = acc.eval(n.b)
			tags[i] = n.tag
		}
		r, err := acc.e.MulTagged(ctx, as, bs, tags)
		if err != nil {
			return err
		}
		for i, n := range layer {
			n.share = r[i]
			n.resolved = true
			n.a = nil
			n.b = nil
		}
		acc.stats.Layers++
		acc.stats.Muls += uint64(len(layer))
		if len(layer) > acc.stats.MaxBatch {
			acc.stats.MaxBatch = len(layer)
		}
	}
	acc.stats.Flushes++
	elapsed := time.Since(start)
	acc.stats.Elapsed += elapsed

	acc.log.Trace().Int("layers", len(layers)).Dur("elapsed", elapsed).
		Msg("flush")
	return nil
}

// Resolve flushes pending multiplications if needed and returns the
// share of n.
func (acc *Accelerator) Resolve(ctx context.Context, n *Node) (
	rep3.Share, error) {

	r, err := acc.ResolveMany(ctx, []*Node{n})
	if err != nil {
		return rep3.Share{}, err
	}
	return r[0], nil
}

// ResolveMany flushes pending multiplications if needed and returns
// the shares of the nodes.
func (acc *Accelerator) ResolveMany(ctx context.Context, nodes []*Node) (
	[]rep3.Share, error) {

	for _, n := range nodes {
		if !n.resolved && len(acc.pending) > 0 {
			if err := acc.Flush(ctx); err != nil {
				return nil, err
			}
			break
		}
	}
	result := make([]rep3.Share, len(nodes))
	for i, n := range nodes {
		result[i] = acc.eval(n)
	}
	return result, nil
}
