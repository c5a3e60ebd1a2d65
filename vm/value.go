//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package vm

import (
	"github.com/cockroachdb/errors"
	"github.com/markkurossi/covm/accel"
	"github.com/markkurossi/covm/field"
)

var (
	// ErrAssertionFailed is returned when a circuit assertion does
	// not hold. The parties learn only the truth value of the
	// condition.
	ErrAssertionFailed = errors.New("assertion failed")

	// ErrUnsupported is returned for operations that can't be
	// evaluated on secret values, such as a shift by a secret amount
	// or a loop with a secret condition.
	ErrUnsupported = errors.New("unsupported operation")
)

func unsupportedf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrUnsupported)
}

// Value is a cell of the machine: a public field element or a secret
// value of the accelerator.
type Value struct {
	node *accel.Node
	pub  field.Element

	// boolean is set for secret values known to be 0 or 1.
	boolean bool
}

// Secret tests if the value is secret.
func (v Value) Secret() bool {
	return v.node != nil
}

func public(v field.Element) Value {
	return Value{
		pub: v,
	}
}

func secret(n *accel.Node) Value {
	return Value{
		node: n,
	}
}

func secretBool(n *accel.Node) Value {
	return Value{
		node:    n,
		boolean: true,
	}
}

func (m *Machine) isBool(v Value) bool {
	if v.Secret() {
		return v.boolean
	}
	return m.f.IsZero(v.pub) || m.f.Equal(v.pub, m.f.One())
}

// node returns the accelerator node of the value.
func (m *Machine) node(v Value) *accel.Node {
	if v.Secret() {
		return v.node
	}
	return m.acc.Public(v.pub)
}
