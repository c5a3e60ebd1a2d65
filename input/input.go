//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package input implements the inputs and witnesses of the parties.
// The plaintext inputs are split into one shared input per party
// before the computation; every input owner splits its own values and
// the parties merge the shares they receive. The package also
// implements the online input distribution and the shared witness
// files.
package input

import (
	"context"
	"io"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/markkurossi/covm/field"
	"github.com/markkurossi/covm/rep3"
)

// Shared holds the inputs of one party. Public inputs are known to
// all parties and private inputs are held as shares.
type Shared struct {
	Public map[string][]field.Element
	Shared map[string][]rep3.Share
}

// NewShared creates an empty shared input.
func NewShared() *Shared {
	return &Shared{
		Public: make(map[string][]field.Element),
		Shared: make(map[string][]rep3.Share),
	}
}

// Names returns the sorted names of all inputs.
func (s *Shared) Names() []string {
	var names []string
	for name := range s.Public {
		names = append(names, name)
	}
	for name := range s.Shared {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Merge adds the inputs of o to s. An input can be defined only once.
func (s *Shared) Merge(o *Shared) error {
	for name, v := range o.Public {
		if s.defined(name) {
			return errors.Newf("input %s defined multiple times", name)
		}
		s.Public[name] = v
	}
	for name, v := range o.Shared {
		if s.defined(name) {
			return errors.Newf("input %s defined multiple times", name)
		}
		s.Shared[name] = v
	}
	return nil
}

func (s *Shared) defined(name string) bool {
	_, pub := s.Public[name]
	_, sh := s.Shared[name]
	return pub || sh
}

// Merge merges the shared inputs of one party.
func Merge(parts ...*Shared) (*Shared, error) {
	result := NewShared()
	for _, part := range parts {
		if err := result.Merge(part); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Split splits the plaintext values into the shared inputs of the
// three parties. The inputs named in public are copied to every party
// as public values.
func Split(f *field.Field, values map[string][]field.Element,
	public map[string]bool, rand io.Reader) ([rep3.NumParties]*Shared, error) {

	var result [rep3.NumParties]*Shared
	for i := range result {
		result[i] = NewShared()
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		vals := values[name]
		if public[name] {
			for _, party := range result {
				party.Public[name] = append([]field.Element(nil), vals...)
			}
			continue
		}
		for _, party := range result {
			party.Shared[name] = make([]rep3.Share, len(vals))
		}
		for idx, v := range vals {
			shares, err := rep3.Split(f, v, rand)
			if err != nil {
				return result, errors.Wrapf(err, "input %s", name)
			}
			for i, party := range result {
				party.Shared[name][idx] = shares[i]
			}
		}
	}
	return result, nil
}

// Reconstruct reconstructs the plaintext values from the shared inputs
// of the three parties.
func Reconstruct(f *field.Field, parts [rep3.NumParties]*Shared) (
	map[string][]field.Element, error) {

	result := make(map[string][]field.Element)
	for name, v := range parts[0].Public {
		result[name] = v
	}
	for name, s0 := range parts[0].Shared {
		vals := make([]field.Element, len(s0))
		for idx := range s0 {
			var shares [rep3.NumParties]rep3.Share
			for i, part := range parts {
				s, ok := part.Shared[name]
				if !ok || len(s) != len(s0) {
					return nil, errors.Newf("input %s: party %d: missing shares",
						name, i)
				}
				shares[i] = s[idx]
			}
			v, err := rep3.Reconstruct(f, shares)
			if err != nil {
				return nil, errors.Wrapf(err, "input %s[%d]", name, idx)
			}
			vals[idx] = v
		}
		result[name] = vals
	}
	return result, nil
}

// Owner defines a private input and the party holding it.
type Owner struct {
	Name  string
	Party rep3.PartyID
	Size  int
}

// Exchange distributes the private inputs online. The owners are
// public and every party passes them in the same order. Each party
// provides the plaintext values of the inputs it owns in own.
func Exchange(ctx context.Context, e *rep3.Engine, owners []Owner,
	own map[string][]field.Element) (*Shared, error) {

	result := NewShared()
	for _, owner := range owners {
		var values []field.Element
		if owner.Party == e.ID() {
			var ok bool
			values, ok = own[owner.Name]
			if !ok {
				return nil, errors.Newf("input %s not provided", owner.Name)
			}
		}
		shares, err := e.ShareInput(ctx, owner.Party, values, owner.Size)
		if err != nil {
			return nil, errors.Wrapf(err, "input %s", owner.Name)
		}
		if result.defined(owner.Name) {
			return nil, errors.Newf("input %s defined multiple times",
				owner.Name)
		}
		result.Shared[owner.Name] = shares
	}
	return result, nil
}
